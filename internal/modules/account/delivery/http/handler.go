package handler

import (
	"net/http"

	accountService "anoa.com/loyaltyledger/internal/modules/account/service"
	commonDto "anoa.com/loyaltyledger/pkg/dto"
	"anoa.com/loyaltyledger/pkg/response"
	"anoa.com/loyaltyledger/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	service accountService.AccountService
}

func NewAccountHandler(service accountService.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

func (h *AccountHandler) GetSummary(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	summary, err := h.service.GetSummary(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.OK(c, summary)
}

func (h *AccountHandler) ListTransactions(c *gin.Context) {
	var q commonDto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, validator.FormatValidationError(err))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	list, err := h.service.ListTransactions(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}
