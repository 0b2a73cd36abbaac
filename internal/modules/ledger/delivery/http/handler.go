package handler

import (
	"net/http"

	"anoa.com/loyaltyledger/internal/entity"
	ledgerDto "anoa.com/loyaltyledger/internal/modules/ledger/dto"
	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"
	"anoa.com/loyaltyledger/pkg/response"
	"anoa.com/loyaltyledger/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler serves the collaborator-facing /internal routes.
type LedgerHandler struct {
	service ledgerService.LedgerService
}

func NewLedgerHandler(service ledgerService.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

func (h *LedgerHandler) RecordEvent(c *gin.Context) {
	var req ledgerDto.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.FormatValidationError(err))
		return
	}

	res, err := h.service.RecordEvent(c.Request.Context(), ledgerService.PostRequest{
		UserID:      uuid.MustParse(req.UserID),
		Amount:      req.Amount,
		Points:      req.Points,
		Source:      entity.Source(req.Source),
		Description: req.Description,
		Metadata:    req.Metadata,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toResponse(res)})
}

func (h *LedgerHandler) ApplyTransaction(c *gin.Context) {
	var req ledgerDto.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.FormatValidationError(err))
		return
	}

	res, err := h.service.ApplyTransaction(c.Request.Context(), ledgerService.PostRequest{
		UserID:      uuid.MustParse(req.UserID),
		Direction:   entity.Direction(req.Direction),
		Amount:      req.Amount,
		Points:      req.Points,
		Source:      entity.Source(req.Source),
		Description: req.Description,
		Metadata:    req.Metadata,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toResponse(res)})
}

func (h *LedgerHandler) CourseCompleted(c *gin.Context) {
	var req ledgerDto.CourseCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, validator.FormatValidationError(err))
		return
	}

	res, err := h.service.RecordCourseCompletion(c.Request.Context(), uuid.MustParse(req.UserID), req.CourseID, req.Difficulty, req.Title)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toResponse(res)})
}

func toResponse(res *ledgerService.Result) ledgerDto.EntryResponse {
	badges := make([]string, 0, len(res.Badges))
	for _, b := range res.Badges {
		badges = append(badges, b.ID)
	}
	e := res.Entry
	return ledgerDto.EntryResponse{
		ID:           e.ID,
		UserID:       e.UserID,
		Direction:    e.Direction,
		Amount:       e.Amount,
		Points:       e.Points,
		Source:       e.Source,
		ReferenceID:  e.ReferenceID,
		Description:  e.Description,
		Metadata:     e.Metadata,
		CreatedAt:    e.CreatedAt,
		Balance:      res.Account.Balance,
		Level:        res.Account.Level,
		BadgesEarned: badges,
	}
}
