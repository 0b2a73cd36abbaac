package handler

import (
	leaderboardDto "anoa.com/loyaltyledger/internal/modules/leaderboard/dto"
	leaderboardService "anoa.com/loyaltyledger/internal/modules/leaderboard/service"
	"anoa.com/loyaltyledger/pkg/response"
	"anoa.com/loyaltyledger/pkg/validator"
	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	service leaderboardService.LeaderboardService
}

func NewLeaderboardHandler(service leaderboardService.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

// GetLeaderboard handles GET /api/leaderboard?period=all_time|monthly|weekly&limit=
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	var q leaderboardDto.LeaderboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, validator.FormatValidationError(err))
		return
	}

	board, err := h.service.GetLeaderboard(c.Request.Context(), q.Period, q.Limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.OK(c, board)
}
