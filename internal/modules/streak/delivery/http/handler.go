package handler

import (
	streakDto "anoa.com/loyaltyledger/internal/modules/streak/dto"
	streakService "anoa.com/loyaltyledger/internal/modules/streak/service"
	"anoa.com/loyaltyledger/pkg/response"
	"github.com/gin-gonic/gin"
)

type StreakHandler struct {
	service streakService.StreakService
}

func NewStreakHandler(service streakService.StreakService) *StreakHandler {
	return &StreakHandler{service: service}
}

// ClaimDaily handles POST /api/rewards/daily-claim. A second claim on the same
// day answers 409 ALREADY_CLAIMED_TODAY.
func (h *StreakHandler) ClaimDaily(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.ClaimDailyReward(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	response.OK(c, streakDto.ClaimResponse{
		CoinsEarned:   res.CoinsEarned,
		PointsEarned:  res.PointsEarned,
		TotalCoins:    res.TotalCoins,
		Streak:        res.Streak,
		LongestStreak: res.LongestStreak,
		Multiplier:    res.Tier.Multiplier,
		TierLabel:     res.Tier.Label,
		BadgesEarned:  streakDto.NewEarnedBadges(res.BadgesEarned),
		ClaimedAt:     res.ClaimedAt,
	})
}
