package handler

import (
	"net/http"

	rewardDto "anoa.com/loyaltyledger/internal/modules/reward/dto"
	rewardService "anoa.com/loyaltyledger/internal/modules/reward/service"
	commonDto "anoa.com/loyaltyledger/pkg/dto"
	"anoa.com/loyaltyledger/pkg/response"
	"anoa.com/loyaltyledger/pkg/validator"
	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	service rewardService.RewardService
}

func NewRewardHandler(service rewardService.RewardService) *RewardHandler {
	return &RewardHandler{service: service}
}

func toRewardResponses(views []rewardService.RewardView) []rewardDto.RewardResponse {
	out := make([]rewardDto.RewardResponse, 0, len(views))
	for _, v := range views {
		r := v.Reward
		out = append(out, rewardDto.RewardResponse{
			ID:              r.ID,
			Name:            r.Name,
			Description:     r.Description,
			Type:            r.Type,
			CoinsCost:       r.CoinsCost,
			Value:           r.Value,
			ExpiresAt:       r.ExpiresAt,
			MaxRedemptions:  r.MaxRedemptions,
			MaxPerUser:      r.MaxPerUser,
			RemainingStock:  v.RemainingStock,
			TotalRedeemed:   v.TotalRedeemed,
			CanAfford:       v.CanAfford,
			UserCanRedeem:   v.UserCanRedeem,
			UserRedemptions: v.UserRedemptions,
		})
	}
	return out
}

// ListRewards is served with optional auth.
func (h *RewardHandler) ListRewards(c *gin.Context) {
	views, err := h.service.ListRewards(c.Request.Context(), response.OptionalUserID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.OK(c, toRewardResponses(views))
}

func (h *RewardHandler) SearchRewards(c *gin.Context) {
	var q rewardDto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, validator.FormatValidationError(err))
		return
	}

	views, err := h.service.SearchRewards(c.Request.Context(), q.Q, response.OptionalUserID(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	response.OK(c, toRewardResponses(views))
}

func (h *RewardHandler) Redeem(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.service.Redeem(c.Request.Context(), userID, c.Param("reward_id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": rewardDto.RedeemResponse{
		RedemptionID:     res.Redemption.ID,
		RewardID:         res.Reward.ID,
		CouponCode:       res.Redemption.CouponCode,
		Status:           res.Redemption.Status,
		CoinsSpent:       res.Redemption.CoinsSpent,
		RemainingBalance: res.RemainingBalance,
		ExpiresAt:        res.Redemption.ExpiresAt,
	}})
}

func (h *RewardHandler) ListRedemptions(c *gin.Context) {
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

	limit, offset := q.Bounds(20)
	views, total, err := h.service.ListRedemptions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]rewardDto.RedemptionResponse, 0, len(views))
	for _, v := range views {
		r := v.Redemption
		data = append(data, rewardDto.RedemptionResponse{
			ID:         r.ID,
			RewardID:   r.RewardID,
			RewardName: v.RewardName,
			CouponCode: r.CouponCode,
			Status:     v.Status,
			CoinsSpent: r.CoinsSpent,
			CreatedAt:  r.CreatedAt,
			ExpiresAt:  r.ExpiresAt,
			UsedAt:     r.UsedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": commonDto.NewPaginationMeta(q.Page, limit, total),
	})
}
