package dto

import (
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SearchQuery struct {
	Q string `form:"q" binding:"required,max=100"`
}

// RewardResponse carries affordability fields only for a known user.
type RewardResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Type            entity.RewardType `json:"type"`
	CoinsCost       int64             `json:"coins_cost"`
	Value           datatypes.JSON    `json:"value,omitempty"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	MaxRedemptions  *int              `json:"max_redemptions,omitempty"`
	MaxPerUser      *int              `json:"max_per_user,omitempty"`
	RemainingStock  *int64            `json:"remaining_stock,omitempty"`
	TotalRedeemed   int64             `json:"total_redeemed"`
	CanAfford       *bool             `json:"can_afford,omitempty"`
	UserCanRedeem   *bool             `json:"user_can_redeem,omitempty"`
	UserRedemptions *int64            `json:"user_redemptions,omitempty"`
}

type RedeemResponse struct {
	RedemptionID     uuid.UUID           `json:"redemption_id"`
	RewardID         string              `json:"reward_id"`
	CouponCode       string              `json:"coupon_code"`
	Status           entity.CouponStatus `json:"status"`
	CoinsSpent       int64               `json:"coins_spent"`
	RemainingBalance int64               `json:"remaining_balance"`
	ExpiresAt        time.Time           `json:"expires_at"`
}

type RedemptionResponse struct {
	ID         uuid.UUID           `json:"id"`
	RewardID   string              `json:"reward_id"`
	RewardName string              `json:"reward_name"`
	CouponCode string              `json:"coupon_code"`
	Status     entity.CouponStatus `json:"status"`
	CoinsSpent int64               `json:"coins_spent"`
	CreatedAt  time.Time           `json:"created_at"`
	ExpiresAt  time.Time           `json:"expires_at"`
	UsedAt     *time.Time          `json:"used_at,omitempty"`
}
