package dto

import (
	"time"

	"anoa.com/loyaltyledger/internal/entity"
)

type EarnedBadge struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Category entity.BadgeCategory `json:"category"`
	Icon     string               `json:"icon,omitempty"`
}

func NewEarnedBadges(badges []entity.Badge) []EarnedBadge {
	out := make([]EarnedBadge, 0, len(badges))
	for _, b := range badges {
		out = append(out, EarnedBadge{ID: b.ID, Name: b.Name, Category: b.Category, Icon: b.Icon})
	}
	return out
}

type ClaimResponse struct {
	CoinsEarned   int64         `json:"coins_earned"`
	PointsEarned  int64         `json:"points_earned"`
	TotalCoins    int64         `json:"total_coins"`
	Streak        int           `json:"streak"`
	LongestStreak int           `json:"longest_streak"`
	Multiplier    float64       `json:"multiplier"`
	TierLabel     string        `json:"tier_label"`
	BadgesEarned  []EarnedBadge `json:"badges_earned"`
	ClaimedAt     time.Time     `json:"claimed_at"`
}
