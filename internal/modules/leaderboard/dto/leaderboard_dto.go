package dto

import (
	"time"

	commonDto "anoa.com/loyaltyledger/pkg/dto"
	"github.com/google/uuid"
)

type LeaderboardQuery struct {
	Period string `form:"period" binding:"omitempty,oneof=all_time monthly weekly"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// LeaderboardEntry is one ranked account. Position is 1-based.
// RecentEarned is only present for windowed periods.
type LeaderboardEntry struct {
	Position      int                   `json:"position"`
	UserID        uuid.UUID             `json:"user_id"`
	Balance       int64                 `json:"balance"`
	Streak        int                   `json:"streak"`
	Level         commonDto.LevelStatus `json:"level"`
	RecentEarned  *int64                `json:"recent_earned,omitempty"`
	ActivityLabel string                `json:"activity_label,omitempty"`
}

type LeaderboardResponse struct {
	Period      string             `json:"period"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	TotalUsers  int64              `json:"total_users"`
	GeneratedAt time.Time          `json:"generated_at"`
}
