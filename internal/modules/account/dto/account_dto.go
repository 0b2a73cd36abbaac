package dto

import (
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	commonDto "anoa.com/loyaltyledger/pkg/dto"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TransactionResponse struct {
	ID          uuid.UUID        `json:"id"`
	Direction   entity.Direction `json:"direction"`
	Amount      int64            `json:"amount"`
	Points      int64            `json:"points"`
	Source      entity.Source    `json:"source"`
	Description string           `json:"description"`
	Metadata    datatypes.JSON   `json:"metadata,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func NewTransactionResponse(e entity.LedgerEntry) TransactionResponse {
	return TransactionResponse{
		ID:          e.ID,
		Direction:   e.Direction,
		Amount:      e.Amount,
		Points:      e.Points,
		Source:      e.Source,
		Description: e.Description,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
}

type BadgeResponse struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Category entity.BadgeCategory `json:"category"`
	Icon     string               `json:"icon,omitempty"`
	EarnedAt time.Time            `json:"earned_at"`
}

// AchievementResponse is one catalog badge with the user's progress towards it.
type AchievementResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    entity.BadgeCategory `json:"category"`
	Icon        string               `json:"icon,omitempty"`
	Earned      bool                 `json:"earned"`
	EarnedAt    *time.Time           `json:"earned_at,omitempty"`
	Current     int64                `json:"current"`
	Threshold   int64                `json:"threshold"`
	Progress    float64              `json:"progress"`
}

type StreakResponse struct {
	Current        int        `json:"current"`
	Longest        int        `json:"longest"`
	LastClaimAt    *time.Time `json:"last_claim_at,omitempty"`
	CanClaimToday  bool       `json:"can_claim_today"`
	NextClaimCoins int64      `json:"next_claim_coins"`
}

type SummaryResponse struct {
	UserID             uuid.UUID             `json:"user_id"`
	Balance            int64                 `json:"balance"`
	TotalEarned        int64                 `json:"total_earned"`
	TotalSpent         int64                 `json:"total_spent"`
	Points             int64                 `json:"points"`
	Level              commonDto.LevelStatus `json:"level"`
	Streak             StreakResponse        `json:"streak"`
	CoursesCompleted   int64                 `json:"courses_completed"`
	RecentTransactions []TransactionResponse `json:"recent_transactions"`
	Badges             []BadgeResponse       `json:"badges"`
	Achievements       []AchievementResponse `json:"achievements"`
}

type TransactionListResponse struct {
	Data []TransactionResponse    `json:"data"`
	Meta commonDto.PaginationMeta `json:"meta"`
}
