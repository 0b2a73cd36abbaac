package dto

import (
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RecordEventRequest is sent by collaborators for coin-worthy actions other
// than the daily login.
type RecordEventRequest struct {
	UserID      string         `json:"user_id" binding:"required,uuid"`
	Source      string         `json:"source" binding:"required,oneof=COURSE_COMPLETE ORDER_COMPLETE REFERRAL ADJUSTMENT"`
	Amount      int64          `json:"amount" binding:"required,gt=0"`
	Points      int64          `json:"points" binding:"omitempty,min=0"`
	Description string         `json:"description" binding:"max=255"`
	ReferenceID string         `json:"reference_id" binding:"omitempty,max=64"`
	Metadata    map[string]any `json:"metadata"`
}

// TransactionRequest moves coins in either direction. Used for manual
// adjustments.
type TransactionRequest struct {
	UserID      string         `json:"user_id" binding:"required,uuid"`
	Direction   string         `json:"direction" binding:"required,oneof=EARNED REDEEMED"`
	Source      string         `json:"source" binding:"required,oneof=COURSE_COMPLETE ORDER_COMPLETE REFERRAL ADJUSTMENT"`
	Amount      int64          `json:"amount" binding:"required,gt=0"`
	Points      int64          `json:"points" binding:"omitempty,min=0"`
	Description string         `json:"description" binding:"max=255"`
	ReferenceID string         `json:"reference_id" binding:"omitempty,max=64"`
	Metadata    map[string]any `json:"metadata"`
}

type CourseCompletedRequest struct {
	UserID     string `json:"user_id" binding:"required,uuid"`
	CourseID   string `json:"course_id" binding:"required,max=64"`
	Difficulty string `json:"difficulty" binding:"omitempty,max=32"`
	Title      string `json:"title" binding:"max=255"`
}

type EntryResponse struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	Direction    entity.Direction `json:"direction"`
	Amount       int64            `json:"amount"`
	Points       int64            `json:"points"`
	Source       entity.Source    `json:"source"`
	ReferenceID  *string          `json:"reference_id,omitempty"`
	Description  string           `json:"description"`
	Metadata     datatypes.JSON   `json:"metadata,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Balance      int64            `json:"balance"`
	Level        int              `json:"level"`
	BadgesEarned []string         `json:"badges_earned"`
}
