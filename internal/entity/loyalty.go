package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Direction string

const (
	DirectionEarned   Direction = "EARNED"
	DirectionRedeemed Direction = "REDEEMED"
)

func (d Direction) Valid() bool {
	return d == DirectionEarned || d == DirectionRedeemed
}

type Source string

const (
	SourceDailyLogin       Source = "DAILY_LOGIN"
	SourceCourseComplete   Source = "COURSE_COMPLETE"
	SourceOrderComplete    Source = "ORDER_COMPLETE"
	SourceReferral         Source = "REFERRAL"
	SourceAdjustment       Source = "ADJUSTMENT"
	SourceRewardRedemption Source = "REWARD_REDEMPTION"
)

func (s Source) Valid() bool {
	switch s {
	case SourceDailyLogin, SourceCourseComplete, SourceOrderComplete,
		SourceReferral, SourceAdjustment, SourceRewardRedemption:
		return true
	}
	return false
}

// Account is the cached state of one user's ledger. Balance always equals the
// signed sum of the user's ledger entries.
type Account struct {
	UserID        uuid.UUID  `gorm:"type:uuid;primaryKey;index:idx_accounts_rank,priority:2" json:"user_id"`
	Balance       int64      `gorm:"not null;default:0;index:idx_accounts_rank,priority:1,sort:desc;check:chk_accounts_balance,balance >= 0" json:"balance"`
	TotalEarned   int64      `gorm:"not null;default:0" json:"total_earned"`
	TotalSpent    int64      `gorm:"not null;default:0" json:"total_spent"`
	TotalPoints   int64      `gorm:"not null;default:0" json:"total_points"`
	Level         int        `gorm:"not null;default:1" json:"level"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak int        `gorm:"not null;default:0" json:"longest_streak"`
	LastClaimAt   *time.Time `json:"last_claim_at"`
	Version       int64      `gorm:"not null;default:0" json:"-"` // bumped on every write
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LedgerEntry is never updated or deleted once written.
type LedgerEntry struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_ledger_user_created,priority:1;uniqueIndex:idx_ledger_reference,priority:1" json:"user_id"`
	Direction   Direction      `gorm:"size:16;not null" json:"direction"`
	Amount      int64          `gorm:"not null;check:chk_ledger_amount,amount > 0" json:"amount"`
	Points      int64          `gorm:"not null;default:0" json:"points"`
	Source      Source         `gorm:"size:32;not null;uniqueIndex:idx_ledger_reference,priority:2" json:"source"`
	ReferenceID *string        `gorm:"size:64;uniqueIndex:idx_ledger_reference,priority:3" json:"reference_id,omitempty"`
	Description string         `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index:idx_ledger_user_created,priority:2;index:idx_ledger_created" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	return assignID(&e.ID)
}

// Signed returns the entry amount as it affects the balance.
func (e LedgerEntry) Signed() int64 {
	if e.Direction == DirectionRedeemed {
		return -e.Amount
	}
	return e.Amount
}

type BadgeCategory string

const (
	BadgeCategoryStreak BadgeCategory = "STREAK"
	BadgeCategoryPoints BadgeCategory = "POINTS"
	BadgeCategoryCourse BadgeCategory = "COURSE"
)

type Badge struct {
	ID          string        `gorm:"size:64;primaryKey" json:"id"`
	Name        string        `gorm:"size:128;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Category    BadgeCategory `gorm:"size:16;not null;index:idx_badges_category" json:"category"`
	Threshold   int64         `gorm:"not null" json:"threshold"`
	Icon        string        `gorm:"size:64" json:"icon"`
	UpdatedAt   time.Time     `json:"-"`
}

// UserBadge is unique per (user, badge); inserting it twice is a no-op.
type UserBadge struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	BadgeID  string    `gorm:"size:64;primaryKey" json:"badge_id"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`
	Badge    Badge     `gorm:"foreignKey:BadgeID;references:ID" json:"badge"`
}

type RewardType string

const (
	RewardTypeDiscount RewardType = "DISCOUNT"
	RewardTypeProduct  RewardType = "PRODUCT"
	RewardTypeAccess   RewardType = "ACCESS"
)

type Reward struct {
	ID             string         `gorm:"size:64;primaryKey" json:"id"`
	Name           string         `gorm:"size:128;not null" json:"name"`
	Description    string         `gorm:"type:text" json:"description"`
	Type           RewardType     `gorm:"size:16;not null" json:"type"`
	CoinsCost      int64          `gorm:"not null;check:chk_rewards_cost,coins_cost > 0" json:"coins_cost"`
	Value          datatypes.JSON `json:"value,omitempty"`
	IsActive       bool           `gorm:"not null" json:"is_active"`
	MaxRedemptions *int           `json:"max_redemptions,omitempty"` // across all users
	MaxPerUser     *int           `json:"max_per_user,omitempty"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ExpiredAt reports whether the reward window has closed at now.
func (r Reward) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

type CouponStatus string

const (
	CouponStatusActive  CouponStatus = "ACTIVE"
	CouponStatusUsed    CouponStatus = "USED"
	CouponStatusExpired CouponStatus = "EXPIRED"
)

type CouponRedemption struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID    `gorm:"type:uuid;not null;index:idx_redemptions_user,priority:1" json:"user_id"`
	RewardID   string       `gorm:"size:64;not null;index:idx_redemptions_reward;index:idx_redemptions_user,priority:2" json:"reward_id"`
	Reward     Reward       `gorm:"foreignKey:RewardID;references:ID" json:"-"`
	CouponCode string       `gorm:"size:64;not null;uniqueIndex:idx_redemptions_coupon" json:"coupon_code"`
	CoinsSpent int64        `gorm:"not null" json:"coins_spent"`
	Status     CouponStatus `gorm:"size:16;not null" json:"status"`
	UsedAt     *time.Time   `json:"used_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	ExpiresAt  time.Time    `gorm:"not null" json:"expires_at"`
}

func (r *CouponRedemption) BeforeCreate(tx *gorm.DB) error {
	return assignID(&r.ID)
}

// StatusAt evaluates expiry lazily; stored rows are never swept.
func (r CouponRedemption) StatusAt(now time.Time) CouponStatus {
	if r.Status == CouponStatusActive && !now.Before(r.ExpiresAt) {
		return CouponStatusExpired
	}
	return r.Status
}

func assignID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	v7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	*id = v7
	return nil
}
