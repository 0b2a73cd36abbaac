package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationBadgeUnlocked = "badge_unlocked"
	NotificationCouponIssued  = "coupon_issued"
	NotificationLevelUp       = "level_up"
)

type Notification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_notifications_user,priority:1" json:"user_id"` // User who receives the notification
	Type       string    `gorm:"type:varchar(50);not null" json:"type"`
	EntityType string    `gorm:"type:varchar(50)" json:"entity_type"` // 'badge', 'redemption', 'level'
	EntityID   string    `gorm:"type:varchar(64)" json:"entity_id"`
	Title      string    `gorm:"type:varchar(255)" json:"title"`
	Message    string    `gorm:"type:text" json:"message"`
	IsRead     bool      `gorm:"not null;default:false;index:idx_notifications_user,priority:2" json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	return assignID(&n.ID)
}

// Models lists every table owned by the service, in migration order.
func Models() []any {
	return []any{
		&Account{},
		&LedgerEntry{},
		&Badge{},
		&UserBadge{},
		&Reward{},
		&CouponRedemption{},
		&Notification{},
	}
}
