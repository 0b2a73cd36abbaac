package repository

import (
	"context"

	"anoa.com/loyaltyledger/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository interface {
	WithTx(tx *gorm.DB) BadgeRepository
	// Award inserts ub unless the user already holds the badge. It reports
	// whether a row was written.
	Award(ctx context.Context, ub *entity.UserBadge) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.UserBadge, error)
	Sync(ctx context.Context, badges []entity.Badge) error
}

type badgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) WithTx(tx *gorm.DB) BadgeRepository {
	return &badgeRepository{db: tx}
}

func (r *badgeRepository) Award(ctx context.Context, ub *entity.UserBadge) (bool, error) {
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoNothing: true,
		}).
		Create(ub)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *badgeRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.UserBadge, error) {
	var badges []entity.UserBadge
	err := r.db.WithContext(ctx).
		Preload("Badge").
		Where("user_id = ?", userID).
		Order("earned_at asc").
		Order("badge_id asc").
		Find(&badges).Error
	return badges, err
}

func (r *badgeRepository) Sync(ctx context.Context, badges []entity.Badge) error {
	if len(badges) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "category", "threshold", "icon", "updated_at"}),
		}).
		Create(&badges).Error
}
