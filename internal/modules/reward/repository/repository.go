package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	"anoa.com/loyaltyledger/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardRepository interface {
	WithTx(tx *gorm.DB) RewardRepository

	FindByID(ctx context.Context, id string) (*entity.Reward, error)
	// LockByID locks the reward row so a global cap can be counted safely.
	LockByID(ctx context.Context, id string) (*entity.Reward, error)
	ListAvailable(ctx context.Context, now time.Time) ([]entity.Reward, error)
	Sync(ctx context.Context, rewards []entity.Reward) error

	CountRedemptions(ctx context.Context, rewardID string) (int64, error)
	CountUserRedemptions(ctx context.Context, rewardID string, userID uuid.UUID) (int64, error)
	CountRedemptionsByReward(ctx context.Context, rewardIDs []string, userID *uuid.UUID) (map[string]int64, error)
	CouponExists(ctx context.Context, code string) (bool, error)
	CreateRedemption(ctx context.Context, redemption *entity.CouponRedemption) error
	ListRedemptions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.CouponRedemption, error)
	CountUserTotal(ctx context.Context, userID uuid.UUID) (int64, error)
}

type rewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) WithTx(tx *gorm.DB) RewardRepository {
	return &rewardRepository{db: tx}
}

func (r *rewardRepository) find(q *gorm.DB, id string) (*entity.Reward, error) {
	var reward entity.Reward
	if err := q.Where("id = ?", id).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

func (r *rewardRepository) FindByID(ctx context.Context, id string) (*entity.Reward, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *rewardRepository) LockByID(ctx context.Context, id string) (*entity.Reward, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *rewardRepository) ListAvailable(ctx context.Context, now time.Time) ([]entity.Reward, error) {
	var rewards []entity.Reward
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Order("coins_cost asc").
		Order("id asc").
		Find(&rewards).Error
	return rewards, err
}

// Sync upserts the catalog rewards and deactivates active rows the catalog no
// longer lists. Redemption history keeps its reward rows.
func (r *rewardRepository) Sync(ctx context.Context, rewards []entity.Reward) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(rewards))
		if len(rewards) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "description", "type", "coins_cost", "value", "is_active",
					"max_redemptions", "max_per_user", "expires_at", "updated_at",
				}),
			}).Create(&rewards).Error
			if err != nil {
				return err
			}
			for _, reward := range rewards {
				ids = append(ids, reward.ID)
			}
		}

		q := tx.Model(&entity.Reward{}).Where("is_active = ?", true)
		if len(ids) > 0 {
			q = q.Where("id NOT IN ?", ids)
		}
		return q.Update("is_active", false).Error
	})
}

func (r *rewardRepository) CountRedemptions(ctx context.Context, rewardID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.CouponRedemption{}).
		Where("reward_id = ?", rewardID).
		Count(&count).Error
	return count, err
}

func (r *rewardRepository) CountUserRedemptions(ctx context.Context, rewardID string, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.CouponRedemption{}).
		Where("reward_id = ? AND user_id = ?", rewardID, userID).
		Count(&count).Error
	return count, err
}

type rewardCount struct {
	RewardID string
	Total    int64
}

// CountRedemptionsByReward counts redemptions per reward, optionally for one user.
func (r *rewardRepository) CountRedemptionsByReward(ctx context.Context, rewardIDs []string, userID *uuid.UUID) (map[string]int64, error) {
	out := make(map[string]int64, len(rewardIDs))
	if len(rewardIDs) == 0 {
		return out, nil
	}

	q := r.db.WithContext(ctx).Model(&entity.CouponRedemption{}).
		Select("reward_id, COUNT(*) AS total").
		Where("reward_id IN ?", rewardIDs)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}

	var rows []rewardCount
	if err := q.Group("reward_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.RewardID] = row.Total
	}
	return out, nil
}

func (r *rewardRepository) CouponExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.CouponRedemption{}).
		Where("coupon_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *rewardRepository) CreateRedemption(ctx context.Context, redemption *entity.CouponRedemption) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(redemption).Error
}

func (r *rewardRepository) ListRedemptions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.CouponRedemption, error) {
	var redemptions []entity.CouponRedemption
	err := r.db.WithContext(ctx).
		Preload("Reward").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&redemptions).Error
	return redemptions, err
}

func (r *rewardRepository) CountUserTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.CouponRedemption{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
