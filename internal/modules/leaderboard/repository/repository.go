package repository

import (
	"context"

	"anoa.com/loyaltyledger/internal/entity"
	"gorm.io/gorm"
)

type LeaderboardRepository interface {
	// TopAccounts orders by balance, ties broken by user id so positions are stable.
	TopAccounts(ctx context.Context, limit int) ([]entity.Account, error)
	CountAccounts(ctx context.Context) (int64, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) TopAccounts(ctx context.Context, limit int) ([]entity.Account, error) {
	var accounts []entity.Account
	err := r.db.WithContext(ctx).
		Order("balance DESC").
		Order("user_id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}

func (r *leaderboardRepository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Account{}).Count(&count).Error
	return count, err
}
