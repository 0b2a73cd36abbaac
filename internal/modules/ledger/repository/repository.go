package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	"anoa.com/loyaltyledger/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerRepository interface {
	// WithTx binds the repository to an open transaction.
	WithTx(tx *gorm.DB) LedgerRepository

	// LockAccount creates the account on first access and locks its row for
	// the rest of the transaction.
	LockAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error)
	// EnsureAccount returns the account, creating an empty one if needed.
	EnsureAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error)
	// SaveAccount writes acc if its version is still current and bumps it.
	SaveAccount(ctx context.Context, acc *entity.Account) error

	CreateEntry(ctx context.Context, entry *entity.LedgerEntry) error
	ReferenceExists(ctx context.Context, userID uuid.UUID, source entity.Source, referenceID string) (bool, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.LedgerEntry, error)
	CountEntries(ctx context.Context, userID uuid.UUID) (int64, error)
	CountBySource(ctx context.Context, userID uuid.UUID, source entity.Source) (int64, error)
	SumEarnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	SumEarnedSinceByUsers(ctx context.Context, userIDs []uuid.UUID, since time.Time) (map[uuid.UUID]int64, error)
	// SignedSum recomputes the balance from the entries alone.
	SignedSum(ctx context.Context, userID uuid.UUID) (int64, error)
	// BalanceChecks pages accounts after afterID with their cached balance and
	// the entry sum, both read by one statement.
	BalanceChecks(ctx context.Context, afterID uuid.UUID, limit int) ([]BalanceCheck, error)
}

type BalanceCheck struct {
	UserID  uuid.UUID
	Balance int64
	Ledger  int64
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: tx}
}

func (r *ledgerRepository) createIfMissing(ctx context.Context, userID uuid.UUID) error {
	acc := entity.Account{UserID: userID, Level: 1}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&acc).Error
}

func (r *ledgerRepository) LockAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	if err := r.createIfMissing(ctx, userID); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	var acc entity.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return &acc, nil
}

func (r *ledgerRepository) EnsureAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	var acc entity.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := r.createIfMissing(ctx, userID); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *ledgerRepository) SaveAccount(ctx context.Context, acc *entity.Account) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("user_id = ? AND version = ?", acc.UserID, acc.Version).
		Updates(map[string]any{
			"balance":        acc.Balance,
			"total_earned":   acc.TotalEarned,
			"total_spent":    acc.TotalSpent,
			"total_points":   acc.TotalPoints,
			"level":          acc.Level,
			"current_streak": acc.CurrentStreak,
			"longest_streak": acc.LongestStreak,
			"last_claim_at":  acc.LastClaimAt,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     acc.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save account: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return apperror.ErrConcurrentUpdate
	}
	acc.Version++
	return nil
}

func (r *ledgerRepository) CreateEntry(ctx context.Context, entry *entity.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepository) ReferenceExists(ctx context.Context, userID uuid.UUID, source entity.Source, referenceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Where("user_id = ? AND source = ? AND reference_id = ?", userID, source, referenceID).
		Count(&count).Error
	return count > 0, err
}

func (r *ledgerRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.LedgerEntry, error) {
	var entries []entity.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepository) CountEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *ledgerRepository) CountBySource(ctx context.Context, userID uuid.UUID, source entity.Source) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Where("user_id = ? AND source = ?", userID, source).
		Count(&count).Error
	return count, err
}

func (r *ledgerRepository) SumEarnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND direction = ? AND created_at >= ?", userID, entity.DirectionEarned, since).
		Scan(&total).Error
	return total, err
}

type earnedRow struct {
	UserID uuid.UUID
	Total  int64
}

func (r *ledgerRepository) SumEarnedSinceByUsers(ctx context.Context, userIDs []uuid.UUID, since time.Time) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var rows []earnedRow
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Select("user_id, COALESCE(SUM(amount), 0) AS total").
		Where("user_id IN ? AND direction = ? AND created_at >= ?", userIDs, entity.DirectionEarned, since).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = row.Total
	}
	return out, nil
}

func (r *ledgerRepository) SignedSum(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.LedgerEntry{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE -amount END), 0)", entity.DirectionEarned).
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}

func (r *ledgerRepository) BalanceChecks(ctx context.Context, afterID uuid.UUID, limit int) ([]BalanceCheck, error) {
	var rows []BalanceCheck
	err := r.db.WithContext(ctx).Model(&entity.Account{}).
		Select(`accounts.user_id, accounts.balance,
			(SELECT COALESCE(SUM(CASE WHEN e.direction = ? THEN e.amount ELSE -e.amount END), 0)
			 FROM ledger_entries e WHERE e.user_id = accounts.user_id) AS ledger`, entity.DirectionEarned).
		Where("accounts.user_id > ?", afterID).
		Order("accounts.user_id asc").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
