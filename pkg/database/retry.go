package database

import (
	"context"
	"errors"
	"time"

	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/logger"
	"anoa.com/loyaltyledger/pkg/metrics"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgreSQL codes worth another attempt.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

const baseBackoff = 10 * time.Millisecond

// IsRetryable reports whether err came from contention rather than a real
// failure: a lost optimistic version check, a serialization abort, a deadlock
// or a unique violation raised by a concurrent insert.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperror.ErrConcurrentUpdate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return true
		}
	}
	return false
}

// WithRetry runs fn until it succeeds, fails with a non retryable error, or
// attempts run out. Exhausted contention is reported as apperror.ErrInternal.
func WithRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if !IsRetryable(err) {
			return err
		}

		logger.L.Debug("retrying after contention", zap.Int("attempt", i+1), zap.Error(err))

		if i == attempts-1 {
			break
		}
		metrics.TxRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseBackoff * time.Duration(i+1)):
		}
	}

	logger.L.Warn("retries exhausted", zap.Int("attempts", attempts), zap.Error(err))
	return errors.Join(apperror.ErrInternal, err)
}

// Transaction runs fn in a database transaction retried on contention.
func Transaction(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	return WithRetry(ctx, attempts, func() error {
		return db.WithContext(ctx).Transaction(fn)
	})
}
