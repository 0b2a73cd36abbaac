package service

import (
	"context"
	"errors"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	badgeService "anoa.com/loyaltyledger/internal/modules/badge/service"
	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"
	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/clock"
	"anoa.com/loyaltyledger/pkg/logger"
	"anoa.com/loyaltyledger/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ClaimResult struct {
	CoinsEarned   int64
	PointsEarned  int64
	TotalCoins    int64
	Streak        int
	LongestStreak int
	Tier          catalog.StreakTier
	BadgesEarned  []entity.Badge
	ClaimedAt     time.Time
}

type Status struct {
	CurrentStreak int
	LongestStreak int
	LastClaimAt   *time.Time
	CanClaimToday bool
	// NextReward is what a claim made now would pay.
	NextReward catalog.StreakTier
}

type StreakService interface {
	ClaimDailyReward(ctx context.Context, userID uuid.UUID) (*ClaimResult, error)
	Status(acc *entity.Account) Status
}

type streakService struct {
	ledger  ledgerService.LedgerService
	catalog *catalog.Catalog
	calc    Calculator
	clock   clock.Clock
}

func NewStreakService(ledger ledgerService.LedgerService, cat *catalog.Catalog, calc Calculator, clk clock.Clock) StreakService {
	return &streakService{
		ledger:  ledger,
		catalog: cat,
		calc:    calc,
		clock:   clk,
	}
}

func (s *streakService) ClaimDailyReward(ctx context.Context, userID uuid.UUID) (*ClaimResult, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	var (
		result *ClaimResult
		posted *ledgerService.Result
	)
	err := s.ledger.WithAccountLock(ctx, userID, func(tx *gorm.DB, acc *entity.Account) error {
		now := s.clock.Now()
		prevLevel := acc.Level

		streak, err := s.calc.Next(acc.LastClaimAt, acc.CurrentStreak, now)
		if err != nil {
			return err
		}

		acc.CurrentStreak = streak
		if streak > acc.LongestStreak {
			acc.LongestStreak = streak
		}
		acc.LastClaimAt = &now

		tier := s.catalog.StreakTier(streak)
		entry, err := s.ledger.Post(ctx, tx, acc, ledgerService.PostRequest{
			UserID:      userID,
			Direction:   entity.DirectionEarned,
			Amount:      tier.Coins,
			Points:      tier.Points,
			Source:      entity.SourceDailyLogin,
			Description: "Daily login reward",
			Metadata: map[string]any{
				"streak":     streak,
				"tier":       tier.Label,
				"multiplier": tier.Multiplier,
			},
			ReferenceID: s.calc.DayKey(now),
		})
		if err != nil {
			if errors.Is(err, apperror.ErrDuplicateEvent) {
				// the day key already has an entry
				return apperror.ErrAlreadyClaimedToday
			}
			return err
		}

		badges, err := s.ledger.EvaluateBadges(ctx, tx, acc, entry, badgeService.StreakReached(streak))
		if err != nil {
			return err
		}

		result = &ClaimResult{
			CoinsEarned:   entry.Amount,
			PointsEarned:  entry.Points,
			TotalCoins:    acc.Balance,
			Streak:        acc.CurrentStreak,
			LongestStreak: acc.LongestStreak,
			Tier:          tier,
			BadgesEarned:  badges,
			ClaimedAt:     now,
		}
		posted = &ledgerService.Result{Entry: *entry, Account: *acc, Badges: badges, PreviousLevel: prevLevel}
		return nil
	})

	metrics.DailyClaims.WithLabelValues(metrics.Result(apperror.Kind(err), err)).Inc()
	if err != nil {
		if apperror.IsStateConflict(err) {
			logger.L.Debug("daily claim rejected", zap.String("user_id", userID.String()), zap.Error(err))
		}
		return nil, err
	}

	s.ledger.Announce(ctx, posted)
	logger.L.Info("daily reward claimed",
		zap.String("user_id", userID.String()),
		zap.Int("streak", result.Streak),
		zap.Int64("coins", result.CoinsEarned),
	)
	return result, nil
}

// Status reports a broken streak as 0 even though the stored value only resets
// on the next claim.
func (s *streakService) Status(acc *entity.Account) Status {
	now := s.clock.Now()
	st := Status{
		LongestStreak: acc.LongestStreak,
		LastClaimAt:   acc.LastClaimAt,
		CanClaimToday: s.calc.CanClaim(acc.LastClaimAt, now),
	}
	if s.calc.Alive(acc.LastClaimAt, now) {
		st.CurrentStreak = acc.CurrentStreak
	}

	next := st.CurrentStreak
	if st.CanClaimToday {
		next = st.CurrentStreak + 1
	}
	st.NextReward = s.catalog.StreakTier(next)
	return st
}
