package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"
	notifService "anoa.com/loyaltyledger/internal/modules/notification/service"
	rewardRepo "anoa.com/loyaltyledger/internal/modules/reward/repository"
	searchService "anoa.com/loyaltyledger/internal/modules/search/service"
	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/clock"
	"anoa.com/loyaltyledger/pkg/coupon"
	"anoa.com/loyaltyledger/pkg/logger"
	"anoa.com/loyaltyledger/pkg/metrics"
	"anoa.com/loyaltyledger/pkg/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const actionRedeem = "redeem"

type Options struct {
	CouponTTL         time.Duration
	CouponMaxAttempts int
	RedeemCooldown    time.Duration
}

type RedeemResult struct {
	Redemption       entity.CouponRedemption
	Reward           entity.Reward
	RemainingBalance int64
}

// RewardView is a reward as seen by the caller. The user fields are only set
// when a user is known.
type RewardView struct {
	Reward          entity.Reward
	TotalRedeemed   int64
	RemainingStock  *int64
	CanAfford       *bool
	UserCanRedeem   *bool
	UserRedemptions *int64
}

type RedemptionView struct {
	Redemption entity.CouponRedemption
	RewardName string
	Status     entity.CouponStatus
}

type RewardService interface {
	ListRewards(ctx context.Context, userID *uuid.UUID) ([]RewardView, error)
	SearchRewards(ctx context.Context, query string, userID *uuid.UUID) ([]RewardView, error)
	GetReward(ctx context.Context, rewardID string) (*entity.Reward, error)
	Redeem(ctx context.Context, userID uuid.UUID, rewardID string) (*RedeemResult, error)
	ListRedemptions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]RedemptionView, int64, error)
	Sync(ctx context.Context) error
}

type rewardService struct {
	repo                rewardRepo.RewardRepository
	ledger              ledgerService.LedgerService
	notificationService notifService.NotificationService
	catalog             *catalog.Catalog
	coupons             coupon.Generator
	limiter             ratelimit.Limiter
	search              searchService.RewardSearch
	clock               clock.Clock
	opts                Options
}

func NewRewardService(
	repo rewardRepo.RewardRepository,
	ledger ledgerService.LedgerService,
	notificationService notifService.NotificationService,
	cat *catalog.Catalog,
	coupons coupon.Generator,
	limiter ratelimit.Limiter,
	search searchService.RewardSearch,
	clk clock.Clock,
	opts Options,
) RewardService {
	if search == nil {
		search = searchService.NewNoopSearch()
	}
	if opts.CouponTTL <= 0 {
		opts.CouponTTL = 30 * 24 * time.Hour
	}
	if opts.CouponMaxAttempts <= 0 {
		opts.CouponMaxAttempts = 5
	}
	return &rewardService{
		repo:                repo,
		ledger:              ledger,
		notificationService: notificationService,
		catalog:             cat,
		coupons:             coupons,
		limiter:             limiter,
		search:              search,
		clock:               clk,
		opts:                opts,
	}
}

// checkAvailable is the first validation step: exists, active, not expired.
func checkAvailable(reward *entity.Reward, now time.Time) error {
	if !reward.IsActive {
		return apperror.ErrRewardNotFound
	}
	if reward.ExpiredAt(now) {
		return apperror.ErrRewardExpired
	}
	return nil
}

func (s *rewardService) GetReward(ctx context.Context, rewardID string) (*entity.Reward, error) {
	reward, err := s.repo.FindByID(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.IsActive {
		return nil, apperror.ErrRewardNotFound
	}
	return reward, nil
}

func (s *rewardService) Redeem(ctx context.Context, userID uuid.UUID, rewardID string) (*RedeemResult, error) {
	rewardID = strings.TrimSpace(rewardID)
	if rewardID == "" {
		return nil, fmt.Errorf("%w: reward id is required", apperror.ErrInvalidInput)
	}
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	res, err := s.redeem(ctx, userID, rewardID)
	metrics.Redemptions.WithLabelValues(rewardID, metrics.Result(apperror.Kind(err), err)).Inc()
	if err != nil {
		if apperror.IsStateConflict(err) {
			logger.L.Info("redemption rejected",
				zap.String("user_id", userID.String()),
				zap.String("reward_id", rewardID),
				zap.String("reason", apperror.Kind(err)),
			)
		}
		return nil, err
	}

	logger.L.Info("reward redeemed",
		zap.String("user_id", userID.String()),
		zap.String("reward_id", rewardID),
		zap.String("redemption_id", res.Redemption.ID.String()),
		zap.Int64("remaining_balance", res.RemainingBalance),
	)
	if s.notificationService != nil {
		n := notifService.CouponIssued(userID, res.Redemption, res.Reward.Name)
		if err := s.notificationService.CreateNotification(ctx, n); err != nil {
			logger.L.Warn("coupon notification", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return res, nil
}

func (s *rewardService) redeem(ctx context.Context, userID uuid.UUID, rewardID string) (*RedeemResult, error) {
	// Fail fast on an unknown reward before touching the account row.
	snapshot, err := s.repo.FindByID(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if err := checkAvailable(snapshot, s.clock.Now()); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, userID, actionRedeem, s.opts.RedeemCooldown)
		if err != nil {
			logger.L.Warn("redeem cooldown unavailable", zap.Error(err))
		} else if !allowed {
			return nil, apperror.ErrRateLimitExceeded
		}
	}

	var (
		result *RedeemResult
		posted *ledgerService.Result
	)
	err = s.ledger.WithAccountLock(ctx, userID, func(tx *gorm.DB, acc *entity.Account) error {
		repo := s.repo.WithTx(tx)
		now := s.clock.Now()

		// Lock order is account, then reward. The reward row only needs a lock
		// when the row read in this transaction carries a global cap.
		reward, err := repo.FindByID(ctx, rewardID)
		if err != nil {
			return err
		}
		if reward.MaxRedemptions != nil {
			if reward, err = repo.LockByID(ctx, rewardID); err != nil {
				return err
			}
		}
		if err := checkAvailable(reward, now); err != nil {
			return err
		}

		if reward.MaxRedemptions != nil {
			total, err := repo.CountRedemptions(ctx, reward.ID)
			if err != nil {
				return err
			}
			if total >= int64(*reward.MaxRedemptions) {
				return apperror.ErrRedemptionLimitReached
			}
		}
		if reward.MaxPerUser != nil {
			mine, err := repo.CountUserRedemptions(ctx, reward.ID, userID)
			if err != nil {
				return err
			}
			if mine >= int64(*reward.MaxPerUser) {
				return apperror.ErrUserRedemptionLimitReached
			}
		}

		if acc.Balance < reward.CoinsCost {
			return apperror.ErrInsufficientBalance
		}

		code, err := s.uniqueCode(ctx, repo)
		if err != nil {
			return err
		}

		redemptionID, err := uuid.NewV7()
		if err != nil {
			return err
		}
		redemption := &entity.CouponRedemption{
			ID:         redemptionID,
			UserID:     userID,
			RewardID:   reward.ID,
			CouponCode: code,
			CoinsSpent: reward.CoinsCost,
			Status:     entity.CouponStatusActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.opts.CouponTTL),
		}

		prevLevel := acc.Level
		entry, err := s.ledger.Post(ctx, tx, acc, ledgerService.PostRequest{
			UserID:      userID,
			Direction:   entity.DirectionRedeemed,
			Amount:      reward.CoinsCost,
			Source:      entity.SourceRewardRedemption,
			Description: fmt.Sprintf("Redeemed %s", reward.Name),
			Metadata: map[string]any{
				"reward_id":     reward.ID,
				"redemption_id": redemptionID.String(),
				"coupon_code":   code,
			},
			ReferenceID: redemptionID.String(),
		})
		if err != nil {
			return err
		}

		if err := repo.CreateRedemption(ctx, redemption); err != nil {
			return fmt.Errorf("create redemption: %w", err)
		}

		result = &RedeemResult{Redemption: *redemption, Reward: *reward, RemainingBalance: acc.Balance}
		posted = &ledgerService.Result{Entry: *entry, Account: *acc, PreviousLevel: prevLevel}
		return nil
	})
	if err != nil {
		if s.limiter != nil {
			// A rejected attempt should not block a corrected retry.
			if clearErr := s.limiter.Clear(ctx, userID, actionRedeem); clearErr != nil {
				logger.L.Warn("redeem cooldown clear", zap.String("user_id", userID.String()), zap.Error(clearErr))
			}
		}
		return nil, err
	}

	s.ledger.Announce(ctx, posted)
	return result, nil
}

// uniqueCode generates codes until one is unused. The unique index on the
// column still guards the insert.
func (s *rewardService) uniqueCode(ctx context.Context, repo rewardRepo.RewardRepository) (string, error) {
	for i := 0; i < s.opts.CouponMaxAttempts; i++ {
		code, err := s.coupons.Generate()
		if err != nil {
			return "", err
		}
		exists, err := repo.CouponExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		logger.L.Warn("coupon code collision", zap.Int("attempt", i+1))
	}
	return "", apperror.ErrCouponGeneration
}

func (s *rewardService) ListRewards(ctx context.Context, userID *uuid.UUID) ([]RewardView, error) {
	rewards, err := s.repo.ListAvailable(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rewards))
	for _, r := range rewards {
		ids = append(ids, r.ID)
	}
	totals, err := s.repo.CountRedemptionsByReward(ctx, ids, nil)
	if err != nil {
		return nil, err
	}

	var (
		balance int64
		mine    map[string]int64
	)
	if userID != nil {
		if balance, err = s.ledger.GetBalance(ctx, *userID); err != nil {
			return nil, err
		}
		if mine, err = s.repo.CountRedemptionsByReward(ctx, ids, userID); err != nil {
			return nil, err
		}
	}

	views := make([]RewardView, 0, len(rewards))
	for _, r := range rewards {
		v := RewardView{Reward: r, TotalRedeemed: totals[r.ID]}
		soldOut := false
		if r.MaxRedemptions != nil {
			left := int64(*r.MaxRedemptions) - totals[r.ID]
			if left < 0 {
				left = 0
			}
			v.RemainingStock = &left
			soldOut = left == 0
		}

		if userID != nil {
			canAfford := balance >= r.CoinsCost
			count := mine[r.ID]
			userCapped := r.MaxPerUser != nil && count >= int64(*r.MaxPerUser)
			canRedeem := canAfford && !soldOut && !userCapped

			v.CanAfford = &canAfford
			v.UserCanRedeem = &canRedeem
			v.UserRedemptions = &count
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *rewardService) ListRedemptions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]RedemptionView, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	redemptions, err := s.repo.ListRedemptions(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountUserTotal(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	now := s.clock.Now()
	views := make([]RedemptionView, 0, len(redemptions))
	for _, r := range redemptions {
		views = append(views, RedemptionView{
			Redemption: r,
			RewardName: r.Reward.Name,
			Status:     r.StatusAt(now),
		})
	}
	return views, total, nil
}

// SearchRewards narrows ListRewards to a free-text query. Without a search
// index it matches on name and description.
func (s *rewardService) SearchRewards(ctx context.Context, query string, userID *uuid.UUID) ([]RewardView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", apperror.ErrInvalidInput)
	}

	views, err := s.ListRewards(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.search.Enabled() {
		q := strings.ToLower(query)
		out := make([]RewardView, 0, len(views))
		for _, v := range views {
			if strings.Contains(strings.ToLower(v.Reward.Name), q) ||
				strings.Contains(strings.ToLower(v.Reward.Description), q) {
				out = append(out, v)
			}
		}
		return out, nil
	}

	ids, err := s.search.SearchRewards(ctx, query, len(views)+1)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]RewardView, len(views))
	for _, v := range views {
		byID[v.Reward.ID] = v
	}
	// Hits for rewards that expired since indexing are dropped here.
	out := make([]RewardView, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *rewardService) Sync(ctx context.Context) error {
	rewards, err := s.catalog.RewardEntities()
	if err != nil {
		return err
	}
	if err := s.repo.Sync(ctx, rewards); err != nil {
		return err
	}
	if err := s.search.IndexRewards(ctx, rewards); err != nil {
		logger.L.Warn("reward search index", zap.Error(err))
	}
	return nil
}
