package service

import (
	"context"
	"math"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	accountDto "anoa.com/loyaltyledger/internal/modules/account/dto"
	badgeService "anoa.com/loyaltyledger/internal/modules/badge/service"
	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"
	streakService "anoa.com/loyaltyledger/internal/modules/streak/service"
	commonDto "anoa.com/loyaltyledger/pkg/dto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const recentTransactions = 10

type AccountService interface {
	GetSummary(ctx context.Context, userID uuid.UUID) (*accountDto.SummaryResponse, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) (*accountDto.TransactionListResponse, error)
}

type accountService struct {
	ledger  ledgerService.LedgerService
	streak  streakService.StreakService
	badges  badgeService.BadgeService
	catalog *catalog.Catalog
}

func NewAccountService(
	ledger ledgerService.LedgerService,
	streak streakService.StreakService,
	badges badgeService.BadgeService,
	cat *catalog.Catalog,
) AccountService {
	return &accountService{
		ledger:  ledger,
		streak:  streak,
		badges:  badges,
		catalog: cat,
	}
}

func (s *accountService) GetSummary(ctx context.Context, userID uuid.UUID) (*accountDto.SummaryResponse, error) {
	// Creates the account on first access, so it must run before the fan-out.
	acc, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		entries []entity.LedgerEntry
		earned  []entity.UserBadge
		courses int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, _, err = s.ledger.ListRecent(gctx, userID, recentTransactions, 0)
		return err
	})
	g.Go(func() error {
		var err error
		earned, err = s.badges.ListEarned(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = s.ledger.CountCourses(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	status := s.streak.Status(acc)

	txs := make([]accountDto.TransactionResponse, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, accountDto.NewTransactionResponse(e))
	}

	badges := make([]accountDto.BadgeResponse, 0, len(earned))
	for _, ub := range earned {
		badges = append(badges, accountDto.BadgeResponse{
			ID:       ub.BadgeID,
			Name:     ub.Badge.Name,
			Category: ub.Badge.Category,
			Icon:     ub.Badge.Icon,
			EarnedAt: ub.EarnedAt,
		})
	}

	return &accountDto.SummaryResponse{
		UserID:      acc.UserID,
		Balance:     acc.Balance,
		TotalEarned: acc.TotalEarned,
		TotalSpent:  acc.TotalSpent,
		Points:      acc.TotalPoints,
		Level:       s.catalog.LevelFor(acc.TotalPoints),
		Streak: accountDto.StreakResponse{
			Current:        status.CurrentStreak,
			Longest:        status.LongestStreak,
			LastClaimAt:    status.LastClaimAt,
			CanClaimToday:  status.CanClaimToday,
			NextClaimCoins: status.NextReward.Coins,
		},
		CoursesCompleted:   courses,
		RecentTransactions: txs,
		Badges:             badges,
		Achievements:       s.achievements(earned, status.CurrentStreak, acc.TotalPoints, courses),
	}, nil
}

// achievements lists every catalog badge in catalog order with progress
// measured against the same quantity the evaluator checks.
func (s *accountService) achievements(earned []entity.UserBadge, streak int, points, courses int64) []accountDto.AchievementResponse {
	earnedAt := make(map[string]entity.UserBadge, len(earned))
	for _, ub := range earned {
		earnedAt[ub.BadgeID] = ub
	}

	out := make([]accountDto.AchievementResponse, 0, len(s.catalog.Badges))
	for _, b := range s.catalog.Badges {
		var current int64
		switch b.Category {
		case entity.BadgeCategoryStreak:
			current = int64(streak)
		case entity.BadgeCategoryPoints:
			current = points
		case entity.BadgeCategoryCourse:
			current = courses
		}

		a := accountDto.AchievementResponse{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Category:    b.Category,
			Icon:        b.Icon,
			Current:     current,
			Threshold:   b.Threshold,
			Progress:    progress(current, b.Threshold),
		}
		if ub, ok := earnedAt[b.ID]; ok {
			at := ub.EarnedAt
			a.Earned = true
			a.EarnedAt = &at
			a.Progress = 100
		}
		out = append(out, a)
	}
	return out
}

func progress(current, threshold int64) float64 {
	if threshold <= 0 || current >= threshold {
		return 100
	}
	if current <= 0 {
		return 0
	}
	return math.Round(float64(current)/float64(threshold)*10000) / 100
}

func (s *accountService) ListTransactions(ctx context.Context, userID uuid.UUID, page, limit int) (*accountDto.TransactionListResponse, error) {
	limit, offset := commonDto.PaginationQuery{Page: page, Limit: limit}.Bounds(20)

	entries, total, err := s.ledger.ListRecent(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	data := make([]accountDto.TransactionResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, accountDto.NewTransactionResponse(e))
	}
	return &accountDto.TransactionListResponse{
		Data: data,
		Meta: commonDto.NewPaginationMeta(page, limit, total),
	}, nil
}
