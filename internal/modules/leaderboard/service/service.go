package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	leaderboardDto "anoa.com/loyaltyledger/internal/modules/leaderboard/dto"
	leaderboardRepo "anoa.com/loyaltyledger/internal/modules/leaderboard/repository"
	ledgerRepo "anoa.com/loyaltyledger/internal/modules/ledger/repository"
	streakService "anoa.com/loyaltyledger/internal/modules/streak/service"
	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/clock"
	"anoa.com/loyaltyledger/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, period string, limit int) (*leaderboardDto.LeaderboardResponse, error)
}

type leaderboardService struct {
	repo        leaderboardRepo.LeaderboardRepository
	ledgerRepo  ledgerRepo.LedgerRepository
	catalog     *catalog.Catalog
	calc        streakService.Calculator
	redisClient *redis.Client
	clock       clock.Clock
	cacheTTL    time.Duration
}

func NewLeaderboardService(
	repo leaderboardRepo.LeaderboardRepository,
	ledgerRepo ledgerRepo.LedgerRepository,
	cat *catalog.Catalog,
	calc streakService.Calculator,
	redisClient *redis.Client,
	clk clock.Clock,
	cacheTTL time.Duration,
) LeaderboardService {
	return &leaderboardService{
		repo:        repo,
		ledgerRepo:  ledgerRepo,
		catalog:     cat,
		calc:        calc,
		redisClient: redisClient,
		clock:       clk,
		cacheTTL:    cacheTTL,
	}
}

func cacheKey(p Period, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", p, limit)
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, period string, limit int) (*leaderboardDto.LeaderboardResponse, error) {
	p, ok := ParsePeriod(period)
	if !ok {
		return nil, fmt.Errorf("%w: unknown period %q", apperror.ErrInvalidInput, period)
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if cached := s.fromCache(ctx, p, limit); cached != nil {
		return cached, nil
	}

	board, err := s.build(ctx, p, limit)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, p, limit, board)
	return board, nil
}

func (s *leaderboardService) build(ctx context.Context, p Period, limit int) (*leaderboardDto.LeaderboardResponse, error) {
	now := s.clock.Now()

	accounts, err := s.repo.TopAccounts(ctx, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}

	var recent map[uuid.UUID]int64
	since, windowed := p.Since(now)
	if windowed {
		ids := make([]uuid.UUID, 0, len(accounts))
		for _, acc := range accounts {
			ids = append(ids, acc.UserID)
		}
		if recent, err = s.ledgerRepo.SumEarnedSinceByUsers(ctx, ids, since); err != nil {
			return nil, err
		}
	}

	entries := make([]leaderboardDto.LeaderboardEntry, 0, len(accounts))
	for i, acc := range accounts {
		entry := leaderboardDto.LeaderboardEntry{
			Position: i + 1,
			UserID:   acc.UserID,
			Balance:  acc.Balance,
			Level:    s.catalog.LevelFor(acc.TotalPoints),
		}
		if s.calc.Alive(acc.LastClaimAt, now) {
			entry.Streak = acc.CurrentStreak
		}
		if windowed {
			earned := recent[acc.UserID]
			entry.RecentEarned = &earned
			entry.ActivityLabel = ActivityLabel(p, earned)
		}
		entries = append(entries, entry)
	}

	return &leaderboardDto.LeaderboardResponse{
		Period:      string(p),
		Leaderboard: entries,
		TotalUsers:  total,
		GeneratedAt: now,
	}, nil
}

// Cache failures are logged and ignored; the database is always authoritative.
func (s *leaderboardService) fromCache(ctx context.Context, p Period, limit int) *leaderboardDto.LeaderboardResponse {
	if s.redisClient == nil || s.cacheTTL <= 0 {
		return nil
	}
	raw, err := s.redisClient.Get(ctx, cacheKey(p, limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L.Warn("leaderboard cache read", zap.Error(err))
		}
		return nil
	}
	var board leaderboardDto.LeaderboardResponse
	if err := json.Unmarshal(raw, &board); err != nil {
		logger.L.Warn("leaderboard cache decode", zap.Error(err))
		return nil
	}
	return &board
}

func (s *leaderboardService) toCache(ctx context.Context, p Period, limit int, board *leaderboardDto.LeaderboardResponse) {
	if s.redisClient == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(board)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, cacheKey(p, limit), raw, s.cacheTTL).Err(); err != nil {
		logger.L.Warn("leaderboard cache write", zap.Error(err))
	}
}
