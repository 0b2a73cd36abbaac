package service

import (
	"context"
	"fmt"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	badgeRepo "anoa.com/loyaltyledger/internal/modules/badge/repository"
	notifService "anoa.com/loyaltyledger/internal/modules/notification/service"
	"anoa.com/loyaltyledger/pkg/clock"
	"anoa.com/loyaltyledger/pkg/logger"
	"anoa.com/loyaltyledger/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Trigger is the fact that changed: a category and its new value.
type Trigger struct {
	Category entity.BadgeCategory
	Value    int64
}

func StreakReached(days int) Trigger {
	return Trigger{Category: entity.BadgeCategoryStreak, Value: int64(days)}
}

func PointsReached(points int64) Trigger {
	return Trigger{Category: entity.BadgeCategoryPoints, Value: points}
}

func CoursesCompleted(n int64) Trigger {
	return Trigger{Category: entity.BadgeCategoryCourse, Value: n}
}

type BadgeService interface {
	// Evaluate awards every badge the triggers satisfy and returns only the
	// ones newly earned. Badges are checked in ascending threshold order.
	// tx may be nil outside a transaction.
	Evaluate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggers ...Trigger) ([]entity.Badge, error)
	// Announce reports badges after their transaction committed.
	Announce(ctx context.Context, userID uuid.UUID, badges []entity.Badge)
	ListEarned(ctx context.Context, userID uuid.UUID) ([]entity.UserBadge, error)
	Sync(ctx context.Context) error
}

type badgeService struct {
	repo                badgeRepo.BadgeRepository
	catalog             *catalog.Catalog
	clock               clock.Clock
	notificationService notifService.NotificationService
}

func NewBadgeService(repo badgeRepo.BadgeRepository, cat *catalog.Catalog, clk clock.Clock, notificationService notifService.NotificationService) BadgeService {
	return &badgeService{
		repo:                repo,
		catalog:             cat,
		clock:               clk,
		notificationService: notificationService,
	}
}

func (s *badgeService) Evaluate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, triggers ...Trigger) ([]entity.Badge, error) {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}

	now := s.clock.Now()
	var awarded []entity.Badge
	for _, trigger := range triggers {
		for _, def := range s.catalog.BadgesFor(trigger.Category) {
			if trigger.Value < def.Threshold {
				// sorted ascending, nothing further can match
				break
			}

			ok, err := repo.Award(ctx, &entity.UserBadge{UserID: userID, BadgeID: def.ID, EarnedAt: now})
			if err != nil {
				return nil, fmt.Errorf("award badge %s: %w", def.ID, err)
			}
			if ok {
				awarded = append(awarded, def.Entity())
			}
		}
	}
	return awarded, nil
}

func (s *badgeService) Announce(ctx context.Context, userID uuid.UUID, badges []entity.Badge) {
	for _, b := range badges {
		metrics.BadgesAwarded.WithLabelValues(b.ID).Inc()
		logger.L.Info("badge awarded", zap.String("user_id", userID.String()), zap.String("badge", b.ID))

		if s.notificationService == nil {
			continue
		}
		if err := s.notificationService.CreateNotification(ctx, notifService.BadgeUnlocked(userID, b)); err != nil {
			logger.L.Warn("badge notification", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
}

func (s *badgeService) ListEarned(ctx context.Context, userID uuid.UUID) ([]entity.UserBadge, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *badgeService) Sync(ctx context.Context) error {
	return s.repo.Sync(ctx, s.catalog.BadgeEntities())
}
