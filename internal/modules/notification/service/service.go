package service

import (
	"context"
	"encoding/json"
	"fmt"

	"anoa.com/loyaltyledger/internal/entity"
	notifRepo "anoa.com/loyaltyledger/internal/modules/notification/repository"
	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis pub/sub channel a user's notifications are pushed on.
func Channel(userID uuid.UUID) string {
	return fmt.Sprintf("user_notifications:%s", userID.String())
}

type NotificationService interface {
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	if s.redisClient != nil {
		payload, err := json.Marshal(notification)
		if err != nil {
			return nil
		}
		if err := s.redisClient.Publish(ctx, Channel(notification.UserID), payload).Err(); err != nil {
			logger.L.Warn("publish notification", zap.String("user_id", notification.UserID.String()), zap.Error(err))
		}
	}

	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.MarkAsRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrNotFound
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func BadgeUnlocked(userID uuid.UUID, badge entity.Badge) *entity.Notification {
	return &entity.Notification{
		UserID:     userID,
		Type:       entity.NotificationBadgeUnlocked,
		EntityType: "badge",
		EntityID:   badge.ID,
		Title:      "Badge unlocked",
		Message:    fmt.Sprintf("You unlocked the %s badge!", badge.Name),
	}
}

func CouponIssued(userID uuid.UUID, redemption entity.CouponRedemption, rewardName string) *entity.Notification {
	return &entity.Notification{
		UserID:     userID,
		Type:       entity.NotificationCouponIssued,
		EntityType: "redemption",
		EntityID:   redemption.ID.String(),
		Title:      "Reward redeemed",
		Message: fmt.Sprintf("Your coupon %s for %s is valid until %s.",
			redemption.CouponCode, rewardName, redemption.ExpiresAt.Format("2 Jan 2006")),
	}
}

func LevelUp(userID uuid.UUID, previous, current string, points int64) *entity.Notification {
	return &entity.Notification{
		UserID:     userID,
		Type:       entity.NotificationLevelUp,
		EntityType: "level",
		EntityID:   current,
		Title:      "Level up",
		Message:    fmt.Sprintf("Congratulations! You moved from %s to %s with %d points.", previous, current, points),
	}
}
