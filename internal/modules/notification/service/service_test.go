package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	notifRepo "anoa.com/loyaltyledger/internal/modules/notification/repository"
	"anoa.com/loyaltyledger/internal/testutil"
	"anoa.com/loyaltyledger/pkg/apperror"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) NotificationService {
	t.Helper()
	db := testutil.NewDB(t)
	return NewNotificationService(notifRepo.NewNotificationRepository(db), nil)
}

func TestNotifications_Lifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	userID, other := uuid.New(), uuid.New()

	badge := entity.Badge{ID: "week-streak", Name: "Week Warrior"}
	require.NoError(t, svc.CreateNotification(ctx, BadgeUnlocked(userID, badge)))
	require.NoError(t, svc.CreateNotification(ctx, LevelUp(userID, "Newcomer", "Learner", 120)))
	require.NoError(t, svc.CreateNotification(ctx, BadgeUnlocked(other, badge)))

	count, err := svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	list, err := svc.GetNotifications(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, n := range list {
		assert.Equal(t, userID, n.UserID)
	}

	require.NoError(t, svc.MarkAsRead(ctx, userID, list[0].ID))
	count, err = svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, svc.MarkAllAsRead(ctx, userID))
	count, err = svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.UnreadCount(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "other users are untouched")
}

func TestMarkAsRead_OnlyOwner(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	owner, intruder := uuid.New(), uuid.New()

	n := BadgeUnlocked(owner, entity.Badge{ID: "first-course", Name: "First Steps"})
	require.NoError(t, svc.CreateNotification(ctx, n))

	err := svc.MarkAsRead(ctx, intruder, n.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	err = svc.MarkAsRead(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCouponIssued(t *testing.T) {
	userID := uuid.New()
	redemption := entity.CouponRedemption{ID: uuid.New(), CouponCode: "LL-ABCDEFGHJK"}

	n := CouponIssued(userID, redemption, "10% Discount")
	assert.Equal(t, entity.NotificationCouponIssued, n.Type)
	assert.Equal(t, redemption.ID.String(), n.EntityID)
	assert.Contains(t, n.Message, "LL-ABCDEFGHJK")
}

func TestCreateNotification_PublishesToUserChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewNotificationService(notifRepo.NewNotificationRepository(testutil.NewDB(t)), rdb)
	ctx := context.Background()
	userID := uuid.New()

	sub := rdb.Subscribe(ctx, Channel(userID))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	n := BadgeUnlocked(userID, entity.Badge{ID: "streak-starter", Name: "Streak Starter"})
	require.NoError(t, svc.CreateNotification(ctx, n))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "user_notifications:"+userID.String(), msg.Channel)

		var got entity.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, entity.NotificationBadgeUnlocked, got.Type)
		assert.Equal(t, "streak-starter", got.EntityID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestCreateNotification_RedisDownStillPersists(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	svc := NewNotificationService(notifRepo.NewNotificationRepository(testutil.NewDB(t)), rdb)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, svc.CreateNotification(ctx, LevelUp(userID, "Newcomer", "Learner", 120)))

	count, err := svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
