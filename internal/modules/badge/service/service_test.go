package service

import (
	"context"
	"testing"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	badgeRepo "anoa.com/loyaltyledger/internal/modules/badge/repository"
	"anoa.com/loyaltyledger/internal/testutil"
	"anoa.com/loyaltyledger/pkg/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (BadgeService, *gorm.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	cat := catalog.Default()
	testutil.SeedCatalog(t, db, cat)

	clk := clock.NewManual(testutil.Day(2026, time.March, 2, 9))
	return NewBadgeService(badgeRepo.NewBadgeRepository(db), cat, clk, nil), db
}

func ids(badges []entity.Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.ID)
	}
	return out
}

func TestEvaluate_AscendingThreshold(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	awarded, err := svc.Evaluate(ctx, nil, uuid.New(), StreakReached(15))
	require.NoError(t, err)
	assert.Equal(t, []string{"streak-starter", "week-streak", "fortnight-streak"}, ids(awarded))
}

func TestEvaluate_Idempotent(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Evaluate(ctx, nil, userID, StreakReached(7))
	require.NoError(t, err)
	assert.Equal(t, []string{"streak-starter", "week-streak"}, ids(first))

	second, err := svc.Evaluate(ctx, nil, userID, StreakReached(7))
	require.NoError(t, err)
	assert.Empty(t, second, "re-evaluating the same state awards nothing")

	var count int64
	require.NoError(t, db.Model(&entity.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, "week-streak").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	svc, _ := setup(t)

	awarded, err := svc.Evaluate(context.Background(), nil, uuid.New(), StreakReached(2), PointsReached(99), CoursesCompleted(0))
	require.NoError(t, err)
	assert.Empty(t, awarded)
}

func TestEvaluate_MultipleTriggersKeepOrder(t *testing.T) {
	svc, _ := setup(t)

	awarded, err := svc.Evaluate(context.Background(), nil, uuid.New(), StreakReached(3), PointsReached(100), CoursesCompleted(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"streak-starter", "points-100", "first-course"}, ids(awarded))
}

func TestEvaluate_InsideRolledBackTransaction(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		awarded, err := svc.Evaluate(ctx, tx, userID, StreakReached(3))
		require.NoError(t, err)
		require.Len(t, awarded, 1)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	earned, err := svc.ListEarned(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, earned, "awards roll back with their transaction")
}

func TestListEarned(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Evaluate(ctx, nil, userID, PointsReached(1000))
	require.NoError(t, err)

	earned, err := svc.ListEarned(ctx, userID)
	require.NoError(t, err)
	require.Len(t, earned, 2)
	assert.Equal(t, "points-100", earned[0].BadgeID)
	assert.Equal(t, "Century", earned[0].Badge.Name)
	assert.Equal(t, "points-1000", earned[1].BadgeID)
}

func TestSync_Upserts(t *testing.T) {
	svc, db := setup(t)

	require.NoError(t, db.Model(&entity.Badge{}).Where("id = ?", "week-streak").Update("name", "Old Name").Error)
	require.NoError(t, svc.Sync(context.Background()))

	var b entity.Badge
	require.NoError(t, db.First(&b, "id = ?", "week-streak").Error)
	assert.Equal(t, "Week Streak", b.Name)
}
