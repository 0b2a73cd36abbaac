package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	badgeRepo "anoa.com/loyaltyledger/internal/modules/badge/repository"
	badgeService "anoa.com/loyaltyledger/internal/modules/badge/service"
	ledgerRepo "anoa.com/loyaltyledger/internal/modules/ledger/repository"
	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"
	"anoa.com/loyaltyledger/internal/testutil"
	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	ledger ledgerService.LedgerService
	svc    StreakService
	clock  *clock.Manual
}

func setup(t *testing.T) fixture {
	t.Helper()

	db := testutil.NewDB(t)
	cat := catalog.Default()
	testutil.SeedCatalog(t, db, cat)

	clk := clock.NewManual(testutil.Day(2026, time.March, 1, 9))
	badges := badgeService.NewBadgeService(badgeRepo.NewBadgeRepository(db), cat, clk, nil)
	ledger := ledgerService.NewLedgerService(db, ledgerRepo.NewLedgerRepository(db), badges, nil, cat, clk, 3)

	return fixture{
		db:     db,
		ledger: ledger,
		svc:    NewStreakService(ledger, cat, NewCalculator(time.UTC), clk),
		clock:  clk,
	}
}

func (f fixture) nextDay() {
	f.clock.Advance(24 * time.Hour)
}

func TestClaim_FirstClaim(t *testing.T) {
	f := setup(t)
	userID := uuid.New()

	res, err := f.svc.ClaimDailyReward(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(10), res.CoinsEarned)
	assert.Equal(t, int64(10), res.TotalCoins)
	assert.Empty(t, res.BadgesEarned)

	acc, err := f.ledger.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acc.Balance)
	assert.Equal(t, 1, acc.CurrentStreak)
	assert.Equal(t, 1, acc.LongestStreak)
	require.NotNil(t, acc.LastClaimAt)
	assert.True(t, acc.LastClaimAt.Equal(f.clock.Now()))
}

func TestClaim_AlreadyClaimedToday(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.ClaimDailyReward(ctx, userID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Hour) // still the same UTC day
	_, err = f.svc.ClaimDailyReward(ctx, userID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyClaimedToday)

	balance, err := f.ledger.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance, "a rejected claim awards nothing")
}

func TestClaim_ConsecutiveDays(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	const days = 10
	for i := 1; i <= days; i++ {
		res, err := f.svc.ClaimDailyReward(ctx, userID)
		require.NoError(t, err, "day %d", i)
		assert.Equal(t, i, res.Streak)
		f.nextDay()
	}

	acc, err := f.ledger.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, days, acc.CurrentStreak)
	assert.Equal(t, int64(6*10+4*20), acc.Balance, "days 7 to 10 pay the week tier")
}

func TestClaim_SkippedDayResets(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	res, err := f.svc.ClaimDailyReward(ctx, userID) // day 1
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)

	f.nextDay() // day 2
	res, err = f.svc.ClaimDailyReward(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak)

	f.nextDay() // day 3 skipped
	f.nextDay() // day 4
	res, err = f.svc.ClaimDailyReward(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 2, res.LongestStreak, "the longest streak survives a reset")
}

func TestClaim_WeekStreakBadgeAwardedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	var awardedAt = map[string]int{}
	for day := 1; day <= 8; day++ {
		res, err := f.svc.ClaimDailyReward(ctx, userID)
		require.NoError(t, err)
		for _, b := range res.BadgesEarned {
			_, dup := awardedAt[b.ID]
			assert.False(t, dup, "badge %s awarded twice", b.ID)
			awardedAt[b.ID] = day
		}
		f.nextDay()
	}

	assert.Equal(t, map[string]int{"streak-starter": 3, "week-streak": 7}, awardedAt)

	var count int64
	require.NoError(t, f.db.Model(&entity.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, "week-streak").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaim_ConcurrentSameDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	const workers = 2
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.svc.ClaimDailyReward(ctx, userID)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, apperror.ErrAlreadyClaimedToday):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, already)

	var entries int64
	require.NoError(t, f.db.Model(&entity.LedgerEntry{}).Where("user_id = ?", userID).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestClaim_DuplicateDayKeyIsAlreadyClaimed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	// an entry for today exists although the account row says otherwise
	_, err := f.ledger.ApplyTransaction(ctx, ledgerService.PostRequest{
		UserID:      userID,
		Direction:   entity.DirectionEarned,
		Amount:      10,
		Source:      entity.SourceDailyLogin,
		ReferenceID: NewCalculator(time.UTC).DayKey(f.clock.Now()),
	})
	require.NoError(t, err)

	_, err = f.svc.ClaimDailyReward(ctx, userID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyClaimedToday)

	acc, err := f.ledger.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, acc.CurrentStreak, "the failed claim rolled back its streak update")
}

func TestStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()

	acc, err := f.ledger.GetAccount(ctx, userID)
	require.NoError(t, err)
	st := f.svc.Status(acc)
	assert.True(t, st.CanClaimToday)
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, int64(10), st.NextReward.Coins)

	for i := 0; i < 6; i++ {
		_, err := f.svc.ClaimDailyReward(ctx, userID)
		require.NoError(t, err)
		f.nextDay()
	}

	acc, err = f.ledger.GetAccount(ctx, userID)
	require.NoError(t, err)
	st = f.svc.Status(acc)
	assert.True(t, st.CanClaimToday)
	assert.Equal(t, 6, st.CurrentStreak)
	assert.Equal(t, int64(20), st.NextReward.Coins, "the seventh claim pays the week tier")

	f.nextDay()
	f.nextDay()
	st = f.svc.Status(acc)
	assert.Equal(t, 0, st.CurrentStreak, "a broken streak reads as zero")
	assert.Equal(t, 6, st.LongestStreak)
}
