package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerEntrySigned(t *testing.T) {
	assert.Equal(t, int64(40), LedgerEntry{Direction: DirectionEarned, Amount: 40}.Signed())
	assert.Equal(t, int64(-40), LedgerEntry{Direction: DirectionRedeemed, Amount: 40}.Signed())
}

func TestSourceValid(t *testing.T) {
	assert.True(t, SourceDailyLogin.Valid())
	assert.True(t, SourceRewardRedemption.Valid())
	assert.False(t, Source("GIFT").Valid())
	assert.True(t, DirectionEarned.Valid())
	assert.False(t, Direction("BOTH").Valid())
}

func TestRewardExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, Reward{}.ExpiredAt(now), "no expiry")
	assert.True(t, Reward{ExpiresAt: &past}.ExpiredAt(now))
	assert.True(t, Reward{ExpiresAt: &now}.ExpiredAt(now), "boundary counts as expired")
	assert.False(t, Reward{ExpiresAt: &future}.ExpiredAt(now))
}

func TestCouponRedemptionStatusAt(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		status  CouponStatus
		expires time.Time
		want    CouponStatus
	}{
		{name: "active before expiry", status: CouponStatusActive, expires: now.Add(time.Hour), want: CouponStatusActive},
		{name: "active past expiry", status: CouponStatusActive, expires: now.Add(-time.Hour), want: CouponStatusExpired},
		{name: "used stays used", status: CouponStatusUsed, expires: now.Add(-time.Hour), want: CouponStatusUsed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CouponRedemption{Status: tt.status, ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, r.StatusAt(now))
		})
	}
}

func TestAssignID(t *testing.T) {
	var id uuid.UUID
	require.NoError(t, assignID(&id))
	assert.Equal(t, uuid.Version(7), id.Version())

	keep := uuid.New()
	fixed := keep
	require.NoError(t, assignID(&fixed))
	assert.Equal(t, keep, fixed)
}
