package service

import (
	"testing"
	"time"
	_ "time/tzdata"

	"anoa.com/loyaltyledger/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestCalculator_Next(t *testing.T) {
	calc := NewCalculator(time.UTC)

	tests := []struct {
		name    string
		last    *time.Time
		current int
		now     time.Time
		want    int
		wantErr error
	}{
		{"first claim", nil, 0, at(2026, 3, 2, 9, 0), 1, nil},
		{"consecutive day", ptr(at(2026, 3, 1, 23, 59)), 4, at(2026, 3, 2, 0, 1), 5, nil},
		{"same day", ptr(at(2026, 3, 2, 0, 0)), 4, at(2026, 3, 2, 23, 59), 0, apperror.ErrAlreadyClaimedToday},
		{"gap of one day resets", ptr(at(2026, 3, 1, 12, 0)), 9, at(2026, 3, 3, 12, 0), 1, nil},
		{"long gap resets", ptr(at(2025, 12, 1, 12, 0)), 30, at(2026, 3, 3, 12, 0), 1, nil},
		{"last claim in the future", ptr(at(2026, 3, 5, 0, 0)), 2, at(2026, 3, 3, 12, 0), 0, apperror.ErrAlreadyClaimedToday},
		{"across month end", ptr(at(2026, 2, 28, 8, 0)), 1, at(2026, 3, 1, 8, 0), 2, nil},
		{"across year end", ptr(at(2025, 12, 31, 8, 0)), 6, at(2026, 1, 1, 8, 0), 7, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Next(tt.last, tt.current, tt.now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculator_TimezoneDecidesTheDay(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta") // UTC+7
	require.NoError(t, err)

	last := at(2026, 3, 1, 16, 0) // 23:00 in Jakarta on the 1st
	now := at(2026, 3, 1, 18, 0)  // 01:00 in Jakarta on the 2nd

	_, err = NewCalculator(time.UTC).Next(&last, 1, now)
	assert.ErrorIs(t, err, apperror.ErrAlreadyClaimedToday, "same UTC day")

	got, err := NewCalculator(jakarta).Next(&last, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "consecutive Jakarta days")

	assert.Equal(t, "2026-03-02", NewCalculator(jakarta).DayKey(now))
	assert.Equal(t, "2026-03-01", NewCalculator(time.UTC).DayKey(now))
}

func TestCalculator_DST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	calc := NewCalculator(ny)

	// clocks spring forward on 2026-03-08; that civil day is only 23 hours long
	last := time.Date(2026, 3, 8, 0, 30, 0, 0, ny)
	now := time.Date(2026, 3, 9, 0, 10, 0, 0, ny)

	got, err := calc.Next(&last, 3, now)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestCalculator_Alive(t *testing.T) {
	calc := NewCalculator(time.UTC)
	now := at(2026, 3, 3, 10, 0)

	assert.False(t, calc.Alive(nil, now))
	assert.True(t, calc.Alive(ptr(at(2026, 3, 3, 1, 0)), now))
	assert.True(t, calc.Alive(ptr(at(2026, 3, 2, 1, 0)), now))
	assert.False(t, calc.Alive(ptr(at(2026, 3, 1, 23, 0)), now))

	assert.True(t, calc.CanClaim(ptr(at(2026, 3, 2, 1, 0)), now))
	assert.False(t, calc.CanClaim(ptr(at(2026, 3, 3, 1, 0)), now))
}
