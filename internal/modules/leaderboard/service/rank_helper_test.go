package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"", PeriodAllTime, true},
		{"all_time", PeriodAllTime, true},
		{"monthly", PeriodMonthly, true},
		{"weekly", PeriodWeekly, true},
		{"yearly", "", false},
	}

	for _, tt := range tests {
		got, ok := ParsePeriod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPeriodSince(t *testing.T) {
	now := time.Date(2026, time.March, 31, 10, 0, 0, 0, time.UTC)

	since, ok := PeriodWeekly.Since(now)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, time.March, 24, 10, 0, 0, 0, time.UTC), since)

	since, ok = PeriodMonthly.Since(now)
	assert.True(t, ok)
	// AddDate normalizes February 31st.
	assert.Equal(t, time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC), since)

	_, ok = PeriodAllTime.Since(now)
	assert.False(t, ok)
}

func TestActivityLabel(t *testing.T) {
	tests := []struct {
		period Period
		earned int64
		want   string
	}{
		{PeriodWeekly, 0, ""},
		{PeriodWeekly, 29, ""},
		{PeriodWeekly, 30, "Active"},
		{PeriodWeekly, 75, "Trending"},
		{PeriodWeekly, 150, "On Fire"},
		{PeriodMonthly, 150, "Active"},
		{PeriodMonthly, 600, "On Fire"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ActivityLabel(tt.period, tt.earned), "%s %d", tt.period, tt.earned)
	}
}
