package service

import "time"

type Period string

const (
	PeriodAllTime Period = "all_time"
	PeriodMonthly Period = "monthly"
	PeriodWeekly  Period = "weekly"
)

// ParsePeriod accepts an empty string as all_time.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case "", PeriodAllTime:
		return PeriodAllTime, true
	case PeriodMonthly, PeriodWeekly:
		return Period(s), true
	}
	return "", false
}

// Since returns the start of the period window ending at now. All-time has no
// window.
func (p Period) Since(now time.Time) (time.Time, bool) {
	switch p {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), true
	case PeriodMonthly:
		return now.AddDate(0, -1, 0), true
	}
	return time.Time{}, false
}

// Weekly activity thresholds, in coins earned during the window.
// Monthly windows use four times these.
const (
	ActivityOnFire   = 150
	ActivityTrending = 75
	ActivityActive   = 30
)

// ActivityLabel is a display hint only. It never influences ordering.
func ActivityLabel(p Period, recentEarned int64) string {
	scale := int64(1)
	if p == PeriodMonthly {
		scale = 4
	}

	switch {
	case recentEarned >= ActivityOnFire*scale:
		return "On Fire"
	case recentEarned >= ActivityTrending*scale:
		return "Trending"
	case recentEarned >= ActivityActive*scale:
		return "Active"
	default:
		return ""
	}
}
