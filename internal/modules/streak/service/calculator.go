package service

import (
	"time"

	"anoa.com/loyaltyledger/pkg/apperror"
)

const dayKeyLayout = "2006-01-02"

// Calculator decides how a daily claim affects a streak. All day math happens
// on civil dates in one fixed location; mixing zones corrupts streaks.
type Calculator struct {
	loc *time.Location
}

func NewCalculator(loc *time.Location) Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return Calculator{loc: loc}
}

func (c Calculator) Location() *time.Location {
	return c.loc
}

// Day truncates t to midnight of its civil date.
func (c Calculator) Day(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DayKey is the civil date of t, used as the claim's idempotency key.
func (c Calculator) DayKey(t time.Time) string {
	return t.In(c.loc).Format(dayKeyLayout)
}

// Next returns the streak after a claim at now. It fails with
// ErrAlreadyClaimedToday when lastClaimAt falls on now's day (or later).
func (c Calculator) Next(lastClaimAt *time.Time, current int, now time.Time) (int, error) {
	if lastClaimAt == nil {
		return 1, nil
	}

	today := c.Day(now)
	last := c.Day(*lastClaimAt)

	if !last.Before(today) {
		return 0, apperror.ErrAlreadyClaimedToday
	}
	// AddDate keeps this correct across DST transitions.
	if last.AddDate(0, 0, 1).Equal(today) {
		return current + 1, nil
	}
	return 1, nil
}

func (c Calculator) CanClaim(lastClaimAt *time.Time, now time.Time) bool {
	_, err := c.Next(lastClaimAt, 0, now)
	return err == nil
}

// Alive reports whether a streak is still unbroken at now: the last claim was
// today or yesterday.
func (c Calculator) Alive(lastClaimAt *time.Time, now time.Time) bool {
	if lastClaimAt == nil {
		return false
	}
	last := c.Day(*lastClaimAt)
	return !last.AddDate(0, 0, 1).Before(c.Day(now))
}
