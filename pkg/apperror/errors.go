package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternal          = errors.New("internal server error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Domain errors. State conflicts are expected outcomes and are rendered with a
// specific code, never as a generic failure.
var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAlreadyClaimedToday    = errors.New("daily reward already claimed today")
	ErrRewardNotFound         = errors.New("reward not found")
	ErrRewardExpired          = errors.New("reward has expired")
	ErrRedemptionLimitReached = errors.New("reward redemption limit reached")
	ErrDuplicateEvent         = errors.New("event already recorded")
	ErrConcurrentUpdate       = errors.New("account was modified concurrently")
	ErrCouponGeneration       = errors.New("could not generate a unique coupon code")
)

// ErrUserRedemptionLimitReached is also an ErrRedemptionLimitReached.
var ErrUserRedemptionLimitReached = fmt.Errorf("%w for this user", ErrRedemptionLimitReached)

// AppError is a custom error type that can hold an HTTP status code
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Order matters: the more specific error must come before the one it wraps.
var kinds = []struct {
	err    error
	kind   string
	status int
}{
	{ErrAccountNotFound, "ACCOUNT_NOT_FOUND", http.StatusNotFound},
	{ErrRewardNotFound, "REWARD_NOT_FOUND", http.StatusNotFound},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrAlreadyClaimedToday, "ALREADY_CLAIMED_TODAY", http.StatusConflict},
	{ErrUserRedemptionLimitReached, "USER_REDEMPTION_LIMIT_REACHED", http.StatusConflict},
	{ErrRedemptionLimitReached, "REDEMPTION_LIMIT_REACHED", http.StatusConflict},
	{ErrDuplicateEvent, "DUPLICATE_EVENT", http.StatusConflict},
	{ErrRewardExpired, "REWARD_EXPIRED", http.StatusGone},
	{ErrInsufficientBalance, "INSUFFICIENT_BALANCE", http.StatusUnprocessableEntity},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrRateLimitExceeded, "RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests},
}

// Kind returns a stable machine readable code for err.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "INTERNAL"
}

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	// Default to internal server error
	return http.StatusInternalServerError
}

// IsStateConflict reports whether err is an expected business outcome rather
// than a system failure.
func IsStateConflict(err error) bool {
	switch MapErrorToStatus(err) {
	case http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity, http.StatusNotFound:
		return true
	}
	return false
}
