package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	UserID string `validate:"required,uuid"`
	Amount int    `validate:"gt=0"`
	Period string `validate:"omitempty,oneof=all_time weekly monthly"`
}

func TestFormatValidationError(t *testing.T) {
	v := validator.New()

	err := v.Struct(sample{UserID: "nope", Amount: 0, Period: "daily"})
	msg := FormatValidationError(err)

	assert.Contains(t, msg, "user_id must be a valid UUID")
	assert.Contains(t, msg, "amount must be greater than 0")
	assert.Contains(t, msg, "period must be one of [all_time weekly monthly]")
}

func TestFormatValidationError_PlainError(t *testing.T) {
	assert.Equal(t, "boom", FormatValidationError(errors.New("boom")))
}
