package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("STREAK_TIMEZONE", "")
	t.Setenv("COUPON_TTL", "")
	t.Setenv("TX_MAX_RETRIES", "")
	t.Setenv("RECONCILE_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.StreakTimezone.String())
	assert.Equal(t, 30*24*time.Hour, cfg.CouponTTL)
	assert.Equal(t, 3, cfg.TxMaxRetries)
	assert.Equal(t, 5, cfg.CouponMaxAttempts)
	assert.Equal(t, int64(1), cfg.SnowflakeNode)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, "0 3 * * *", cfg.ReconcileSchedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("STREAK_TIMEZONE", "Asia/Jakarta")
	t.Setenv("REDEEM_COOLDOWN", "5s")
	t.Setenv("COUPON_MAX_ATTEMPTS", "9")
	t.Setenv("RECONCILE_SCHEDULE", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Jakarta", cfg.StreakTimezone.String())
	assert.Equal(t, 5*time.Second, cfg.RedeemCooldown)
	assert.Equal(t, 9, cfg.CouponMaxAttempts)
	assert.Empty(t, cfg.ReconcileSchedule)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	t.Run("timezone", func(t *testing.T) {
		t.Setenv("STREAK_TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.ErrorContains(t, err, "STREAK_TIMEZONE")
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("COUPON_TTL", "thirty days")
		_, err := Load()
		assert.ErrorContains(t, err, "COUPON_TTL")
	})

	t.Run("production needs a secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})
}
