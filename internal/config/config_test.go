package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("PUBLIC_BASE_URL", "https://pay.example.com/")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com", cfg.PublicBaseURL)
		assert.Equal(t, "https://pay.example.com/webhook", cfg.WebhookURL())
		assert.Equal(t, 15*time.Second, cfg.PollWindow)
		assert.Equal(t, time.Second, cfg.PollInterval)
		assert.Equal(t, 8*time.Second, cfg.APITimeout)
		assert.Equal(t, 5*time.Second, cfg.AdminAPITimeout)
		assert.True(t, cfg.GatewaySurcharge.IsZero())
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("GATEWAY_SURCHARGE_PERCENT", "2.5")
		t.Setenv("POLL_INTERVAL_MS", "250")
		t.Setenv("POLL_WINDOW_SECONDS", "not-a-number")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("2.5").Equal(cfg.GatewaySurcharge))
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
		assert.Equal(t, 15*time.Second, cfg.PollWindow)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("negative surcharge", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("GATEWAY_SURCHARGE_PERCENT", "-1")
		_, err := Load()
		require.Error(t, err)
	})
}
