package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("CREDITS_PER_PERIOD", "")
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("LEDGER_BACKEND", "")
	t.Setenv("CHECKIN_QUEUE_KEY", "")

	cfg := Load()
	assert.Equal(t, "attendance:checkins", cfg.CheckinQueue)
	assert.Equal(t, devSigningKey, cfg.JWTSigningKey)
	assert.Equal(t, 3, cfg.CreditsPerPeriod)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.True(t, cfg.SeedEndpointEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_PREVIOUS_SIGNING_KEYS", " old-one , ,old-two")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("CREDITS_PER_PERIOD", "7")
	t.Setenv("SEED_ENDPOINT_ENABLED", "false")
	t.Setenv("CREDITS_EXHAUSTED_POLICY", "hard_stop")

	cfg := Load()
	assert.Equal(t, []string{"old-one", "old-two"}, cfg.JWTPreviousKeys)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7, cfg.CreditsPerPeriod)
	assert.False(t, cfg.SeedEndpointEnabled)
	assert.Equal(t, "hard_stop", cfg.CreditsExhaustedPolicy)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_ACCESS_TTL", "soon")
	t.Setenv("CREDITS_PER_PERIOD", "many")
	t.Setenv("LOG_PRETTY", "perhaps")
	t.Setenv("APP_ENV", "dev")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 3, cfg.CreditsPerPeriod)
	assert.True(t, cfg.LogPretty)
}

func TestValidate(t *testing.T) {
	base := App{
		Env:                    "production",
		HTTPPort:               "8081",
		JWTSigningKey:          "a-production-grade-secret",
		AccessTTL:              time.Minute,
		CreditsPerPeriod:       3,
		CreditsExhaustedPolicy: "retry",
		StorageBackend:         "postgres",
		LedgerBackend:          "redis",
	}
	require.NoError(t, base.Validate())

	missing := base
	missing.JWTSigningKey = ""
	assert.ErrorContains(t, missing.Validate(), "JWT_SIGNING_KEY")

	weak := base
	weak.JWTSigningKey = devSigningKey
	assert.Error(t, weak.Validate())

	mixed := base
	mixed.StorageBackend = "memory"
	mixed.LedgerBackend = "postgres"
	assert.ErrorContains(t, mixed.Validate(), "requires STORAGE_BACKEND=postgres")

	policy := base
	policy.CreditsExhaustedPolicy = "sometimes"
	assert.ErrorContains(t, policy.Validate(), "CREDITS_EXHAUSTED_POLICY")
}

func TestLoad_ProductionHasNoDefaultKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")
	cfg := Load()
	assert.Empty(t, cfg.JWTSigningKey)
	assert.Error(t, cfg.Validate())
}
