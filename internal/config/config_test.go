package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 3, cfg.JobMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.JobRetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.DrainTimeout)
	assert.Equal(t, 30, cfg.NotificationRetentionDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JOB_MAX_ATTEMPTS", "5")
	t.Setenv("JOB_RETRY_BASE_DELAY", "250ms")
	t.Setenv("DRAIN_TIMEOUT", "10s")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.JobMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.JobRetryBaseDelay)
	assert.Equal(t, 10*time.Second, cfg.DrainTimeout)
	assert.Equal(t, "9090", cfg.HTTPPort)
}
