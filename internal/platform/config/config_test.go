package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DefaultMaxDailyAttempts, cfg.Engine.MaxDailyAttempts)
	assert.Equal(t, DefaultMatchThreshold, cfg.Engine.MatchThreshold)
	assert.Equal(t, DefaultScoringTimeout, cfg.Scoring.Timeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_DAILY_ATTEMPTS", "3")
	t.Setenv("SCORING_BASE_URL", "http://scorer.local")
	t.Setenv("SCORING_TIMEOUT", "5s")

	cfg := FromEnv()

	assert.Equal(t, 3, cfg.Engine.MaxDailyAttempts)
	assert.Equal(t, "http://scorer.local", cfg.Scoring.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Scoring.Timeout)
}

func TestValidate(t *testing.T) {
	t.Run("scorer URL is mandatory", func(t *testing.T) {
		var cfg Config
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SCORING_BASE_URL")
	})

	t.Run("stores may stay unset", func(t *testing.T) {
		cfg := Config{Scoring: Scoring{BaseURL: "http://scorer.local"}}
		assert.NoError(t, cfg.Validate())
	})
}
