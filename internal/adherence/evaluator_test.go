package adherence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "caresignal/pkg/domain-errors"
)

func testConfig() Config {
	return Config{
		MaxDailyAttempts:      10,
		MatchThreshold:        0.65,
		TextScoreMinThreshold: 0.25,
	}
}

func f(v float64) *float64 { return &v }

func TestCheckQuota(t *testing.T) {
	cfg := testConfig()

	t.Run("allows attempts below the quota", func(t *testing.T) {
		assert.NoError(t, CheckQuota(0, cfg))
		assert.NoError(t, CheckQuota(9, cfg))
	})

	t.Run("rejects the attempt once the quota is spent", func(t *testing.T) {
		err := CheckQuota(10, cfg)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeQuotaExhausted))
	})

	t.Run("rejects attempts beyond the quota", func(t *testing.T) {
		err := CheckQuota(14, cfg)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeQuotaExhausted))
	})
}

func TestEvaluate(t *testing.T) {
	cfg := testConfig()

	t.Run("approves when final score meets the threshold", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 0.8}, 0, cfg)
		assert.True(t, v.Approved)
		assert.Empty(t, v.Reason)
		assert.Equal(t, 1, v.AttemptsUsed)
		assert.Equal(t, 9, v.AttemptsRemaining)
	})

	t.Run("rejects below the threshold", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 0.5}, 3, cfg)
		assert.False(t, v.Approved)
		assert.Equal(t, ReasonScoreBelowThreshold, v.Reason)
		assert.Equal(t, 4, v.AttemptsUsed)
		assert.Equal(t, 6, v.AttemptsRemaining)
	})

	t.Run("remote match flag is advisory only", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 0.5, Match: true}, 0, cfg)
		assert.False(t, v.Approved, "remote match must not override the local threshold")
	})

	t.Run("final score averages image and text when scorer omits it", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 0.8, Text: f(0.6)}, 0, cfg)
		assert.InDelta(t, 0.7, v.FinalScore, 1e-9)
		assert.True(t, v.Approved)
	})

	t.Run("scorer-reported final score wins", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 0.2, Text: f(0.2), Final: f(0.9)}, 0, cfg)
		assert.InDelta(t, 0.9, v.FinalScore, 1e-9)
	})

	t.Run("weak text score blocks approval", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 0.7, Text: f(0.1), Final: f(0.7)}, 0, cfg)
		assert.False(t, v.Approved)
		assert.Equal(t, ReasonTextScoreTooLow, v.Reason)
	})

	t.Run("strong image similarity bypasses the text gate", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 0.95, Text: f(0.1), Final: f(0.95)}, 0, cfg)
		assert.True(t, v.Approved)
	})

	t.Run("scores are clamped into [0,1]", func(t *testing.T) {
		v := Evaluate(Scores{Similarity: 1.7, Final: f(-0.3)}, 0, cfg)
		assert.Equal(t, 1.0, v.SimilarityScore)
		assert.Equal(t, 0.0, v.FinalScore)
	})
}

func TestFailed(t *testing.T) {
	cfg := testConfig()

	v := Failed(ReasonScoringTimeout, 4, cfg)
	assert.False(t, v.Approved)
	assert.Equal(t, ReasonScoringTimeout, v.Reason)
	assert.Equal(t, 5, v.AttemptsUsed)
	assert.Equal(t, 5, v.AttemptsRemaining)
	assert.Zero(t, v.FinalScore)
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeScore(math.NaN()))
	assert.Equal(t, 0.0, NormalizeScore(-2))
	assert.Equal(t, 1.0, NormalizeScore(3.5))
	assert.Equal(t, 0.42, NormalizeScore(0.42))
}
