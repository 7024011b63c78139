// Package adherence computes verification verdicts from similarity scores and
// quota context. The evaluator is pure with respect to state: the caller is
// responsible for the atomic counter read beforehand and for folding the
// verdict into derived state afterwards.
package adherence

import (
	dErrors "caresignal/pkg/domain-errors"
)

// Failure reasons recorded on unapproved attempts.
const (
	ReasonScoreBelowThreshold = "score_below_threshold"
	ReasonTextScoreTooLow     = "text_score_below_threshold"
	ReasonScoringTimeout      = "scoring_timeout"
	ReasonScoringUnavailable  = "scoring_unavailable"
)

// textGateBypassScore is the image similarity above which a weak text score
// no longer blocks approval.
const textGateBypassScore = 0.9

// Config carries the deployment tunables the evaluator decides against.
type Config struct {
	MaxDailyAttempts      int
	MatchThreshold        float64
	TextScoreMinThreshold float64
}

// Scores is the normalized output of the external scoring service. Match is
// the remote service's advisory opinion; the authoritative approval decision
// is computed here against the local threshold.
type Scores struct {
	Similarity float64
	Text       *float64
	Final      *float64
	Match      bool
}

// Verdict is the engine's decision on a single verification attempt.
type Verdict struct {
	Approved          bool
	SimilarityScore   float64
	TextScore         *float64
	FinalScore        float64
	Match             bool
	AttemptsUsed      int
	AttemptsRemaining int
	Reason            string
}

// CheckQuota rejects an attempt before the scoring service is invoked when
// the daily quota is already spent, so a caregiver-configured quota can never
// be bypassed by an expensive comparison call.
func CheckQuota(attemptsToday int, cfg Config) error {
	if attemptsToday >= cfg.MaxDailyAttempts {
		return dErrors.Newf(dErrors.CodeQuotaExhausted,
			"daily verification quota of %d reached, contact caregiver", cfg.MaxDailyAttempts)
	}
	return nil
}

// Evaluate computes the approval verdict for a scored attempt.
// The final score is the scorer's final score when reported, otherwise the
// mean of image and text scores; approval requires the final score to meet
// the match threshold and, when a text score is present, the text gate.
func Evaluate(scores Scores, attemptsToday int, cfg Config) Verdict {
	similarity := NormalizeScore(scores.Similarity)

	var text *float64
	if scores.Text != nil {
		normalized := NormalizeScore(*scores.Text)
		text = &normalized
	}

	var final float64
	switch {
	case scores.Final != nil:
		final = NormalizeScore(*scores.Final)
	case text == nil:
		final = similarity
	default:
		final = NormalizeScore((similarity + *text) / 2)
	}

	scoreGate := final >= cfg.MatchThreshold
	textGate := similarity >= textGateBypassScore || text == nil || *text >= cfg.TextScoreMinThreshold
	approved := scoreGate && textGate

	reason := ""
	switch {
	case approved:
	case !scoreGate:
		reason = ReasonScoreBelowThreshold
	default:
		reason = ReasonTextScoreTooLow
	}

	used := attemptsToday + 1
	return Verdict{
		Approved:          approved,
		SimilarityScore:   similarity,
		TextScore:         text,
		FinalScore:        final,
		Match:             approved,
		AttemptsUsed:      used,
		AttemptsRemaining: max(0, cfg.MaxDailyAttempts-used),
		Reason:            reason,
	}
}

// Failed builds the verdict for an attempt whose scoring call never produced
// scores. The attempt still consumes quota and advances the failure streak so
// an unreachable dependency cannot silently pause the alerting pipeline.
func Failed(reason string, attemptsToday int, cfg Config) Verdict {
	used := attemptsToday + 1
	return Verdict{
		Approved:          false,
		AttemptsUsed:      used,
		AttemptsRemaining: max(0, cfg.MaxDailyAttempts-used),
		Reason:            reason,
	}
}

// NormalizeScore clamps a score into [0,1]. NaN collapses to 0.
func NormalizeScore(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
