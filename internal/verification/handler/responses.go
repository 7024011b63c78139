package handler

import (
	"caresignal/internal/verification"
)

// VerifyResponse is the HTTP response for POST /verifications.
type VerifyResponse struct {
	EventID           string   `json:"event_id"`
	Approved          bool     `json:"approved"`
	SimilarityScore   float64  `json:"similarity_score"`
	TextScore         *float64 `json:"text_score,omitempty"`
	FinalScore        float64  `json:"final_score"`
	Reason            string   `json:"reason,omitempty"`
	AttemptsUsed      int      `json:"attempts_used"`
	AttemptsRemaining int      `json:"attempts_remaining"`
	Stage             string   `json:"stage"`
}

// FromResult converts a verification result to an HTTP response.
func FromResult(result *verification.Result) *VerifyResponse {
	return &VerifyResponse{
		EventID:           result.Attempt.EventID.String(),
		Approved:          result.Verdict.Approved,
		SimilarityScore:   result.Verdict.SimilarityScore,
		TextScore:         result.Verdict.TextScore,
		FinalScore:        result.Verdict.FinalScore,
		Reason:            result.Verdict.Reason,
		AttemptsUsed:      result.Verdict.AttemptsUsed,
		AttemptsRemaining: result.Verdict.AttemptsRemaining,
		Stage:             string(result.Outcome.Stage),
	}
}
