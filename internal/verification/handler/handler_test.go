package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"caresignal/internal/adherence"
	alertstore "caresignal/internal/alert/store"
	boundarystore "caresignal/internal/boundary/store"
	"caresignal/internal/lifecycle"
	"caresignal/internal/scoring"
	signalstore "caresignal/internal/signal/store"
	"caresignal/internal/verification"
	id "caresignal/pkg/domain"
)

type stubScorer struct {
	similarity float64
}

func (s *stubScorer) Compare(context.Context, scoring.CompareRequest) (*scoring.CompareResult, error) {
	return &scoring.CompareResult{Similarity: s.similarity, Match: s.similarity >= 0.65}, nil
}

func newVerificationRouter(t *testing.T, scorer scoring.Client) http.Handler {
	t.Helper()
	signals := signalstore.NewInMemoryStore()
	manager, err := lifecycle.New(signals, boundarystore.NewInMemoryStore(), alertstore.NewInMemoryStore())
	if err != nil {
		t.Fatalf("failed to build manager: %v", err)
	}
	svc, err := verification.New(signals, manager, scorer, adherence.Config{
		MaxDailyAttempts:      10,
		MatchThreshold:        0.65,
		TextScoreMinThreshold: 0.25,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func postVerification(t *testing.T, router http.Handler, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/verifications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestVerifyApprovedResponse(t *testing.T) {
	router := newVerificationRouter(t, &stubScorer{similarity: 0.8})
	subject := id.SubjectID(uuid.New())

	rec := postVerification(t, router, map[string]any{
		"subject_id":    subject.String(),
		"medicine_id":   "med-a",
		"candidate_url": "https://uploads/attempt.jpg",
		"reference_url": "https://refs/pill.jpg",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Approved          bool   `json:"approved"`
		AttemptsUsed      int    `json:"attempts_used"`
		AttemptsRemaining int    `json:"attempts_remaining"`
		Stage             string `json:"stage"`
		EventID           string `json:"event_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Approved {
		t.Fatalf("expected approval, got %+v", resp)
	}
	if resp.AttemptsUsed != 1 || resp.AttemptsRemaining != 9 {
		t.Fatalf("expected attempts 1/9, got %d/%d", resp.AttemptsUsed, resp.AttemptsRemaining)
	}
	if resp.Stage != "OK" {
		t.Fatalf("expected OK stage, got %q", resp.Stage)
	}
	if resp.EventID == "" {
		t.Fatalf("expected event_id in response")
	}
}

func TestVerifyQuotaMapsTo429(t *testing.T) {
	router := newVerificationRouter(t, &stubScorer{similarity: 0.2})
	subject := id.SubjectID(uuid.New())
	payload := map[string]any{
		"subject_id":    subject.String(),
		"medicine_id":   "med-a",
		"candidate_url": "https://uploads/attempt.jpg",
		"reference_url": "https://refs/pill.jpg",
	}

	for i := 0; i < 10; i++ {
		if rec := postVerification(t, router, payload); rec.Code != http.StatusOK {
			t.Fatalf("expected 200 on attempt %d, got %d", i+1, rec.Code)
		}
	}

	rec := postVerification(t, router, payload)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after quota spent, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "quota_exhausted" {
		t.Fatalf("expected quota_exhausted error code, got %q", resp["error"])
	}
}

func TestVerifyValidation(t *testing.T) {
	router := newVerificationRouter(t, &stubScorer{similarity: 0.8})

	rec := postVerification(t, router, map[string]any{
		"medicine_id":   "med-a",
		"candidate_url": "https://uploads/attempt.jpg",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing subject_id, got %d", rec.Code)
	}

	rec = postVerification(t, router, map[string]any{
		"subject_id":  id.SubjectID(uuid.New()).String(),
		"medicine_id": "med-a",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing candidate_url, got %d", rec.Code)
	}
}
