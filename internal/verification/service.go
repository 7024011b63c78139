// Package verification orchestrates a medication verification attempt:
// quota check, reference resolution, scoring, adherence verdict, durable
// attempt record, and the lifecycle fold. The scoring call is the only
// network-bound step and runs before any per-key lock is taken.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"caresignal/internal/adherence"
	"caresignal/internal/lifecycle"
	schedulestore "caresignal/internal/schedule/store"
	"caresignal/internal/scoring"
	"caresignal/internal/signal/models"
	signalstore "caresignal/internal/signal/store"
	"caresignal/internal/verification/metrics"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

var (
	// ErrReferenceNotFound means no reference image exists for the
	// (subject, medicine) pair, so there is nothing to compare against.
	ErrReferenceNotFound = dErrors.New(dErrors.CodeNotFound, "no reference image configured for this medicine")

	// ErrSlotDisabled means the caregiver turned the slot off; attempts
	// against it are rejected before any quota or scoring work.
	ErrSlotDisabled = dErrors.New(dErrors.CodeBadRequest, "verification slot is disabled")
)

// ReferenceResolver lists candidate reference image URLs for a
// (subject, medicine) pair, already signed for fetching. External
// collaborator; storage and URL signing are out of scope here.
type ReferenceResolver interface {
	References(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) ([]string, error)
}

// Request is one verification attempt from the subject's client.
// ReferenceURL overrides resolver lookup when the client supplies an
// explicit reference. EventID is optional; re-delivery with the same id
// folds exactly once.
type Request struct {
	EventID      id.EventID
	SubjectID    id.SubjectID
	MedicineID   id.MedicineID
	CandidateURL string
	ReferenceURL string
	ObservedAt   time.Time
}

// Result reports the verdict and the post-fold adherence state.
type Result struct {
	Attempt *models.VerificationAttempt
	Verdict adherence.Verdict
	Outcome *lifecycle.AttemptOutcome
}

type Service struct {
	signals   signalstore.Store
	manager   *lifecycle.Manager
	scorer    scoring.Client
	resolver  ReferenceResolver
	schedules schedulestore.Store
	cfg       adherence.Config
	maxRefs   int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithResolver(resolver ReferenceResolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

func WithSchedules(schedules schedulestore.Store) Option {
	return func(s *Service) {
		s.schedules = schedules
	}
}

func WithMaxReferenceImages(n int) Option {
	return func(s *Service) {
		s.maxRefs = n
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(signals signalstore.Store, manager *lifecycle.Manager, scorer scoring.Client, cfg adherence.Config, opts ...Option) (*Service, error) {
	if signals == nil {
		return nil, errors.New("signal store is required")
	}
	if manager == nil {
		return nil, errors.New("lifecycle manager is required")
	}
	if scorer == nil {
		return nil, errors.New("scoring client is required")
	}
	s := &Service{
		signals: signals,
		manager: manager,
		scorer:  scorer,
		cfg:     cfg,
		maxRefs: 5,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify runs one attempt end to end. The attempt is durably appended
// before the fold, so a fold failure is recoverable by replaying the
// same event id.
func (s *Service) Verify(ctx context.Context, req Request) (*Result, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveVerify(time.Now())
	}
	if err := validate(&req); err != nil {
		return nil, err
	}

	if err := s.checkSlot(ctx, req); err != nil {
		return nil, err
	}

	attemptsToday, err := s.signals.CountAttempts(ctx, req.SubjectID, req.MedicineID, models.NewDayKey(req.ObservedAt))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count attempts")
	}
	if err := adherence.CheckQuota(attemptsToday, s.cfg); err != nil {
		if s.metrics != nil {
			s.metrics.QuotaRejections.Inc()
		}
		return nil, err
	}

	references, err := s.resolveReferences(ctx, req)
	if err != nil {
		return nil, err
	}

	verdict, referenceURL := s.scoreAgainst(ctx, req, references, attemptsToday)

	attempt := &models.VerificationAttempt{
		EventID:         req.EventID,
		SubjectID:       req.SubjectID,
		MedicineID:      req.MedicineID,
		AttemptDate:     models.NewDayKey(req.ObservedAt),
		SimilarityScore: verdict.SimilarityScore,
		TextScore:       verdict.TextScore,
		FinalScore:      verdict.FinalScore,
		Match:           verdict.Match,
		Approved:        verdict.Approved,
		Reason:          verdict.Reason,
		ReferenceURL:    referenceURL,
		CandidateURL:    req.CandidateURL,
		CreatedAt:       req.ObservedAt,
	}
	// The append doubles as the quota reservation: two attempts racing for
	// the last slot both pass the pre-scoring check, but the store admits
	// exactly one.
	if err := s.signals.AppendAttempt(ctx, attempt, s.cfg.MaxDailyAttempts); err != nil {
		if errors.Is(err, signalstore.ErrQuotaExceeded) {
			if s.metrics != nil {
				s.metrics.QuotaRejections.Inc()
			}
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "attempt not recorded, try again")
	}

	outcome, err := s.manager.ApplyAttempt(ctx, attempt)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementAttempt(verdict.Approved)
	}
	s.logger.InfoContext(ctx, "verification attempt processed",
		"subject_id", req.SubjectID.String(),
		"medicine_id", req.MedicineID.String(),
		"approved", verdict.Approved,
		"attempts_used", verdict.AttemptsUsed,
	)
	return &Result{Attempt: attempt, Verdict: verdict, Outcome: outcome}, nil
}

func (s *Service) checkSlot(ctx context.Context, req Request) error {
	if s.schedules == nil {
		return nil
	}
	slot, err := s.schedules.Get(ctx, req.SubjectID, req.MedicineID)
	if err != nil {
		if errors.Is(err, schedulestore.ErrNotFound) {
			// No slot configured: the medicine is not scheduled, but
			// attempts are still accepted so ad hoc verification works.
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load schedule slot")
	}
	if !slot.Enabled {
		return ErrSlotDisabled
	}
	return nil
}

func (s *Service) resolveReferences(ctx context.Context, req Request) ([]string, error) {
	if req.ReferenceURL != "" {
		return []string{req.ReferenceURL}, nil
	}
	if s.resolver == nil {
		return nil, ErrReferenceNotFound
	}
	references, err := s.resolver.References(ctx, req.SubjectID, req.MedicineID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve reference images")
	}
	if len(references) == 0 {
		return nil, ErrReferenceNotFound
	}
	if len(references) > s.maxRefs {
		references = references[:s.maxRefs]
	}
	return references, nil
}

// scoreAgainst compares the candidate against each reference and keeps
// the best verdict. A scoring failure on every reference becomes an
// unapproved attempt with a distinguished reason, never a dropped one.
func (s *Service) scoreAgainst(ctx context.Context, req Request, references []string, attemptsToday int) (adherence.Verdict, string) {
	var (
		best        adherence.Verdict
		bestRef     string
		scored      bool
		lastFailure = adherence.ReasonScoringUnavailable
	)
	for _, reference := range references {
		start := time.Now()
		result, err := s.scorer.Compare(ctx, scoring.CompareRequest{
			SubjectID:    req.SubjectID,
			MedicineID:   req.MedicineID,
			ReferenceURL: reference,
			CandidateURL: req.CandidateURL,
		})
		if s.metrics != nil {
			s.metrics.ObserveScoring(start)
		}
		if err != nil {
			lastFailure = failureReason(err)
			if s.metrics != nil {
				s.metrics.ScoringFailures.WithLabelValues(lastFailure).Inc()
			}
			s.logger.WarnContext(ctx, "scoring call failed",
				"subject_id", req.SubjectID.String(),
				"reason", lastFailure,
				"error", err,
			)
			continue
		}

		verdict := adherence.Evaluate(adherence.Scores{
			Similarity: result.Similarity,
			Text:       result.Text,
			Final:      result.Final,
			Match:      result.Match,
		}, attemptsToday, s.cfg)

		if !scored || verdict.FinalScore > best.FinalScore {
			best = verdict
			bestRef = reference
			scored = true
		}
		if verdict.Approved {
			break
		}
	}
	if !scored {
		return adherence.Failed(lastFailure, attemptsToday, s.cfg), ""
	}
	return best, bestRef
}

func failureReason(err error) string {
	if dErrors.HasCode(err, dErrors.CodeTimeout) {
		return adherence.ReasonScoringTimeout
	}
	return adherence.ReasonScoringUnavailable
}

func validate(req *Request) error {
	if req.SubjectID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject_id is required")
	}
	if req.MedicineID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "medicine_id is required")
	}
	if req.CandidateURL == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "candidate image URL is required")
	}
	if req.ObservedAt.IsZero() {
		req.ObservedAt = time.Now().UTC()
	}
	if req.EventID.IsNil() {
		req.EventID = id.NewEventID()
	}
	return nil
}
