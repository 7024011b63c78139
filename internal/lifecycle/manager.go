// Package lifecycle folds raw signal events into derived state and
// drives the alert state machine. It is the only writer of derived
// rows: every mutation is a serialized read-decide-write cycle per
// (subject, kind) key, guarded by an optimistic version check with a
// bounded retry budget.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caresignal/internal/alert"
	alertstore "caresignal/internal/alert/store"
	boundaryeval "caresignal/internal/boundary"
	boundarystore "caresignal/internal/boundary/store"
	"caresignal/internal/fanout"
	"caresignal/internal/geo"
	"caresignal/internal/lifecycle/metrics"
	"caresignal/internal/signal/models"
	signalstore "caresignal/internal/signal/store"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// DefaultRetryLimit bounds the optimistic-lock retry loop before the
// fold surfaces as engine unavailability.
const DefaultRetryLimit = 5

// ErrEngineUnavailable is returned when a fold exhausted its retry
// budget under contention. The raw event is already durable, so the
// derived state can be recovered by replaying it.
var ErrEngineUnavailable = dErrors.New(dErrors.CodeUnavailable, "engine busy, event recorded but not yet folded")

// AlertJournal receives every alert transition for durable audit.
// Implementations must tolerate being called after the state write.
type AlertJournal interface {
	Record(ctx context.Context, a *alert.Alert) error
}

// Manager is the alert lifecycle state machine.
type Manager struct {
	signals    signalstore.Store
	boundaries boundarystore.Store
	alerts     alertstore.Store
	bus        fanout.Bus
	journal    AlertJournal
	metrics    *metrics.Metrics
	logger     *slog.Logger

	keys       *keyedMutex
	retryLimit int

	degradingFloor  int
	breachThreshold int
}

type Option func(*Manager)

func WithBus(bus fanout.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

func WithJournal(journal AlertJournal) Option {
	return func(m *Manager) {
		m.journal = journal
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithRetryLimit(limit int) Option {
	return func(m *Manager) {
		m.retryLimit = limit
	}
}

func WithAdherenceStages(degradingFloor, breachThreshold int) Option {
	return func(m *Manager) {
		m.degradingFloor = degradingFloor
		m.breachThreshold = breachThreshold
	}
}

func New(signals signalstore.Store, boundaries boundarystore.Store, alerts alertstore.Store, opts ...Option) (*Manager, error) {
	if signals == nil {
		return nil, errors.New("signal store is required")
	}
	if boundaries == nil {
		return nil, errors.New("boundary store is required")
	}
	if alerts == nil {
		return nil, errors.New("alert store is required")
	}
	m := &Manager{
		signals:         signals,
		boundaries:      boundaries,
		alerts:          alerts,
		keys:            newKeyedMutex(),
		retryLimit:      DefaultRetryLimit,
		degradingFloor:  7,
		breachThreshold: 10,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.retryLimit < 1 {
		return nil, errors.New("retry limit must be at least 1")
	}
	return m, nil
}

// PingOutcome describes the result of folding a location ping.
type PingOutcome struct {
	Verdict  models.ContainmentVerdict
	State    *models.ContainmentState
	Alert    *alert.Alert
	Replayed bool
}

// ApplyPing appends the raw ping, evaluates it against the subject's
// boundary, and folds the verdict into containment state. Every ping
// updates the state row; only an edge (a state change) touches alerts.
// Re-delivery of an already folded event id is a no-op.
func (m *Manager) ApplyPing(ctx context.Context, ping *models.LocationPing) (*PingOutcome, error) {
	if err := m.signals.AppendPing(ctx, ping); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record location ping")
	}

	boundary, err := m.boundaries.Get(ctx, ping.SubjectID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load boundary")
	}
	verdict := boundaryeval.Evaluate(ping, boundary)

	unlock := m.keys.Lock(containmentKey(ping.SubjectID))
	defer unlock()
	if m.metrics != nil {
		defer m.metrics.ObserveFold(time.Now())
	}

	for attempt := 0; attempt < m.retryLimit; attempt++ {
		state, err := m.signals.GetContainment(ctx, ping.SubjectID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load containment state")
		}
		if state == nil {
			state = models.NewContainmentState(ping.SubjectID)
		}
		if state.LastEventID == ping.EventID {
			if m.metrics != nil {
				m.metrics.ReplaysSkipped.Inc()
			}
			return &PingOutcome{Verdict: verdict, State: state, Replayed: true}, nil
		}

		prior := state.State
		next := nextContainment(verdict)
		state.State = next
		state.LastEventID = ping.EventID
		state.LastEvaluatedAt = ping.ObservedAt

		if err := m.signals.SaveContainment(ctx, state); err != nil {
			if errors.Is(err, signalstore.ErrVersionConflict) {
				if m.metrics != nil {
					m.metrics.VersionConflicts.Inc()
				}
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save containment state")
		}
		if m.metrics != nil {
			m.metrics.PingsFolded.Inc()
		}

		outcome := &PingOutcome{Verdict: verdict, State: state}
		outcome.Alert = m.applyContainmentEdge(ctx, ping, boundary, prior, next)
		if prior != next {
			m.publish(ctx, fanout.EventContainmentChanged, ping.SubjectID, ping.ObservedAt, containmentPayload(state))
		}
		return outcome, nil
	}

	if m.metrics != nil {
		m.metrics.RetriesExhausted.Inc()
	}
	return nil, ErrEngineUnavailable
}

// applyContainmentEdge opens or resolves the BOUNDARY alert when the
// fold crossed an edge. The state row is already committed; losing a
// race here is tolerated because Open is a no-op when an alert is
// already open and Resolve is a no-op when none is.
func (m *Manager) applyContainmentEdge(ctx context.Context, ping *models.LocationPing, boundary *models.Boundary, prior, next models.Containment) *alert.Alert {
	switch {
	case next == models.ContainmentOutside && prior != models.ContainmentOutside:
		a := alert.NewAlert(ping.SubjectID, alert.KindBoundary,
			boundaryAlertMessage(ping, boundary), ping.ObservedAt)
		if err := m.alerts.Open(ctx, a); err != nil {
			if errors.Is(err, alertstore.ErrAlreadyOpen) {
				return nil
			}
			m.logger.ErrorContext(ctx, "failed to open boundary alert",
				"subject_id", ping.SubjectID.String(), "error", err)
			return nil
		}
		m.afterOpen(ctx, a)
		return a

	case next == models.ContainmentInside && prior == models.ContainmentOutside:
		a, err := m.alerts.GetOpen(ctx, ping.SubjectID, alert.KindBoundary)
		if err != nil {
			if !errors.Is(err, alertstore.ErrNotFound) {
				m.logger.ErrorContext(ctx, "failed to load open boundary alert",
					"subject_id", ping.SubjectID.String(), "error", err)
			}
			return nil
		}
		a.Resolve(ping.ObservedAt)
		if err := m.alerts.Resolve(ctx, a); err != nil {
			m.logger.ErrorContext(ctx, "failed to resolve boundary alert",
				"subject_id", ping.SubjectID.String(), "error", err)
			return nil
		}
		m.afterResolve(ctx, a)
		return a
	}
	return nil
}

// AttemptOutcome describes the result of folding a verification attempt.
type AttemptOutcome struct {
	Counter  *models.AdherenceCounter
	Stage    models.AdherenceStage
	Alert    *alert.Alert
	Replayed bool
}

// ApplyAttempt folds an already-recorded verification attempt into the
// (subject, medicine) adherence counter. The caller appends the raw
// attempt before calling, so a failed fold is recoverable by replay.
func (m *Manager) ApplyAttempt(ctx context.Context, attempt *models.VerificationAttempt) (*AttemptOutcome, error) {
	unlock := m.keys.Lock(adherenceKey(attempt.SubjectID, attempt.MedicineID))
	defer unlock()
	if m.metrics != nil {
		defer m.metrics.ObserveFold(time.Now())
	}

	for try := 0; try < m.retryLimit; try++ {
		counter, err := m.signals.GetCounter(ctx, attempt.SubjectID, attempt.MedicineID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load adherence counter")
		}
		if counter == nil {
			counter = models.NewAdherenceCounter(attempt.SubjectID, attempt.MedicineID)
		}
		if counter.LastEventID == attempt.EventID {
			if m.metrics != nil {
				m.metrics.ReplaysSkipped.Inc()
			}
			return &AttemptOutcome{
				Counter:  counter,
				Stage:    counter.Stage(m.degradingFloor, m.breachThreshold),
				Replayed: true,
			}, nil
		}

		priorFailures := counter.ConsecutiveFailures
		counter.LastEventID = attempt.EventID
		counter.LastAttemptAt = attempt.CreatedAt

		var opensAlert, resolvesAlert bool
		if attempt.Approved {
			resolvesAlert = counter.NotifiedAt != nil
			counter.ConsecutiveFailures = 0
			counter.NotifiedAt = nil
			successAt := attempt.CreatedAt
			counter.LastSuccessAt = &successAt
		} else {
			counter.ConsecutiveFailures = priorFailures + 1
			if counter.ConsecutiveFailures >= m.breachThreshold && counter.NotifiedAt == nil {
				opensAlert = true
				notifiedAt := attempt.CreatedAt
				counter.NotifiedAt = &notifiedAt
			}
		}

		if err := m.signals.SaveCounter(ctx, counter); err != nil {
			if errors.Is(err, signalstore.ErrVersionConflict) {
				if m.metrics != nil {
					m.metrics.VersionConflicts.Inc()
				}
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save adherence counter")
		}
		if m.metrics != nil {
			m.metrics.IncrementAttemptFolded(attempt.Approved)
		}

		outcome := &AttemptOutcome{
			Counter: counter,
			Stage:   counter.Stage(m.degradingFloor, m.breachThreshold),
		}
		if opensAlert {
			outcome.Alert = m.openAdherenceAlert(ctx, attempt)
		}
		if resolvesAlert {
			outcome.Alert = m.resolveAdherenceAlert(ctx, attempt)
		}
		m.publish(ctx, fanout.EventAttemptRecorded, attempt.SubjectID, attempt.CreatedAt, attemptPayload(attempt, outcome))
		return outcome, nil
	}

	if m.metrics != nil {
		m.metrics.RetriesExhausted.Inc()
	}
	return nil, ErrEngineUnavailable
}

func (m *Manager) openAdherenceAlert(ctx context.Context, attempt *models.VerificationAttempt) *alert.Alert {
	a := alert.NewAlert(attempt.SubjectID, alert.KindAdherence,
		fmt.Sprintf("verification failing repeatedly for medicine %s", attempt.MedicineID), attempt.CreatedAt)
	if err := m.alerts.Open(ctx, a); err != nil {
		if errors.Is(err, alertstore.ErrAlreadyOpen) {
			return nil
		}
		m.logger.ErrorContext(ctx, "failed to open adherence alert",
			"subject_id", attempt.SubjectID.String(),
			"medicine_id", attempt.MedicineID.String(),
			"error", err)
		return nil
	}
	m.afterOpen(ctx, a)
	return a
}

func (m *Manager) resolveAdherenceAlert(ctx context.Context, attempt *models.VerificationAttempt) *alert.Alert {
	a, err := m.alerts.GetOpen(ctx, attempt.SubjectID, alert.KindAdherence)
	if err != nil {
		if !errors.Is(err, alertstore.ErrNotFound) {
			m.logger.ErrorContext(ctx, "failed to load open adherence alert",
				"subject_id", attempt.SubjectID.String(), "error", err)
		}
		return nil
	}
	a.Resolve(attempt.CreatedAt)
	if err := m.alerts.Resolve(ctx, a); err != nil {
		m.logger.ErrorContext(ctx, "failed to resolve adherence alert",
			"subject_id", attempt.SubjectID.String(), "error", err)
		return nil
	}
	m.afterResolve(ctx, a)
	return a
}

func (m *Manager) afterOpen(ctx context.Context, a *alert.Alert) {
	if m.metrics != nil {
		m.metrics.AlertsOpened.WithLabelValues(string(a.Kind)).Inc()
	}
	m.logger.InfoContext(ctx, "alert opened",
		"subject_id", a.SubjectID.String(),
		"kind", string(a.Kind),
	)
	m.journalRecord(ctx, a)
	m.publish(ctx, fanout.EventAlertOpened, a.SubjectID, a.OpenedAt, alertPayload(a))
}

func (m *Manager) afterResolve(ctx context.Context, a *alert.Alert) {
	if m.metrics != nil {
		m.metrics.AlertsResolved.WithLabelValues(string(a.Kind)).Inc()
	}
	m.logger.InfoContext(ctx, "alert resolved",
		"subject_id", a.SubjectID.String(),
		"kind", string(a.Kind),
	)
	m.journalRecord(ctx, a)
	at := a.OpenedAt
	if a.ResolvedAt != nil {
		at = *a.ResolvedAt
	}
	m.publish(ctx, fanout.EventAlertResolved, a.SubjectID, at, alertPayload(a))
}

func (m *Manager) journalRecord(ctx context.Context, a *alert.Alert) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(ctx, a); err != nil {
		m.logger.WarnContext(ctx, "failed to journal alert transition",
			"subject_id", a.SubjectID.String(), "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, eventType fanout.EventType, subjectID id.SubjectID, at time.Time, payload any) {
	if m.bus == nil {
		return
	}
	event, err := fanout.NewEvent(eventType, subjectID, at, payload)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to build fanout event", "error", err)
		return
	}
	if err := m.bus.Publish(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "failed to publish fanout event", "error", err)
	}
}

// nextContainment maps a verdict onto the debounced state. An
// UNRESOLVED verdict (no boundary configured) returns the state to
// UNKNOWN rather than preserving a stale INSIDE/OUTSIDE reading.
func nextContainment(verdict models.ContainmentVerdict) models.Containment {
	switch verdict {
	case models.VerdictInside:
		return models.ContainmentInside
	case models.VerdictOutside:
		return models.ContainmentOutside
	default:
		return models.ContainmentUnknown
	}
}

func containmentKey(subjectID id.SubjectID) string {
	return "containment:" + subjectID.String()
}

func adherenceKey(subjectID id.SubjectID, medicineID id.MedicineID) string {
	return "adherence:" + subjectID.String() + ":" + medicineID.String()
}

// boundaryAlertMessage describes how far outside the boundary the
// subject was seen, for caregiver dashboards and the alert journal.
func boundaryAlertMessage(ping *models.LocationPing, boundary *models.Boundary) string {
	if boundary == nil {
		return "subject left the safe boundary"
	}
	center := geo.Point{Lat: boundary.CenterLat, Lng: boundary.CenterLng}
	at := geo.Point{Lat: ping.Lat, Lng: ping.Lng}
	distance := geo.DistanceMeters(center, at)
	bearing := geo.BearingDegrees(center, at)
	return fmt.Sprintf("subject left the safe boundary: %.0fm from center (%.0fm past the %.0fm radius), bearing %.0f°",
		distance, distance-boundary.RadiusMeters, boundary.RadiusMeters, bearing)
}

type containmentEventPayload struct {
	State           models.Containment `json:"state"`
	LastEvaluatedAt time.Time          `json:"lastEvaluatedAt"`
}

func containmentPayload(state *models.ContainmentState) containmentEventPayload {
	return containmentEventPayload{
		State:           state.State,
		LastEvaluatedAt: state.LastEvaluatedAt,
	}
}

type attemptEventPayload struct {
	MedicineID          id.MedicineID         `json:"medicineId"`
	Approved            bool                  `json:"approved"`
	Reason              string                `json:"reason,omitempty"`
	ConsecutiveFailures int                   `json:"consecutiveFailures"`
	Stage               models.AdherenceStage `json:"stage"`
}

func attemptPayload(attempt *models.VerificationAttempt, outcome *AttemptOutcome) attemptEventPayload {
	return attemptEventPayload{
		MedicineID:          attempt.MedicineID,
		Approved:            attempt.Approved,
		Reason:              attempt.Reason,
		ConsecutiveFailures: outcome.Counter.ConsecutiveFailures,
		Stage:               outcome.Stage,
	}
}

type alertEventPayload struct {
	AlertID    string       `json:"alertId"`
	Kind       alert.Kind   `json:"kind"`
	Status     alert.Status `json:"status"`
	Message    string       `json:"message"`
	OpenedAt   time.Time    `json:"openedAt"`
	ResolvedAt *time.Time   `json:"resolvedAt,omitempty"`
}

func alertPayload(a *alert.Alert) alertEventPayload {
	return alertEventPayload{
		AlertID:    a.ID.String(),
		Kind:       a.Kind,
		Status:     a.Status,
		Message:    a.Message,
		OpenedAt:   a.OpenedAt,
		ResolvedAt: a.ResolvedAt,
	}
}
