package lifecycle

import (
	"context"
	"errors"

	"caresignal/internal/alert"
	alertstore "caresignal/internal/alert/store"
	"caresignal/internal/fanout"
	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// MedicineStatus is the dashboard view of one adherence counter.
type MedicineStatus struct {
	MedicineID          id.MedicineID
	ConsecutiveFailures int
	Stage               models.AdherenceStage
	Counter             *models.AdherenceCounter
}

// SubjectStatus is a snapshot read of the latest committed derived
// state for a subject. It never reflects in-flight folds.
type SubjectStatus struct {
	SubjectID   id.SubjectID
	Containment *models.ContainmentState
	Medicines   []MedicineStatus
	OpenAlerts  []*alert.Alert
}

// Status assembles the current derived state for display.
func (m *Manager) Status(ctx context.Context, subjectID id.SubjectID) (*SubjectStatus, error) {
	containment, err := m.signals.GetContainment(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load containment state")
	}
	if containment == nil {
		containment = models.NewContainmentState(subjectID)
	}

	counters, err := m.signals.ListCounters(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load adherence counters")
	}
	medicines := make([]MedicineStatus, 0, len(counters))
	for _, counter := range counters {
		medicines = append(medicines, MedicineStatus{
			MedicineID:          counter.MedicineID,
			ConsecutiveFailures: counter.ConsecutiveFailures,
			Stage:               counter.Stage(m.degradingFloor, m.breachThreshold),
			Counter:             counter,
		})
	}

	open, err := m.alerts.ListOpen(ctx, subjectID)
	if err != nil && !errors.Is(err, alertstore.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load open alerts")
	}

	return &SubjectStatus{
		SubjectID:   subjectID,
		Containment: containment,
		Medicines:   medicines,
		OpenAlerts:  open,
	}, nil
}

// Snapshot renders the current derived state as fanout events so a
// newly connected watcher starts from the committed state instead of a
// blank view.
func (m *Manager) Snapshot(ctx context.Context, subjectID id.SubjectID) ([]fanout.Event, error) {
	status, err := m.Status(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	events := make([]fanout.Event, 0, 1+len(status.OpenAlerts))
	containmentEvent, err := fanout.NewEvent(fanout.EventContainmentChanged, subjectID,
		status.Containment.LastEvaluatedAt, containmentPayload(status.Containment))
	if err != nil {
		return nil, err
	}
	events = append(events, containmentEvent)

	for _, a := range status.OpenAlerts {
		alertEvent, err := fanout.NewEvent(fanout.EventAlertOpened, subjectID, a.OpenedAt, alertPayload(a))
		if err != nil {
			return nil, err
		}
		events = append(events, alertEvent)
	}
	return events, nil
}

// Alerts returns the subject's alert history, newest first.
func (m *Manager) Alerts(ctx context.Context, subjectID id.SubjectID, limit int) ([]*alert.Alert, error) {
	alerts, err := m.alerts.List(ctx, subjectID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load alerts")
	}
	return alerts, nil
}
