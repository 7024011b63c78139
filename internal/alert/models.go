// Package alert defines the alert lifecycle records derived from
// signal evaluation. Alerts are edge-detected: one OPEN record per
// (subject, kind) at a time, resolved when the condition clears.
package alert

import (
	"time"

	"github.com/google/uuid"

	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

type Kind string

const (
	KindBoundary  Kind = "BOUNDARY"
	KindAdherence Kind = "ADHERENCE"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindBoundary, KindAdherence:
		return Kind(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown alert kind %q", raw)
	}
}

type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusResolved Status = "RESOLVED"
)

type Alert struct {
	ID         uuid.UUID
	SubjectID  id.SubjectID
	Kind       Kind
	Status     Status
	Message    string
	OpenedAt   time.Time
	ResolvedAt *time.Time
}

func NewAlert(subjectID id.SubjectID, kind Kind, message string, openedAt time.Time) *Alert {
	return &Alert{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Kind:      kind,
		Status:    StatusOpen,
		Message:   message,
		OpenedAt:  openedAt.UTC(),
	}
}

func (a *Alert) Resolve(at time.Time) {
	at = at.UTC()
	a.Status = StatusResolved
	a.ResolvedAt = &at
}

func (a *Alert) IsOpen() bool {
	return a.Status == StatusOpen
}
