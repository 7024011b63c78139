// Package store persists alert lifecycle records.
package store

import (
	"context"

	"caresignal/internal/alert"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

var (
	// ErrNotFound is returned when no alert matches the lookup.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "alert not found")

	// ErrAlreadyOpen is returned by Open when the subject already has
	// an OPEN alert of the same kind. The check-and-insert is atomic;
	// callers treat this as "condition already signalled".
	ErrAlreadyOpen = dErrors.New(dErrors.CodeConflict, "alert already open for subject and kind")
)

type Store interface {
	// Open inserts a new OPEN alert iff no OPEN alert exists for the
	// same (subject, kind). Returns ErrAlreadyOpen otherwise.
	Open(ctx context.Context, a *alert.Alert) error

	// Resolve persists the alert's RESOLVED status. Resolving an
	// already resolved alert is a no-op.
	Resolve(ctx context.Context, a *alert.Alert) error

	// GetOpen returns the OPEN alert for (subject, kind), or ErrNotFound.
	GetOpen(ctx context.Context, subjectID id.SubjectID, kind alert.Kind) (*alert.Alert, error)

	// ListOpen returns all OPEN alerts for the subject.
	ListOpen(ctx context.Context, subjectID id.SubjectID) ([]*alert.Alert, error)

	// List returns the subject's alert history, newest first, capped at limit.
	List(ctx context.Context, subjectID id.SubjectID, limit int) ([]*alert.Alert, error)
}
