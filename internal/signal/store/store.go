// Package store persists raw signal events and the derived state rows owned
// by the lifecycle manager. Raw logs are append-only and idempotent on event
// id; derived rows carry a version number for optimistic concurrency.
package store

import (
	"context"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// ErrVersionConflict signals that another writer advanced a derived row
// between read and write. Callers retry the whole read-decide-write cycle;
// the retry loop is bounded by engine configuration.
var ErrVersionConflict = dErrors.New(dErrors.CodeConflict, "derived state version conflict")

// ErrQuotaExceeded signals that the (subject, medicine, day) bucket already
// holds quota attempts. The append is the authoritative reservation: callers
// may pre-check the count for a cheap early rejection, but only this error
// decides the race when concurrent attempts contend for the last slot.
var ErrQuotaExceeded = dErrors.New(dErrors.CodeQuotaExhausted, "daily attempt quota exhausted")

// PingLog is the append-only log of location pings.
type PingLog interface {
	// AppendPing durably stores a raw ping. Re-appending the same event id is
	// a no-op so at-least-once delivery cannot duplicate the log.
	AppendPing(ctx context.Context, ping *models.LocationPing) error

	// ListPings returns the most recent pings for a subject, newest first,
	// bounded by limit.
	ListPings(ctx context.Context, subjectID id.SubjectID, limit int) ([]*models.LocationPing, error)
}

// AttemptLog is the append-only log of verification attempts.
type AttemptLog interface {
	// AppendAttempt durably stores a raw attempt and atomically reserves a
	// quota slot. Returns ErrQuotaExceeded when the (subject, medicine, day)
	// bucket already holds quota attempts; quota <= 0 disables the bound.
	// Idempotent on event id: replaying a stored attempt never consumes a
	// second slot and succeeds even against a full bucket.
	AppendAttempt(ctx context.Context, attempt *models.VerificationAttempt, quota int) error

	// CountAttempts returns how many attempts exist for the (subject,
	// medicine, day) quota bucket.
	CountAttempts(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, day models.DayKey) (int, error)

	// ListAttempts returns the attempts in a quota bucket, oldest first.
	ListAttempts(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, day models.DayKey) ([]*models.VerificationAttempt, error)
}

// ContainmentStates holds the derived containment row per subject.
type ContainmentStates interface {
	// GetContainment returns the row for a subject, or nil when the subject
	// has never been evaluated.
	GetContainment(ctx context.Context, subjectID id.SubjectID) (*models.ContainmentState, error)

	// SaveContainment writes a row using compare-and-swap on Version: the
	// write succeeds only if the stored version still equals state.Version,
	// and the stored version is then incremented. Returns ErrVersionConflict
	// otherwise.
	SaveContainment(ctx context.Context, state *models.ContainmentState) error
}

// AdherenceCounters holds the derived counter row per (subject, medicine).
type AdherenceCounters interface {
	// GetCounter returns the row for a pair, or nil when no attempt has ever
	// been folded.
	GetCounter(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) (*models.AdherenceCounter, error)

	// SaveCounter writes a row using compare-and-swap on Version. Returns
	// ErrVersionConflict when another writer advanced the row.
	SaveCounter(ctx context.Context, counter *models.AdherenceCounter) error

	// ListCounters returns all counter rows for a subject.
	ListCounters(ctx context.Context, subjectID id.SubjectID) ([]*models.AdherenceCounter, error)
}

// Store aggregates the signal persistence surface consumed by the lifecycle
// manager and the verification service.
type Store interface {
	PingLog
	AttemptLog
	ContainmentStates
	AdherenceCounters
}
