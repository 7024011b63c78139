// Package store persists caregiver-authored schedule slots.
package store

import (
	"context"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// ErrNotFound is returned when no slot exists for the lookup.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "schedule slot not found")

type Store interface {
	// Upsert replaces the slot for (subject, medicine).
	Upsert(ctx context.Context, slot *models.ScheduleSlot) error

	// Get returns the slot for (subject, medicine), or ErrNotFound.
	Get(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) (*models.ScheduleSlot, error)

	// List returns all slots for a subject.
	List(ctx context.Context, subjectID id.SubjectID) ([]*models.ScheduleSlot, error)

	// Delete removes the slot. Deleting a missing slot is a no-op.
	Delete(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error
}
