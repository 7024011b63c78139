// Package store persists caregiver-authored boundary definitions.
package store

import (
	"context"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// ErrNotFound keeps boundary 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "boundary not found")

// Store manages the single active boundary per subject. Replace is
// whole-record so center and radius can never briefly disagree.
type Store interface {
	// Replace atomically installs the boundary for its subject, overwriting
	// any previous definition.
	Replace(ctx context.Context, boundary *models.Boundary) error

	// Get returns the active boundary for a subject, or ErrNotFound.
	Get(ctx context.Context, subjectID id.SubjectID) (*models.Boundary, error)

	// Delete removes the boundary for a subject. Deleting a missing boundary
	// is a no-op.
	Delete(ctx context.Context, subjectID id.SubjectID) error
}
