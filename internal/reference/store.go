// Package reference stores the caregiver-uploaded reference image URLs
// that verification attempts are scored against.
package reference

import (
	"context"

	id "caresignal/pkg/domain"
)

// Store persists reference image URLs per (subject, medicine). The read
// side doubles as the resolver consulted by the verification service
// when a request carries no explicit reference URL.
type Store interface {
	// Replace overwrites the reference set for (subject, medicine).
	Replace(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, urls []string) error

	// References returns the stored URLs in upload order. An empty slice
	// means no references exist.
	References(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) ([]string, error)

	// Delete removes the reference set. Deleting a missing set is a no-op.
	Delete(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error
}
