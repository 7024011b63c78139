// Package domain holds typed identifiers shared across the engine. Distinct
// types keep subject, caregiver, and event ids from being swapped at compile
// time; parsing enforces the invariant that ids are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "caresignal/pkg/domain-errors"
)

type (
	// SubjectID identifies a monitored person.
	SubjectID uuid.UUID
	// CaregiverID identifies the responsible party for a subject.
	CaregiverID uuid.UUID
	// EventID identifies a raw signal event (ping or verification attempt).
	// Idempotent re-delivery is detected by this id.
	EventID uuid.UUID
)

// MedicineID identifies a medicine within a subject's schedule. It is
// caregiver-assigned and opaque, so it is a validated string rather than a UUID.
type MedicineID string

func (id SubjectID) String() string   { return uuid.UUID(id).String() }
func (id CaregiverID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string     { return uuid.UUID(id).String() }
func (id MedicineID) String() string  { return string(id) }

func (id SubjectID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CaregiverID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id MedicineID) IsNil() bool  { return id == "" }

// Defined types do not inherit uuid.UUID's method set, so text
// marshalling is declared explicitly to keep JSON output as the
// canonical string form.

func (id SubjectID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id CaregiverID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *SubjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseSubjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CaregiverID) UnmarshalText(text []byte) error {
	parsed, err := ParseCaregiverID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EventID) UnmarshalText(text []byte) error {
	parsed, err := ParseEventID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewEventID generates a fresh event id for a raw signal event.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseSubjectID parses and validates a subject id.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s, "subject_id")
	return SubjectID(u), err
}

// ParseCaregiverID parses and validates a caregiver id.
func ParseCaregiverID(s string) (CaregiverID, error) {
	u, err := parseUUID(s, "caregiver_id")
	return CaregiverID(u), err
}

// ParseEventID parses and validates an event id.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event_id")
	return EventID(u), err
}

// ParseMedicineID validates a medicine id. Only emptiness is rejected; the
// format is caregiver-defined.
func ParseMedicineID(s string) (MedicineID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "medicine_id cannot be empty")
	}
	return MedicineID(s), nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", field)
	}
	return u, nil
}
