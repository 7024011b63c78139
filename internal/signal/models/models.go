// Package models holds the records of the signal evaluation domain: raw
// signal events, caregiver-authored configuration, and the derived state rows
// owned by the lifecycle manager.
package models

import (
	"time"

	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// ContainmentVerdict classifies a single location ping against a boundary.
type ContainmentVerdict string

const (
	VerdictInside  ContainmentVerdict = "INSIDE"
	VerdictOutside ContainmentVerdict = "OUTSIDE"
	// VerdictUnresolved means no boundary is configured. It is never treated
	// as INSIDE: alerting on absent configuration would be a false positive.
	VerdictUnresolved ContainmentVerdict = "UNRESOLVED"
)

// Containment is the debounced, persisted position state of a subject.
// "No prior signal yet" is representable so it cannot be confused with
// "currently inside".
type Containment string

const (
	ContainmentUnknown Containment = "UNKNOWN"
	ContainmentInside  Containment = "INSIDE"
	ContainmentOutside Containment = "OUTSIDE"
)

// AdherenceStage is the bookkeeping stage of a subject's verification streak.
// Only BREACHED ever opens an alert; DEGRADING drives dashboard display.
type AdherenceStage string

const (
	StageNoSignal  AdherenceStage = "NO_SIGNAL"
	StageOK        AdherenceStage = "OK"
	StageDegrading AdherenceStage = "DEGRADING"
	StageBreached  AdherenceStage = "BREACHED"
)

// DayKey is a calendar-day bucket key in the subject's local day, formatted
// 2006-01-02. Quota counting is an equality match on this key, not a
// timestamp-range query.
type DayKey string

// NewDayKey buckets a time into its calendar day.
func NewDayKey(t time.Time) DayKey {
	return DayKey(t.Format("2006-01-02"))
}

// LocationPing is a raw, write-once location event produced by the subject's
// client at a caregiver-invisible cadence.
type LocationPing struct {
	EventID    id.EventID   `json:"event_id"`
	SubjectID  id.SubjectID `json:"subject_id"`
	Lat        float64      `json:"lat"`
	Lng        float64      `json:"lng"`
	ObservedAt time.Time    `json:"observed_at"`
}

// NewLocationPing validates coordinates at the trust boundary and assigns an
// event id when the client did not supply one.
func NewLocationPing(eventID id.EventID, subjectID id.SubjectID, lat, lng float64, observedAt time.Time) (*LocationPing, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject_id is required")
	}
	if lat < -90 || lat > 90 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "lat must be in [-90, 90]")
	}
	if lng < -180 || lng > 180 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "lng must be in [-180, 180]")
	}
	if observedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "observed_at is required")
	}
	if eventID.IsNil() {
		eventID = id.NewEventID()
	}
	return &LocationPing{
		EventID:    eventID,
		SubjectID:  subjectID,
		Lat:        lat,
		Lng:        lng,
		ObservedAt: observedAt,
	}, nil
}

// VerificationAttempt is a raw, write-once verification event. Attempts are
// recorded even when the scoring call failed, so adherence tracking still
// progresses when the external dependency is down.
type VerificationAttempt struct {
	EventID         id.EventID    `json:"event_id"`
	SubjectID       id.SubjectID  `json:"subject_id"`
	MedicineID      id.MedicineID `json:"medicine_id"`
	AttemptDate     DayKey        `json:"attempt_date"`
	SimilarityScore float64       `json:"similarity_score"`
	TextScore       *float64      `json:"text_similarity_score,omitempty"`
	FinalScore      float64       `json:"final_similarity_score"`
	Match           bool          `json:"match"`
	Approved        bool          `json:"approved"`
	Reason          string        `json:"reason,omitempty"`
	ReferenceURL    string        `json:"reference_image_url,omitempty"`
	CandidateURL    string        `json:"test_image_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Boundary is the circular safe zone for a subject. At most one active
// boundary per subject; center and radius are replaced atomically as a whole
// record so they can never briefly disagree.
type Boundary struct {
	SubjectID    id.SubjectID `json:"subject_id"`
	CenterLat    float64      `json:"center_lat"`
	CenterLng    float64      `json:"center_lng"`
	RadiusMeters float64      `json:"radius_meters"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewBoundary validates a caregiver-supplied boundary definition.
func NewBoundary(subjectID id.SubjectID, centerLat, centerLng, radiusMeters float64, now time.Time) (*Boundary, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject_id is required")
	}
	if centerLat < -90 || centerLat > 90 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "center_lat must be in [-90, 90]")
	}
	if centerLng < -180 || centerLng > 180 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "center_lng must be in [-180, 180]")
	}
	if radiusMeters <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "radius_meters must be positive")
	}
	return &Boundary{
		SubjectID:    subjectID,
		CenterLat:    centerLat,
		CenterLng:    centerLng,
		RadiusMeters: radiusMeters,
		UpdatedAt:    now,
	}, nil
}

// ScheduleSlot defines which (subject, medicine) quota buckets exist. It is
// caregiver-authored and carries no runtime state.
type ScheduleSlot struct {
	SubjectID  id.SubjectID  `json:"subject_id"`
	MedicineID id.MedicineID `json:"medicine_id"`
	TimeOfDay  string        `json:"time_of_day"`
	Enabled    bool          `json:"enabled"`
}

// NewScheduleSlot validates a slot definition. TimeOfDay is an HH:MM wall
// clock string in the subject's local day.
func NewScheduleSlot(subjectID id.SubjectID, medicineID id.MedicineID, timeOfDay string, enabled bool) (*ScheduleSlot, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject_id is required")
	}
	if medicineID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "medicine_id is required")
	}
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "time_of_day must be HH:MM")
	}
	return &ScheduleSlot{
		SubjectID:  subjectID,
		MedicineID: medicineID,
		TimeOfDay:  timeOfDay,
		Enabled:    enabled,
	}, nil
}

// ContainmentState is the derived row per subject. Version supports
// optimistic concurrency: the lifecycle manager's read-decide-write cycle
// retries when another writer advanced the row.
type ContainmentState struct {
	SubjectID       id.SubjectID `json:"subject_id"`
	State           Containment  `json:"state"`
	LastEventID     id.EventID   `json:"last_event_id"`
	LastEvaluatedAt time.Time    `json:"last_evaluated_at"`
	Version         int64        `json:"version"`
}

// NewContainmentState returns the required initial state: position unknown
// until the first ping is evaluated against a boundary.
func NewContainmentState(subjectID id.SubjectID) *ContainmentState {
	return &ContainmentState{
		SubjectID: subjectID,
		State:     ContainmentUnknown,
	}
}

// AdherenceCounter is the derived row per (subject, medicine).
// Invariants: ConsecutiveFailures resets to 0 on any approved attempt and
// increments by exactly 1 on any unapproved attempt; NotifiedAt is set at most
// once per streak and cleared only when the streak resets.
type AdherenceCounter struct {
	SubjectID           id.SubjectID  `json:"subject_id"`
	MedicineID          id.MedicineID `json:"medicine_id"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastEventID         id.EventID    `json:"last_event_id"`
	LastAttemptAt       time.Time     `json:"last_attempt_at"`
	LastSuccessAt       *time.Time    `json:"last_success_at,omitempty"`
	NotifiedAt          *time.Time    `json:"notified_at,omitempty"`
	Version             int64         `json:"version"`
}

// NewAdherenceCounter returns the zero counter for a (subject, medicine) pair.
func NewAdherenceCounter(subjectID id.SubjectID, medicineID id.MedicineID) *AdherenceCounter {
	return &AdherenceCounter{
		SubjectID:  subjectID,
		MedicineID: medicineID,
	}
}

// Stage classifies the counter for dashboard display. degradingFloor and
// breachThreshold come from engine configuration.
func (c *AdherenceCounter) Stage(degradingFloor, breachThreshold int) AdherenceStage {
	switch {
	case c.LastAttemptAt.IsZero():
		return StageNoSignal
	case c.ConsecutiveFailures >= breachThreshold:
		return StageBreached
	case c.ConsecutiveFailures >= degradingFloor:
		return StageDegrading
	default:
		return StageOK
	}
}
