package handler

import (
	"time"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// LocationPingRequest is the HTTP request body for POST /signals/location.
type LocationPingRequest struct {
	EventID    string    `json:"event_id,omitempty"`
	SubjectID  string    `json:"subject_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ObservedAt time.Time `json:"observed_at"`

	ping *models.LocationPing
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *LocationPingRequest) Validate() error {
	subjectID, err := id.ParseSubjectID(r.SubjectID)
	if err != nil {
		return err
	}

	var eventID id.EventID
	if r.EventID != "" {
		eventID, err = id.ParseEventID(r.EventID)
		if err != nil {
			return err
		}
	}

	if r.ObservedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "observed_at is required")
	}

	ping, err := models.NewLocationPing(eventID, subjectID, r.Lat, r.Lng, r.ObservedAt)
	if err != nil {
		return err
	}
	r.ping = ping
	return nil
}

// Ping returns the validated location ping.
func (r *LocationPingRequest) Ping() *models.LocationPing {
	return r.ping
}
