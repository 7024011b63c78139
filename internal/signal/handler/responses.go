package handler

import (
	"encoding/json"
	"time"

	"caresignal/internal/fanout"
	"caresignal/internal/lifecycle"
)

// PingResponse is the HTTP response for POST /signals/location.
type PingResponse struct {
	EventID  string `json:"event_id"`
	Verdict  string `json:"verdict"`
	State    string `json:"state"`
	Replayed bool   `json:"replayed,omitempty"`
}

// FromPingOutcome converts a lifecycle outcome to an HTTP response.
func FromPingOutcome(outcome *lifecycle.PingOutcome) *PingResponse {
	return &PingResponse{
		EventID:  outcome.State.LastEventID.String(),
		Verdict:  string(outcome.Verdict),
		State:    string(outcome.State.State),
		Replayed: outcome.Replayed,
	}
}

// StatusResponse is the HTTP response for GET /subjects/{id}/status.
type StatusResponse struct {
	SubjectID   string              `json:"subject_id"`
	Containment ContainmentResponse `json:"containment"`
	Medicines   []MedicineResponse  `json:"medicines"`
	OpenAlerts  []OpenAlertResponse `json:"open_alerts"`
}

// ContainmentResponse is the containment portion of the status.
type ContainmentResponse struct {
	State           string     `json:"state"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
}

// MedicineResponse is one adherence counter in the status.
type MedicineResponse struct {
	MedicineID          string     `json:"medicine_id"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Stage               string     `json:"stage"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
}

// OpenAlertResponse is one open alert in the status.
type OpenAlertResponse struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
	OpenedAt time.Time `json:"opened_at"`
}

// FromStatus converts a subject status snapshot to an HTTP response.
func FromStatus(status *lifecycle.SubjectStatus) *StatusResponse {
	resp := &StatusResponse{
		SubjectID: status.SubjectID.String(),
		Containment: ContainmentResponse{
			State: string(status.Containment.State),
		},
		Medicines:  make([]MedicineResponse, 0, len(status.Medicines)),
		OpenAlerts: make([]OpenAlertResponse, 0, len(status.OpenAlerts)),
	}
	if !status.Containment.LastEvaluatedAt.IsZero() {
		t := status.Containment.LastEvaluatedAt
		resp.Containment.LastEvaluatedAt = &t
	}
	for _, medicine := range status.Medicines {
		m := MedicineResponse{
			MedicineID:          medicine.MedicineID.String(),
			ConsecutiveFailures: medicine.ConsecutiveFailures,
			Stage:               string(medicine.Stage),
			LastSuccessAt:       medicine.Counter.LastSuccessAt,
		}
		if !medicine.Counter.LastAttemptAt.IsZero() {
			t := medicine.Counter.LastAttemptAt
			m.LastAttemptAt = &t
		}
		resp.Medicines = append(resp.Medicines, m)
	}
	for _, a := range status.OpenAlerts {
		resp.OpenAlerts = append(resp.OpenAlerts, OpenAlertResponse{
			ID:       a.ID.String(),
			Kind:     string(a.Kind),
			Message:  a.Message,
			OpenedAt: a.OpenedAt,
		})
	}
	return resp
}

// FromEvent renders a fanout event as the SSE data payload.
func FromEvent(event fanout.Event) ([]byte, error) {
	return json.Marshal(event)
}
