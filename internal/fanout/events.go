// Package fanout delivers evaluation outcomes to subscribed watchers.
// Events for a given subject are delivered in the order they were
// published; duplicates are possible and consumers key on EventID.
package fanout

import (
	"encoding/json"
	"time"

	id "caresignal/pkg/domain"
)

type EventType string

const (
	EventContainmentChanged EventType = "containment.changed"
	EventAttemptRecorded    EventType = "attempt.recorded"
	EventAlertOpened        EventType = "alert.opened"
	EventAlertResolved      EventType = "alert.resolved"
)

type Event struct {
	ID        id.EventID      `json:"id"`
	Type      EventType       `json:"type"`
	SubjectID id.SubjectID    `json:"subjectId"`
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	// Snapshot marks events replayed to a new subscriber to describe
	// current state rather than a fresh transition.
	Snapshot bool `json:"snapshot,omitempty"`
}

func NewEvent(eventType EventType, subjectID id.SubjectID, at time.Time, payload any) (Event, error) {
	event := Event{
		ID:        id.NewEventID(),
		Type:      eventType,
		SubjectID: subjectID,
		At:        at.UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		event.Payload = raw
	}
	return event, nil
}
