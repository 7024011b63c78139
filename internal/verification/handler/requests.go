package handler

import (
	"strings"
	"time"

	"caresignal/internal/verification"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
)

// VerifyRequest is the HTTP request body for POST /verifications.
type VerifyRequest struct {
	EventID      string    `json:"event_id,omitempty"`
	SubjectID    string    `json:"subject_id"`
	MedicineID   string    `json:"medicine_id"`
	CandidateURL string    `json:"candidate_url"`
	ReferenceURL string    `json:"reference_url,omitempty"`
	ObservedAt   time.Time `json:"observed_at,omitempty"`

	domain verification.Request
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *VerifyRequest) Validate() error {
	subjectID, err := id.ParseSubjectID(r.SubjectID)
	if err != nil {
		return err
	}
	medicineID, err := id.ParseMedicineID(strings.TrimSpace(r.MedicineID))
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

	r.CandidateURL = strings.TrimSpace(r.CandidateURL)
	if r.CandidateURL == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "candidate_url is required")
	}

	r.domain = verification.Request{
		EventID:      eventID,
		SubjectID:    subjectID,
		MedicineID:   medicineID,
		CandidateURL: r.CandidateURL,
		ReferenceURL: strings.TrimSpace(r.ReferenceURL),
		ObservedAt:   r.ObservedAt,
	}
	return nil
}

// DomainRequest returns the validated domain request.
func (r *VerifyRequest) DomainRequest() verification.Request {
	return r.domain
}
