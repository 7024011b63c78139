package handler

import (
	dErrors "caresignal/pkg/domain-errors"
)

// BoundaryRequest is the HTTP request body for PUT /subjects/{id}/boundary.
type BoundaryRequest struct {
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
// Full range validation happens in the domain constructor; this rejects
// the obviously empty body early.
func (r *BoundaryRequest) Validate() error {
	if r.RadiusMeters <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "radius_meters must be positive")
	}
	return nil
}
