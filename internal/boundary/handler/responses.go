package handler

import (
	"time"

	"caresignal/internal/signal/models"
)

// BoundaryResponse is the HTTP response for boundary endpoints.
type BoundaryResponse struct {
	SubjectID    string    `json:"subject_id"`
	CenterLat    float64   `json:"center_lat"`
	CenterLng    float64   `json:"center_lng"`
	RadiusMeters float64   `json:"radius_meters"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FromBoundary converts a domain boundary to an HTTP response.
func FromBoundary(b *models.Boundary) *BoundaryResponse {
	return &BoundaryResponse{
		SubjectID:    b.SubjectID.String(),
		CenterLat:    b.CenterLat,
		CenterLng:    b.CenterLng,
		RadiusMeters: b.RadiusMeters,
		UpdatedAt:    b.UpdatedAt,
	}
}
