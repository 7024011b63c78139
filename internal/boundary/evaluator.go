// Package boundary evaluates location pings against a subject's safe-zone
// definition and manages the boundary records themselves.
package boundary

import (
	"caresignal/internal/geo"
	"caresignal/internal/signal/models"
)

// Evaluate classifies a ping against the subject's boundary. It is a pure
// function: it never reads or writes containment state, and a missing
// boundary yields UNRESOLVED rather than a silent INSIDE.
func Evaluate(ping *models.LocationPing, b *models.Boundary) models.ContainmentVerdict {
	if b == nil {
		return models.VerdictUnresolved
	}
	point := geo.Point{Lat: ping.Lat, Lng: ping.Lng}
	circle := geo.Circle{
		Center:       geo.Point{Lat: b.CenterLat, Lng: b.CenterLng},
		RadiusMeters: b.RadiusMeters,
	}
	if geo.Contains(point, circle) {
		return models.VerdictInside
	}
	return models.VerdictOutside
}
