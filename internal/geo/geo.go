// Package geo provides great-circle geometry for boundary containment.
// Inputs are assumed to be valid lat/lng pairs (lat in [-90,90], lng in
// [-180,180]); callers validate at the trust boundary.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Circle is a circular region around a center point.
type Circle struct {
	Center       Point
	RadiusMeters float64
}

// DistanceMeters returns the great-circle (haversine) distance between two
// points in meters.
func DistanceMeters(a, b Point) float64 {
	latA := radians(a.Lat)
	latB := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BearingDegrees returns the initial compass bearing from one point to
// another, normalized to [0, 360).
func BearingDegrees(from, to Point) float64 {
	latA := radians(from.Lat)
	latB := radians(to.Lat)
	dLng := radians(to.Lng - from.Lng)

	y := math.Sin(dLng) * math.Cos(latB)
	x := math.Cos(latA)*math.Sin(latB) - math.Sin(latA)*math.Cos(latB)*math.Cos(dLng)
	bearing := math.Mod(degrees(math.Atan2(y, x))+360, 360)
	return bearing
}

// Contains reports whether the point lies within the circle. A point exactly
// on the radius counts as inside, so a subject sitting on a freshly saved
// boundary edge is not immediately alerted.
func Contains(p Point, c Circle) bool {
	return DistanceMeters(p, c.Center) <= c.RadiusMeters
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
