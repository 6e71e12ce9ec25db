// Package geo provides geodesic distance primitives used by every
// spatial component in the pipeline.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the Haversine formula.
const earthRadiusMeters = 6_371_000

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat" mapstructure:"lat"`
	Lng float64 `json:"lng" yaml:"lng" mapstructure:"lng"`
}

// Distance returns the great-circle distance in meters between two points
// using the Haversine formula. NaN coordinates propagate as NaN distances;
// validation is the caller's responsibility.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// WithinRadius reports whether p lies within radiusMeters of center.
// The boundary is inclusive.
func WithinRadius(p, center Point, radiusMeters float64) bool {
	return Distance(p, center) <= radiusMeters
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
