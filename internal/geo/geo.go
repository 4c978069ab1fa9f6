// Package geo resolves GPS coordinates to human-readable place names.
// Resolution combines a user-maintained gazetteer of named regions with
// Nominatim reverse geocoding and an Overpass point-of-interest search.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// NewCoordinate validates latitude and longitude ranges.
func NewCoordinate(lat, lng float64) (Coordinate, error) {
	if lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("invalid latitude %f: must be between -90 and 90", lat)
	}
	if lng < -180 || lng > 180 {
		return Coordinate{}, fmt.Errorf("invalid longitude %f: must be between -180 and 180", lng)
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lng1 := a.Lng * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lng2 := b.Lng * math.Pi / 180

	dLat := lat2 - lat1
	dLng := lng2 - lng1

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)
	return earthRadiusMeters * 2 * math.Asin(math.Sqrt(h))
}
