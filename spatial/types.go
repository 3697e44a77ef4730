// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the coordinate type and the pure geospatial helpers
// used across corridor: great-circle distance, duration text parsing and H3
// cell indexing.
package spatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadius = 6371e3 // meters

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns the point in WKT form.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Validate checks that the coordinate lies within the valid ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("spatial: latitude %v out of range [-90, 90]", p.Lat)
	}

	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("spatial: longitude %v out of range [-180, 180]", p.Lng)
	}

	return nil
}

// ParsePoint parses "lat,lng" and validates the result.
func ParsePoint(s string) (Point, error) {
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("spatial: %q is not a lat,lng pair", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return Point{}, fmt.Errorf("spatial: invalid latitude %q: %w", latS, err)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return Point{}, fmt.Errorf("spatial: invalid longitude %q: %w", lngS, err)
	}

	p := Point{Lat: lat, Lng: lng}

	return p, p.Validate()
}

// DistanceTo calculates the great-circle distance to other in meters.
func (p Point) DistanceTo(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push a past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// HaversineDistance returns the great-circle distance between a and b in
// kilometers, rounded to two decimals.
func HaversineDistance(a, b Point) float64 {
	return math.Round(a.DistanceTo(b)/1000*100) / 100
}
