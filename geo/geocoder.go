// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

// Package geo resolves addresses and road distances through an external
// mapping provider.
package geo

import (
	"context"

	"github.com/corridorhq/corridor/spatial"
)

// Provider names recorded with geocoding results.
const (
	ProviderGoogle = "google_maps"
	ProviderCache  = "cache"
)

// GeocodingResult represents a geocoding result from any provider.
type GeocodingResult struct {
	Point            spatial.Point `json:"point"`
	Confidence       string        `json:"confidence,omitempty"` // high, medium, low
	Provider         string        `json:"provider"`
	FormattedAddress string        `json:"formattedAddress,omitempty"`
}

// Leg is the distance matrix answer for one origin and destination.
type Leg struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	DistanceText    string  `json:"distanceText,omitempty"`
	DurationText    string  `json:"durationText,omitempty"`
}

// Geocoder resolves an address to coordinates. Failures are *GeocodeError.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
}

// DistanceMatrix returns the travel leg between two points. Failures are
// *ProviderError.
type DistanceMatrix interface {
	Distance(ctx context.Context, origin, destination spatial.Point, mode string) (*Leg, error)
}

// ElevationService returns the elevation of a point in meters. Failures are
// *ProviderError.
type ElevationService interface {
	Elevation(ctx context.Context, p spatial.Point) (float64, error)
}
