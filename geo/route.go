// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"errors"
	"log"

	"github.com/corridorhq/corridor/spatial"
	"golang.org/x/sync/errgroup"
)

// RouteResult is the outcome of FetchRouteDistance.
type RouteResult struct {
	Origin        *spatial.Point `json:"origin,omitempty"`
	Destination   *spatial.Point `json:"destination,omitempty"`
	DistanceKm    float64        `json:"distanceKm"`
	DurationHours float64        `json:"durationHours"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
}

// RouteService combines geocoding and the distance matrix.
type RouteService struct {
	geocoder Geocoder
	matrix   DistanceMatrix
	mode     string
}

// NewRouteService returns a service using driving mode.
func NewRouteService(geocoder Geocoder, matrix DistanceMatrix) *RouteService {
	return &RouteService{geocoder: geocoder, matrix: matrix, mode: DefaultMode}
}

// FetchRouteDistance geocodes both addresses and asks the distance matrix
// for the road distance between them.
//
// A geocoding failure is returned as an error. A distance matrix failure is
// not: it is reported in the result with Success false and the provider's
// message in Error.
func (s *RouteService) FetchRouteDistance(ctx context.Context, origin, destination string) (*RouteResult, error) {
	var from, to *GeocodingResult

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		from, err = s.geocoder.Geocode(gctx, origin)

		return err
	})

	g.Go(func() error {
		var err error
		to, err = s.geocoder.Geocode(gctx, destination)

		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("geo: route %q -> %q: %v", origin, destination, err)

		return nil, err
	}

	result := &RouteResult{Origin: &from.Point, Destination: &to.Point}

	leg, err := s.matrix.Distance(ctx, from.Point, to.Point, s.mode)
	if err != nil {
		log.Printf("geo: distance matrix %q -> %q: %v", origin, destination, err)

		result.Error = err.Error()

		var pe *ProviderError
		if errors.As(err, &pe) && pe.Message != "" {
			result.Error = pe.Message
		}

		return result, nil
	}

	result.DistanceKm = leg.DistanceMeters / 1000
	result.DurationHours = leg.DurationSeconds / 3600
	result.Success = true

	return result, nil
}
