// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/corridorhq/corridor/spatial"
	"github.com/corridorhq/corridor/store"
	"github.com/corridorhq/corridor/utils/textutils"
)

// CacheTable is the table holding cached geocoding results.
const CacheTable = "geocodes"

var _ Geocoder = (*CachedGeocoder)(nil)

// CachedGeocoder serves repeated addresses from the geocodes table and
// asks the wrapped geocoder only on a miss. Addresses are keyed by
// textutils.NormalizeAddress.
type CachedGeocoder struct {
	next Geocoder
	d    *store.Dispatcher
}

// NewCachedGeocoder wraps next with a cache stored through d.
func NewCachedGeocoder(next Geocoder, d *store.Dispatcher) *CachedGeocoder {
	return &CachedGeocoder{next: next, d: d}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func cachedResult(r store.Record) (*GeocodingResult, bool) {
	lat, okLat := number(r["lat"])
	lng, okLng := number(r["lng"])

	if !okLat || !okLng {
		return nil, false
	}

	formatted, _ := r["formattedAddress"].(string)

	return &GeocodingResult{
		Point:            spatial.Point{Lat: lat, Lng: lng},
		Provider:         ProviderCache,
		FormattedAddress: formatted,
	}, true
}

// Geocode implements Geocoder.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	key := textutils.NormalizeAddress(address)
	if key == "" {
		return nil, &GeocodeError{Address: address, Type: ErrorTypeInvalidRequest, Message: "empty address"}
	}

	hits, err := c.d.GetByFilter(ctx, CacheTable, store.Filter{"address": key}, store.Projection{})
	if err != nil {
		return nil, fmt.Errorf("reading geocode cache: %w", err)
	}

	if len(hits) > 0 {
		if res, ok := cachedResult(hits[0]); ok {
			return res, nil
		}
	}

	res, err := c.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	_, err = c.d.Create(ctx, CacheTable, store.Record{
		"address":          key,
		"lat":              res.Point.Lat,
		"lng":              res.Point.Lng,
		"formattedAddress": res.FormattedAddress,
		"provider":         res.Provider,
	})

	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateKey):
		// a concurrent lookup cached the same address first
	default:
		log.Printf("geo: caching %q: %v", key, err)
	}

	return res, nil
}
