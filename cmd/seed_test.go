// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/corridorhq/corridor/fleet"
	"github.com/corridorhq/corridor/geo"
	"github.com/corridorhq/corridor/spatial"
	"github.com/corridorhq/corridor/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryDispatcher(t *testing.T) *store.Dispatcher {
	t.Helper()

	reg, err := fleet.NewRegistry()
	require.NoError(t, err)

	d := store.NewDispatcher(reg, store.NewMemoryBackend())
	require.NoError(t, d.Migrate(context.Background()))

	return d
}

func TestSeedTables(t *testing.T) {
	ctx := context.Background()
	d := newMemoryDispatcher(t)

	seed, err := store.LoadSeedFile("testdata/seed.json")
	require.NoError(t, err)
	require.NoError(t, seedTables(ctx, d, seed, nil, 1))

	want := map[string]int64{
		fleet.Towns:       45,
		fleet.Stations:    17,
		fleet.Checkpoints: 15,
		fleet.Routes:      6,
		fleet.Companies:   1,
	}
	for table, n := range want {
		got, err := d.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, n, got, table)
	}

	t.Run("route distances", func(t *testing.T) {
		routes, err := d.GetByFilter(ctx, fleet.Routes, store.Filter{"code": "ROUTE1"}, store.Projection{})
		require.NoError(t, err)
		require.Len(t, routes, 1)
		assert.InDelta(t, 439.92, routes[0]["distance"], 1e-9)
	})

	t.Run("station cells", func(t *testing.T) {
		stations, err := d.GetByFilter(ctx, fleet.Stations, store.Filter{"name": "Mombasa"}, store.Projection{})
		require.NoError(t, err)
		require.Len(t, stations, 1)

		cell, err := spatial.CellOf(spatial.Point{Lat: -4.0435, Lng: 39.6682}, spatial.DefaultCellResolution)
		require.NoError(t, err)
		assert.Equal(t, cell.String(), stations[0]["h3Cell"])
	})

	t.Run("checkpoint cells", func(t *testing.T) {
		checkpoints, err := d.List(ctx, fleet.Checkpoints, store.Query{})
		require.NoError(t, err)

		for _, c := range checkpoints {
			assert.NotEmpty(t, c["h3Cell"], c["name"])
		}
	})

	t.Run("second run skips seeded tables", func(t *testing.T) {
		again, err := store.LoadSeedFile("testdata/seed.json")
		require.NoError(t, err)
		require.NoError(t, seedTables(ctx, d, again, nil, 1))

		n, err := d.Count(ctx, fleet.Towns)
		require.NoError(t, err)
		assert.Equal(t, int64(45), n)
	})
}

func TestSeedTablesSkipsNonEmptyTable(t *testing.T) {
	ctx := context.Background()
	d := newMemoryDispatcher(t)

	_, err := d.Create(ctx, fleet.Towns, store.Record{"name": "Voi", "shortName": "VOI", "country": "Kenya"})
	require.NoError(t, err)

	seed := &store.SeedData{Tables: []store.SeedTable{
		{Table: fleet.Towns, Records: []store.Record{{"name": "Mtito Andei", "shortName": "MTA", "country": "Kenya"}}},
	}}
	require.NoError(t, seedTables(ctx, d, seed, nil, 1))

	towns, err := d.List(ctx, fleet.Towns, store.Query{})
	require.NoError(t, err)
	require.Len(t, towns, 1)
	assert.Equal(t, "Voi", towns[0]["name"])
}

func TestAddCells(t *testing.T) {
	records := []store.Record{
		{"name": "Gilgil", "coord": map[string]any{"lat": -0.503588, "lng": 36.319839}},
		{"name": "kept", "coord": map[string]any{"lat": -0.5, "lng": 36.3}, "h3Cell": "abc"},
		{"name": "no position"},
		{"name": "out of range", "coord": map[string]any{"lat": 91.0, "lng": 0.0}},
	}

	assert.Equal(t, 1, addCells(records, coordOf))
	assert.NotEmpty(t, records[0]["h3Cell"])
	assert.Equal(t, "abc", records[1]["h3Cell"])
	assert.NotContains(t, records[2], "h3Cell")
	assert.NotContains(t, records[3], "h3Cell")
}

func TestAddRouteDistances(t *testing.T) {
	ctx := context.Background()
	d := newMemoryDispatcher(t)

	stored, err := d.Create(ctx, fleet.Stations, store.Record{
		"name":  "Maungu",
		"coord": map[string]any{"lat": -3.561971, "lng": 38.756758},
	})
	require.NoError(t, err)

	known := map[string]store.Record{
		"mariakani": {"_id": "mariakani", "coord": map[string]any{"lat": -3.822974, "lng": 39.427582}},
	}

	routes := []store.Record{
		{"code": "MRK-MGU", "startPoint": "mariakani", "endPoint": stored[0].ID()},
		{"code": "KEEP", "startPoint": "mariakani", "endPoint": stored[0].ID(), "distance": 1.0},
		{"code": "GHOST", "startPoint": "mariakani", "endPoint": "65a4e8557a9991cfc6315fff"},
	}

	n, err := addRouteDistances(ctx, d, routes, known)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 79.89, routes[0]["distance"], 1e-9)
	assert.InDelta(t, 1.0, routes[1]["distance"], 1e-9)
	assert.NotContains(t, routes[2], "distance")
}

type fakeGeocoder struct {
	mu     sync.Mutex
	calls  []string
	points map[string]spatial.Point
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*geo.GeocodingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, address)

	p, ok := f.points[address]
	if !ok {
		return nil, &geo.GeocodeError{Address: address, Type: geo.ErrorTypeNotFound, Message: "no results", Err: errors.New("ZERO_RESULTS")}
	}

	return &geo.GeocodingResult{Point: p, Provider: "fake"}, nil
}

func TestGeocodeTowns(t *testing.T) {
	g := &fakeGeocoder{points: map[string]spatial.Point{
		"Voi, Kenya": {Lat: -3.3961, Lng: 38.5561},
	}}

	towns := []store.Record{
		{"name": "Voi", "country": "Kenya"},
		{"name": "Mombasa", "country": "Kenya", "coord": map[string]any{"lat": -4.0435, "lng": 39.6682}},
		{"name": "Nowhere"},
	}

	n := geocodeTowns(context.Background(), g, towns, 2)

	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]any{"lat": -3.3961, "lng": 38.5561}, towns[0]["coord"])
	assert.NotContains(t, towns[2], "coord")

	sort.Strings(g.calls)
	assert.Equal(t, []string{"Nowhere", "Voi, Kenya"}, g.calls)
}
