// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/corridorhq/corridor/spatial"
	"github.com/corridorhq/corridor/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCacheStore(t *testing.T) *store.Dispatcher {
	t.Helper()

	reg, err := store.NewRegistry(&store.Schema{
		Table: CacheTable,
		Fields: []store.Field{
			{Name: "address", Kind: store.KindString, Required: true, Unique: true},
			{Name: "lat", Kind: store.KindNumber, Required: true},
			{Name: "lng", Kind: store.KindNumber, Required: true},
			{Name: "formattedAddress", Kind: store.KindString},
			{Name: "provider", Kind: store.KindString},
		},
	})
	require.NoError(t, err)

	d := store.NewDispatcher(reg, store.NewMemoryBackend())
	require.NoError(t, d.Migrate(context.Background()))

	return d
}

func TestCachedGeocoder(t *testing.T) {
	ctx := context.Background()
	d := setupCacheStore(t)
	next := &fakeGeocoder{points: map[string]spatial.Point{"Mombasa, Kenya": {Lat: -4.0435, Lng: 39.6682}}}
	c := NewCachedGeocoder(next, d)

	first, err := c.Geocode(ctx, "Mombasa, Kenya")
	require.NoError(t, err)
	assert.Equal(t, "fake", first.Provider)

	second, err := c.Geocode(ctx, "  MOMBASA,   kenya. ")
	require.NoError(t, err)
	assert.Equal(t, ProviderCache, second.Provider)
	assert.Equal(t, first.Point, second.Point)
	assert.Equal(t, "Mombasa, Kenya, Kenya", second.FormattedAddress)

	assert.Equal(t, 1, next.calls)

	rows, err := d.List(ctx, CacheTable, store.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "mombasa, kenya", rows[0]["address"])
}

func TestCachedGeocoderMissIsNotCached(t *testing.T) {
	ctx := context.Background()
	d := setupCacheStore(t)
	c := NewCachedGeocoder(&fakeGeocoder{}, d)

	_, err := c.Geocode(ctx, "Atlantis")

	var ge *GeocodeError
	require.True(t, errors.As(err, &ge))

	n, err := d.Count(ctx, CacheTable)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCachedGeocoderRejectsEmptyAddress(t *testing.T) {
	next := &fakeGeocoder{}
	c := NewCachedGeocoder(next, setupCacheStore(t))

	_, err := c.Geocode(context.Background(), " ... ")

	var ge *GeocodeError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, ErrorTypeInvalidRequest, ge.Type)
	assert.Zero(t, next.calls)
}

func TestCachedGeocoderUnknownTable(t *testing.T) {
	reg, err := store.NewRegistry()
	require.NoError(t, err)

	c := NewCachedGeocoder(&fakeGeocoder{}, store.NewDispatcher(reg, store.NewMemoryBackend()))

	_, err = c.Geocode(context.Background(), "Mombasa")
	assert.True(t, store.IsTableNotFound(err))
}
