// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corridorhq/corridor/fleet"
	"github.com/corridorhq/corridor/geo"
	"github.com/corridorhq/corridor/spatial"
	"github.com/corridorhq/corridor/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoutes struct {
	result *geo.RouteResult
	err    error
}

func (f *fakeRoutes) FetchRouteDistance(context.Context, string, string) (*geo.RouteResult, error) {
	return f.result, f.err
}

type fakeElevation struct {
	meters float64
	err    error
}

func (f *fakeElevation) Elevation(context.Context, spatial.Point) (float64, error) {
	return f.meters, f.err
}

func setupServerTest(t *testing.T, opts Options) (*gin.Engine, *store.Dispatcher) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	reg, err := fleet.NewRegistry()
	require.NoError(t, err)

	d := store.NewDispatcher(reg, store.NewMemoryBackend())
	require.NoError(t, d.Migrate(context.Background()))

	return NewServer(d, opts).Handler(), d
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())

	return out
}

var gilgil = map[string]any{
	"name":  "Gilgil",
	"coord": map[string]any{"lat": -0.503588, "lng": 36.319839},
}

func TestTableCRUD(t *testing.T) {
	router, _ := setupServerTest(t, Options{})

	w := do(t, router, http.MethodPost, "/api/tables/stations", gilgil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[map[string]any](t, w)
	id, _ := created["_id"].(string)
	require.Len(t, id, 24)
	assert.Equal(t, "Gilgil", created["name"])
	assert.Equal(t, 30.0, created["radius"])

	w = do(t, router, http.MethodGet, "/api/tables/stations/"+id+"?select=name", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"_id": id, "name": "Gilgil"}, decode[map[string]any](t, w))

	w = do(t, router, http.MethodPatch, "/api/tables/stations/"+id, map[string]any{"radius": 50})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"matched": 1.0, "modified": 1.0}, decode[map[string]any](t, w))

	w = do(t, router, http.MethodPost, "/api/tables/stations/search", map[string]any{"radius": 50})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = do(t, router, http.MethodPost, "/api/tables/stations/exists", map[string]any{"name": "Gilgil"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"exists": true}, decode[map[string]any](t, w))

	w = do(t, router, http.MethodDelete, "/api/tables/stations/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"deleted": 1.0}, decode[map[string]any](t, w))

	w = do(t, router, http.MethodGet, "/api/tables/stations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String(), "an absent record is an empty 200")

	w = do(t, router, http.MethodGet, "/api/tables/stations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestCreateBatchAndDeleteAll(t *testing.T) {
	router, _ := setupServerTest(t, Options{})

	towns := []map[string]any{
		{"name": "Nairobi", "shortName": "NBI", "country": "Kenya"},
		{"name": "Arusha", "shortName": "ARK", "country": "Tanzania", "coord": map[string]any{"lat": -3.3869, "lng": 36.6822}},
	}

	w := do(t, router, http.MethodPost, "/api/tables/Towns", towns)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = do(t, router, http.MethodDelete, "/api/tables/towns", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"deleted": 2.0}, decode[map[string]any](t, w))
}

func TestPopulate(t *testing.T) {
	router, d := setupServerTest(t, Options{})
	ctx := context.Background()

	stations, err := d.Create(ctx, fleet.Stations, []store.Record{gilgil, {
		"name":  "Kocholia",
		"coord": map[string]any{"lat": 0.618263, "lng": 34.339676},
	}})
	require.NoError(t, err)

	_, err = d.Create(ctx, fleet.Routes, store.Record{
		"name":       "Gilgil-Kocholia",
		"code":       "ROUTE2",
		"startPoint": stations[0].ID(),
		"endPoint":   stations[1].ID(),
		"stations":   []any{stations[0].ID(), stations[1].ID()},
	})
	require.NoError(t, err)

	w := do(t, router, http.MethodGet, "/api/tables/routes?populate=startPoint,endPoint&select=code+startPoint+endPoint", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	routes := decode[[]map[string]any](t, w)
	require.Len(t, routes, 1)
	assert.Equal(t, "Gilgil", routes[0]["startPoint"].(map[string]any)["name"])
	assert.Equal(t, "Kocholia", routes[0]["endPoint"].(map[string]any)["name"])
	assert.NotContains(t, routes[0], "stations")
}

func TestErrorStatuses(t *testing.T) {
	router, _ := setupServerTest(t, Options{})

	tests := []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"unknown table", http.MethodGet, "/api/tables/nonexistent", nil, http.StatusNotFound},
		{"create on unknown table", http.MethodPost, "/api/tables/nonexistent", map[string]any{"a": 1}, http.StatusNotFound},
		{"exists without match", http.MethodPost, "/api/tables/towns/exists", map[string]any{"name": "Atlantis"}, http.StatusNotFound},
		{"validation", http.MethodPost, "/api/tables/towns", map[string]any{"name": "Nairobi"}, http.StatusBadRequest},
		{"bad select", http.MethodGet, "/api/tables/towns?select=name+-country", nil, http.StatusBadRequest},
		{"populate a plain field", http.MethodGet, "/api/tables/towns?populate=name", nil, http.StatusBadRequest},
		{"missing body", http.MethodPost, "/api/tables/towns", nil, http.StatusBadRequest},
		{"update with operator", http.MethodPatch, "/api/tables/towns/abc", map[string]any{"$inc": 1}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]any](t, w)["error"])
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&store.TableNotFoundError{Table: "x"}, http.StatusNotFound},
		{&store.NotFoundError{Table: "x"}, http.StatusNotFound},
		{&store.ValidationError{Table: "x", Index: -1}, http.StatusBadRequest},
		{&spatial.ParseError{Text: "x", Reason: "empty duration"}, http.StatusBadRequest},
		{&store.PersistenceError{Table: "x", Op: "list", Err: errors.New("down")}, http.StatusInternalServerError},
		{&geo.GeocodeError{Address: "x"}, http.StatusUnprocessableEntity},
		{&geo.ProviderError{Service: "elevation"}, http.StatusBadGateway},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusOf(tc.err))
		})
	}
}

func TestGeoEndpoints(t *testing.T) {
	router, _ := setupServerTest(t, Options{
		Routes:    &fakeRoutes{result: &geo.RouteResult{DistanceKm: 484.5, DurationHours: 7.5, Success: true}},
		Elevation: &fakeElevation{meters: 1661.6},
	})

	w := do(t, router, http.MethodGet, "/api/geo/distance?from=-1.2921,36.8219&to=-4.0435,39.6682", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"distanceKm": 439.92}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/geo/distance?from=-88.4,0&to=88.4,180", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"distanceKm": 20015.09}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/geo/distance?from=-1.2921,36.8219", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/geo/eta?text=2+hours+30+mins", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hours": 2.5}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/geo/eta?text=5+days", nil)
	assert.JSONEq(t, `{"hours": 0}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/geo/eta?text=5+days&strict=true", nil)
	assert.JSONEq(t, `{"hours": 120}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/geo/eta?text=5+fortnights&strict=true", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/geo/route?origin=Mombasa&destination=Nairobi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"distanceKm": 484.5, "durationHours": 7.5, "success": true}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/geo/route?origin=Mombasa", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/geo/elevation?at=-1.2921,36.8219", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"elevation": 1661.6}`, w.Body.String())
}

func TestGeoProviderFailures(t *testing.T) {
	router, _ := setupServerTest(t, Options{
		Routes:    &fakeRoutes{err: &geo.GeocodeError{Address: "Atlantis", Message: "no results"}},
		Elevation: &fakeElevation{err: &geo.ProviderError{Service: "elevation", Type: geo.ErrorTypeTimeout, Message: "request failed"}},
	})

	w := do(t, router, http.MethodGet, "/api/geo/route?origin=Atlantis&destination=Nairobi", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, http.MethodGet, "/api/geo/elevation?at=0,0", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGeoWithoutProvider(t *testing.T) {
	router, _ := setupServerTest(t, Options{})

	w := do(t, router, http.MethodGet, "/api/geo/route?origin=a&destination=b", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, router, http.MethodGet, "/api/geo/elevation?at=0,0", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndTables(t *testing.T) {
	router, _ := setupServerTest(t, Options{})

	w := do(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[[]string](t, w), fleet.Trips)

	down, _ := setupServerTest(t, Options{Ping: func(context.Context) error { return errors.New("no reachable servers") }})
	w = do(t, down, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestID(t *testing.T) {
	router, _ := setupServerTest(t, Options{})

	w := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "trip-42")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "trip-42", w.Header().Get(RequestIDHeader))
}
