// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProjection(t *testing.T) {
	tests := []struct {
		input   string
		want    Projection
		wantErr bool
	}{
		{input: "", want: Projection{}},
		{input: "name code", want: Projection{Include: []string{"name", "code"}}},
		{input: "name,code", want: Projection{Include: []string{"name", "code"}}},
		{input: "-password -__v", want: Projection{Exclude: []string{"password", "__v"}}},
		{input: "name -_id", want: Projection{Include: []string{"name"}, Exclude: []string{"_id"}}},
		{input: "name -password", wantErr: true},
		{input: "-", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseProjection(tc.input)
			if tc.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseProjection(%q) mismatch (-want +got):\n%s", tc.input, diff)
			}
		})
	}
}

func TestProjectionApply(t *testing.T) {
	r := Record{
		IDField:    "1",
		"name":     "Mariakani",
		"password": "secret",
		"coord":    map[string]any{"lat": -3.82, "lng": 39.42},
	}

	tests := []struct {
		name string
		proj Projection
		want Record
	}{
		{"zero", Projection{}, r},
		{"include", Projection{Include: []string{"name"}}, Record{IDField: "1", "name": "Mariakani"}},
		{"include nested", Projection{Include: []string{"coord.lat"}}, Record{IDField: "1", "coord": map[string]any{"lat": -3.82}}},
		{"include without id", Projection{Include: []string{"name"}, Exclude: []string{IDField}}, Record{"name": "Mariakani"}},
		{"only id", Projection{Include: []string{IDField}}, Record{IDField: "1"}},
		{"exclude", Projection{Exclude: []string{"password", "coord.lng"}}, Record{
			IDField: "1", "name": "Mariakani", "coord": map[string]any{"lat": -3.82},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.proj.Apply(r)); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	assert.Equal(t, "secret", r["password"], "Apply must not modify its input")
}

func TestFilterMatches(t *testing.T) {
	when := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	r := Record{
		"name":     "ROUTE1",
		"radius":   float64(30),
		"seats":    int32(4),
		"coord":    map[string]any{"lat": -1.5},
		"stations": []any{"a", "b"},
		"departed": when,
		"isLoaded": false,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", nil, true},
		{"string", Filter{"name": "ROUTE1"}, true},
		{"string mismatch", Filter{"name": "ROUTE2"}, false},
		{"int against float", Filter{"radius": 30}, true},
		{"float against int32", Filter{"seats": 4.0}, true},
		{"nested", Filter{"coord.lat": -1.5}, true},
		{"array contains", Filter{"stations": "b"}, true},
		{"array exact", Filter{"stations": []string{"a", "b"}}, true},
		{"array miss", Filter{"stations": "c"}, false},
		{"time", Filter{"departed": when.In(time.FixedZone("EAT", 3*3600))}, true},
		{"bool", Filter{"isLoaded": false}, true},
		{"missing field", Filter{"code": "x"}, false},
		{"missing field null", Filter{"code": nil}, true},
		{"all clauses", Filter{"name": "ROUTE1", "radius": 31}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(r))
		})
	}
}
