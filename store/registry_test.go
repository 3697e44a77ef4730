// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	reg := testRegistry(t)

	for _, name := range []string{"routes", "Routes", " ROUTE ", "route"} {
		s, err := reg.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, "routes", s.Table)
	}

	_, err := reg.Lookup("ghosts")
	require.Error(t, err)
	assert.True(t, IsTableNotFound(err))
	assert.Equal(t, `table "ghosts" not found`, err.Error())

	assert.Equal(t, []string{"routes", "stations", "towns"}, reg.Tables())
}

func TestNewRegistryRejects(t *testing.T) {
	tests := []struct {
		name    string
		schemas []*Schema
		wantErr string
	}{
		{
			name:    "empty table name",
			schemas: []*Schema{{}},
			wantErr: "table name must not be empty",
		},
		{
			name:    "uppercase table name",
			schemas: []*Schema{{Table: "Towns"}},
			wantErr: "table name must be lowercase",
		},
		{
			name: "alias clash",
			schemas: []*Schema{
				{Table: "companies", Aliases: []string{"company"}},
				{Table: "company"},
			},
			wantErr: `table name "company" registered twice`,
		},
		{
			name: "duplicate field",
			schemas: []*Schema{{Table: "towns", Fields: []Field{
				{Name: "name", Kind: KindString},
				{Name: "name", Kind: KindString},
			}}},
			wantErr: `field "name" declared twice`,
		},
		{
			name:    "reference without target",
			schemas: []*Schema{{Table: "trips", Fields: []Field{{Name: "route", Kind: KindRef}}}},
			wantErr: "has no target table",
		},
		{
			name:    "unknown reference",
			schemas: []*Schema{{Table: "trips", Fields: []Field{{Name: "route", Kind: KindRef, Ref: "routes"}}}},
			wantErr: `references unknown table "routes"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.schemas...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSchemaUniqueFields(t *testing.T) {
	s, err := testRegistry(t).Lookup("routes")
	require.NoError(t, err)

	assert.Equal(t, []string{"code"}, s.UniqueFields())
	assert.Equal(t, "routes", s.CollectionName())

	f, ok := s.Field("startPoint")
	require.True(t, ok)
	assert.Equal(t, "stations", f.Ref)
}
