// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()

	return out.String(), err
}

func TestGeoDistanceCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"southern hemisphere", []string{"-1.2921,36.8219", "-4.0435,39.6682"}, "439.92\n"},
		{"mixed hemispheres", []string{"-0.503588,36.319839", "0.618263,34.339676"}, "253.06\n"},
		{"western longitudes", []string{"0,-1", "0,0"}, "111.19\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeRoot(t, append([]string{"geo", "distance"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestGeoDistanceCommandRejectsBadPoints(t *testing.T) {
	_, err := executeRoot(t, "geo", "distance", "-91,0", "0,0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude -91 out of range")
}

func TestGeoElevationCommandAcceptsSouthernLatitude(t *testing.T) {
	// the point is checked before any provider call
	_, err := executeRoot(t, "geo", "elevation", "-91.5,36.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude -91.5 out of range")
	assert.NotContains(t, err.Error(), "shorthand")
}

func TestGeoETACommand(t *testing.T) {
	out, err := executeRoot(t, "geo", "eta", "1", "hours", "30", "mins")
	require.NoError(t, err)
	assert.Equal(t, "1.5\n", out)
}
