// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// DefaultCellResolution is the H3 resolution used to index stations and
// checkpoints; resolution 7 cells are roughly 5 km² which matches a
// geofence radius of a few kilometers.
const DefaultCellResolution = 7

// CellOf returns the H3 cell containing p at the given resolution.
func CellOf(p Point, res int) (h3.Cell, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return 0, fmt.Errorf("spatial: indexing %v at resolution %d: %w", p, res, err)
	}

	return cell, nil
}
