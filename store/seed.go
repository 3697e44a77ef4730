// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SeedTable holds the records of one table in a seed file.
type SeedTable struct {
	Table   string   `json:"table"`
	Records []Record `json:"records"`
}

// SeedData is the JSON seed file format. Tables are applied in order, so
// referenced tables should come first.
type SeedData struct {
	Version     string      `json:"version"`
	LastUpdated time.Time   `json:"last_updated"`
	Tables      []SeedTable `json:"tables"`
}

// LoadSeedFile reads a seed file.
func LoadSeedFile(path string) (*SeedData, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	return &seed, nil
}

// SeedIfEmpty inserts records into table only when the table has no
// records yet. It reports whether it seeded and how many records the table
// holds afterwards.
func SeedIfEmpty(ctx context.Context, d *Dispatcher, table string, records []Record) (bool, int, error) {
	count, err := d.Count(ctx, table)
	if err != nil {
		return false, 0, fmt.Errorf("counting %s: %w", table, err)
	}

	if count > 0 || len(records) == 0 {
		return false, int(count), nil
	}

	created, err := d.Create(ctx, table, records)
	if err != nil {
		return false, 0, fmt.Errorf("seeding %s: %w", table, err)
	}

	return true, len(created), nil
}

// ExportToJSON writes every record of the given tables to path, in the
// seed file format.
func ExportToJSON(ctx context.Context, d *Dispatcher, tables []string, path string) error {
	seed := &SeedData{
		Version:     "1.0",
		LastUpdated: time.Now().UTC(),
	}

	for _, table := range tables {
		records, err := d.List(ctx, table, Query{})
		if err != nil {
			return fmt.Errorf("listing %s: %w", table, err)
		}

		seed.Tables = append(seed.Tables, SeedTable{Table: table, Records: records})
	}

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
