// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry maps canonical lowercase table names to schemas. It is built
// once and never mutated, so it can be shared between goroutines.
type Registry struct {
	byName  map[string]*Schema
	schemas []*Schema
}

// Validate checks that the schema is usable by a registry.
func (s *Schema) Validate() error {
	if s.Table == "" {
		return errors.New("schema: table name must not be empty")
	}

	if !tableNameRe.MatchString(s.Table) {
		return fmt.Errorf("schema %q: table name must be lowercase letters, digits or underscores", s.Table)
	}

	if !tableNameRe.MatchString(s.CollectionName()) {
		return fmt.Errorf("schema %q: invalid collection name %q", s.Table, s.CollectionName())
	}

	seen := map[string]bool{}

	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %q: field with empty name", s.Table)
		}

		if seen[f.Name] {
			return fmt.Errorf("schema %q: field %q declared twice", s.Table, f.Name)
		}

		seen[f.Name] = true

		if f.Kind == KindRef && f.Ref == "" {
			return fmt.Errorf("schema %q: reference field %q has no target table", s.Table, f.Name)
		}
	}

	return nil
}

// NewRegistry builds a registry. Names and aliases are canonicalised to
// lowercase and must be unique; every reference must point to a registered
// table.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Schema)}

	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}

		for _, name := range append([]string{s.Table}, s.Aliases...) {
			name = strings.ToLower(name)
			if _, dup := r.byName[name]; dup {
				return nil, fmt.Errorf("registry: table name %q registered twice", name)
			}

			r.byName[name] = s
		}

		r.schemas = append(r.schemas, s)
	}

	for _, s := range r.schemas {
		for _, f := range s.Fields {
			if f.Ref == "" {
				continue
			}

			if _, ok := r.byName[f.Ref]; !ok {
				return nil, fmt.Errorf("registry: %s.%s references unknown table %q", s.Table, f.Name, f.Ref)
			}
		}
	}

	return r, nil
}

// Lookup resolves a table name, case-insensitively.
func (r *Registry) Lookup(table string) (*Schema, error) {
	s, ok := r.byName[strings.ToLower(strings.TrimSpace(table))]
	if !ok {
		return nil, &TableNotFoundError{Table: table}
	}

	return s, nil
}

// Tables returns the canonical table names, sorted.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.schemas))
	for _, s := range r.schemas {
		names = append(names, s.Table)
	}

	sort.Strings(names)

	return names
}

// Each calls fn for every schema in registration order.
func (r *Registry) Each(fn func(*Schema) error) error {
	for _, s := range r.schemas {
		if err := fn(s); err != nil {
			return err
		}
	}

	return nil
}
