// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Query carries the optional read modifiers of List and GetByID.
type Query struct {
	Projection Projection
	// Expand lists reference fields to replace with the referenced records.
	Expand []string
}

// Dispatcher resolves a table name to its schema and runs CRUD operations
// against the backend. It is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	backend  Backend
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over the given registry and backend.
func NewDispatcher(registry *Registry, backend Backend) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		backend:  backend,
		now: func() time.Time {
			// stores keep millisecond precision
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// Registry returns the registry the dispatcher was built with.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) resolve(op, table string) (*Schema, error) {
	s, err := d.registry.Lookup(table)
	if err != nil {
		log.Printf("store: %s: %v", op, err)

		return nil, err
	}

	return s, nil
}

func (d *Dispatcher) fail(op string, s *Schema, err error) error {
	log.Printf("store: %s %s: %v", op, s.Table, err)

	return &PersistenceError{Table: s.Table, Op: op, Err: err}
}

func (d *Dispatcher) invalid(op string, err *ValidationError) error {
	log.Printf("store: %s: %v", op, err)

	return err
}

func toRecords(payload any) ([]Record, bool, error) {
	switch p := payload.(type) {
	case Record:
		return []Record{p}, true, nil
	case map[string]any:
		return []Record{p}, true, nil
	case []Record:
		return p, false, nil
	case []map[string]any:
		out := make([]Record, len(p))
		for i, m := range p {
			out[i] = m
		}

		return out, false, nil
	case []any:
		out := make([]Record, len(p))
		for i, e := range p {
			m, ok := asMap(e)
			if !ok {
				return nil, false, fmt.Errorf("element #%d is %T, not an object", i, e)
			}

			out[i] = m
		}

		return out, false, nil
	default:
		return nil, false, fmt.Errorf("payload is %T, not an object or a list of objects", payload)
	}
}

// Create validates and persists one record or a batch. payload is a Record
// (or map) for a single insert, or a slice of them for a batch.
//
// A batch is validated as a whole before anything is written, so a
// validation failure writes nothing. The insert itself is not atomic: when
// the store fails mid-batch the records before the failing one stay
// written.
func (d *Dispatcher) Create(ctx context.Context, table string, payload any) ([]Record, error) {
	s, err := d.resolve("create", table)
	if err != nil {
		return nil, err
	}

	records, single, err := toRecords(payload)
	if err != nil {
		return nil, d.invalid("create", &ValidationError{
			Table: s.Table, Index: -1, Fields: []FieldError{{Field: "payload", Message: err.Error()}},
		})
	}

	now := d.now()
	docs := make([]Record, 0, len(records))

	for i, r := range records {
		doc, problems := s.Normalize(r, false)

		if id, ok := doc[IDField]; ok && id != nil {
			if _, isStr := id.(string); !isStr {
				problems = append(problems, FieldError{Field: IDField, Message: "must be a string"})
			}
		}

		if len(problems) > 0 {
			idx := i
			if single {
				idx = -1
			}

			return nil, d.invalid("create", &ValidationError{Table: s.Table, Index: idx, Fields: problems})
		}

		if doc.ID() == "" {
			doc[IDField] = NewID()
		}

		if s.Timestamps {
			doc[CreatedAtField] = now
			doc[UpdatedAtField] = now
		}

		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return docs, nil
	}

	if err := d.backend.Insert(ctx, s.CollectionName(), docs); err != nil {
		return nil, d.fail("create", s, err)
	}

	return docs, nil
}

func (d *Dispatcher) checkExpand(s *Schema, fields []string) *ValidationError {
	var problems []FieldError

	for _, name := range fields {
		f, ok := s.Field(name)
		if !ok || f.Ref == "" {
			problems = append(problems, FieldError{Field: name, Message: "is not a reference field"})
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Table: s.Table, Index: -1, Fields: problems}
	}

	return nil
}

// expand replaces reference values with the referenced records. Missing
// scalar references become nil; missing array entries are dropped.
func (d *Dispatcher) expand(ctx context.Context, s *Schema, records []Record, fields []string) error {
	for _, name := range fields {
		f, _ := s.Field(name)

		target, err := d.registry.Lookup(f.Ref)
		if err != nil {
			return err
		}

		var ids []string

		seen := map[string]bool{}

		for _, r := range records {
			v, ok := lookupPath(r, name)
			if !ok {
				continue
			}

			for _, id := range refIDs(v) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}

		if len(ids) == 0 {
			continue
		}

		found, err := d.backend.FindByIDs(ctx, target.CollectionName(), ids)
		if err != nil {
			return fmt.Errorf("expanding %s: %w", name, err)
		}

		byID := make(map[string]Record, len(found))
		for _, rec := range found {
			byID[rec.ID()] = rec
		}

		for _, r := range records {
			v, ok := lookupPath(r, name)
			if !ok {
				continue
			}

			if id, isStr := v.(string); isStr {
				var ref any
				if rec, hit := byID[id]; hit {
					ref = cloneRecord(rec)
				}

				setPath(r, name, ref)

				continue
			}

			refs := []any{}

			for _, id := range refIDs(v) {
				if rec, hit := byID[id]; hit {
					refs = append(refs, cloneRecord(rec))
				}
			}

			setPath(r, name, refs)
		}
	}

	return nil
}

func refIDs(v any) []string {
	switch t := normalizeValue(v).(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func (d *Dispatcher) read(ctx context.Context, op string, s *Schema, filter Filter, q Query) ([]Record, error) {
	if verr := d.checkExpand(s, q.Expand); verr != nil {
		return nil, d.invalid(op, verr)
	}

	records, err := d.backend.Find(ctx, s.CollectionName(), filter, q.Projection)
	if err != nil {
		return nil, d.fail(op, s, err)
	}

	if err := d.expand(ctx, s, records, q.Expand); err != nil {
		return nil, d.fail(op, s, err)
	}

	if records == nil {
		records = []Record{}
	}

	return records, nil
}

// List returns every record of the table. An empty table yields an empty
// slice and no error.
func (d *Dispatcher) List(ctx context.Context, table string, q Query) ([]Record, error) {
	s, err := d.resolve("list", table)
	if err != nil {
		return nil, err
	}

	return d.read(ctx, "list", s, nil, q)
}

// GetByID returns the record with the given id, or nil when there is none.
// Absence is not an error here; compare ExistsByFilter.
func (d *Dispatcher) GetByID(ctx context.Context, table, id string, q Query) (Record, error) {
	s, err := d.resolve("get", table)
	if err != nil {
		return nil, err
	}

	records, err := d.read(ctx, "get", s, Filter{IDField: id}, q)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	return records[0], nil
}

// GetByFilter returns the records equal to filter on every given field.
func (d *Dispatcher) GetByFilter(ctx context.Context, table string, filter Filter, proj Projection) ([]Record, error) {
	s, err := d.resolve("find", table)
	if err != nil {
		return nil, err
	}

	return d.read(ctx, "find", s, filter, Query{Projection: proj})
}

// ExistsByFilter returns true when at least one record matches, and a
// NotFoundError otherwise.
func (d *Dispatcher) ExistsByFilter(ctx context.Context, table string, filter Filter) (bool, error) {
	s, err := d.resolve("exists", table)
	if err != nil {
		return false, err
	}

	n, err := d.backend.Count(ctx, s.CollectionName(), filter)
	if err != nil {
		return false, d.fail("exists", s, err)
	}

	if n == 0 {
		return false, &NotFoundError{Table: s.Table, Filter: filter}
	}

	return true, nil
}

// Update sets the given fields on the record with the given id and returns
// how many records matched and changed. Only the supplied fields are
// validated.
func (d *Dispatcher) Update(ctx context.Context, table, id string, partial Record) (UpdateResult, error) {
	s, err := d.resolve("update", table)
	if err != nil {
		return UpdateResult{}, err
	}

	var problems []FieldError

	for k, v := range partial {
		switch {
		case strings.HasPrefix(k, "$"):
			problems = append(problems, FieldError{Field: k, Message: "update operators are not supported"})
		case k == IDField && v != id:
			problems = append(problems, FieldError{Field: k, Message: "cannot be changed"})
		}
	}

	set, more := s.Normalize(partial, true)
	problems = append(problems, more...)

	if len(problems) > 0 {
		return UpdateResult{}, d.invalid("update", &ValidationError{Table: s.Table, Index: -1, Fields: problems})
	}

	delete(set, IDField)
	delete(set, CreatedAtField)

	if s.Timestamps {
		set[UpdatedAtField] = d.now()
	}

	res, err := d.backend.Update(ctx, s.CollectionName(), id, set)
	if err != nil {
		return UpdateResult{}, d.fail("update", s, err)
	}

	return res, nil
}

// Delete removes the record with the given id and returns the number of
// records removed.
func (d *Dispatcher) Delete(ctx context.Context, table, id string) (int64, error) {
	s, err := d.resolve("delete", table)
	if err != nil {
		return 0, err
	}

	n, err := d.backend.Delete(ctx, s.CollectionName(), id)
	if err != nil {
		return 0, d.fail("delete", s, err)
	}

	return n, nil
}

// DeleteAll empties the table.
func (d *Dispatcher) DeleteAll(ctx context.Context, table string) (int64, error) {
	s, err := d.resolve("delete-all", table)
	if err != nil {
		return 0, err
	}

	n, err := d.backend.DeleteAll(ctx, s.CollectionName())
	if err != nil {
		return 0, d.fail("delete-all", s, err)
	}

	return n, nil
}

// Count returns the number of records in the table.
func (d *Dispatcher) Count(ctx context.Context, table string) (int64, error) {
	s, err := d.resolve("count", table)
	if err != nil {
		return 0, err
	}

	n, err := d.backend.Count(ctx, s.CollectionName(), nil)
	if err != nil {
		return 0, d.fail("count", s, err)
	}

	return n, nil
}

// Migrate creates the unique indexes declared by the registered schemas.
func (d *Dispatcher) Migrate(ctx context.Context) error {
	return d.registry.Each(func(s *Schema) error {
		unique := s.UniqueFields()
		if len(unique) == 0 {
			return nil
		}

		if err := d.backend.EnsureIndexes(ctx, s.CollectionName(), unique); err != nil {
			return d.fail("migrate", s, err)
		}

		return nil
	})
}
