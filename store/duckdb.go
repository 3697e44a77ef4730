// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var _ Backend = (*DuckDBBackend)(nil)

// DuckDBBackend keeps every collection in a DuckDB table of
// (id, seq, doc) rows, doc holding relaxed MongoDB extended JSON so that
// dates survive the round trip. Filters and projections are evaluated in
// Go, which suits the local datasets it is meant for.
type DuckDBBackend struct {
	db *sql.DB

	mu     sync.Mutex
	ready  map[string]bool
	unique map[string][]string
}

// NewDuckDBBackend wraps an open database. The backend owns db and closes
// it on Close.
func NewDuckDBBackend(db *sql.DB) *DuckDBBackend {
	return &DuckDBBackend{
		db:     db,
		ready:  make(map[string]bool),
		unique: make(map[string][]string),
	}
}

// ensure creates the table backing collection. Callers hold b.mu.
func (b *DuckDBBackend) ensure(ctx context.Context, collection string) error {
	if b.ready[collection] {
		return nil
	}

	if !tableNameRe.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS seq_%s START 1`, collection),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT nextval('seq_%s'),
			doc VARCHAR NOT NULL
		)`, collection, collection),
	}

	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating %s: %w", collection, err)
		}
	}

	b.ready[collection] = true

	return nil
}

func encodeDoc(r Record) (string, error) {
	data, err := bson.MarshalExtJSON(r, false, false)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	return string(data), nil
}

func decodeDoc(data string) (Record, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(data), false, &m); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	out, _ := fromBSON(m).(map[string]any)

	return Record(out), nil
}

func (b *DuckDBBackend) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []Record

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		doc, err := decodeDoc(data)
		if err != nil {
			return nil, err
		}

		out = append(out, doc)
	}

	return out, rows.Err()
}

func (b *DuckDBBackend) all(ctx context.Context, collection string) ([]Record, error) {
	return b.query(ctx, fmt.Sprintf(`SELECT doc FROM %s ORDER BY seq`, collection))
}

// conflict reports a unique-field clash between doc and the given records.
func (b *DuckDBBackend) conflict(collection string, doc Record, others []Record) error {
	for _, field := range b.unique[collection] {
		v, ok := lookupPath(doc, field)
		if !ok {
			continue
		}

		for _, o := range others {
			if o.ID() == doc.ID() {
				continue
			}

			if ov, ok := lookupPath(o, field); ok && valuesEqual(ov, v) {
				return fmt.Errorf("%w: %s=%v", ErrDuplicateKey, field, v)
			}
		}
	}

	return nil
}

func isDuckDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

// Insert writes records one by one; a failure keeps the earlier rows.
func (b *DuckDBBackend) Insert(ctx context.Context, collection string, records []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensure(ctx, collection); err != nil {
		return err
	}

	var existing []Record

	if len(b.unique[collection]) > 0 {
		var err error
		if existing, err = b.all(ctx, collection); err != nil {
			return err
		}
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, collection)

	for _, r := range records {
		if err := b.conflict(collection, r, existing); err != nil {
			return err
		}

		data, err := encodeDoc(r)
		if err != nil {
			return err
		}

		if _, err := b.db.ExecContext(ctx, stmt, r.ID(), data); err != nil {
			if isDuckDuplicate(err) {
				return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
			}

			return fmt.Errorf("inserting document: %w", err)
		}

		existing = append(existing, r)
	}

	return nil
}

// Find scans the collection in insertion order.
func (b *DuckDBBackend) Find(ctx context.Context, collection string, filter Filter, proj Projection) ([]Record, error) {
	b.mu.Lock()
	err := b.ensure(ctx, collection)
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var docs []Record

	if id, ok := filter[IDField].(string); ok && len(filter) == 1 {
		docs, err = b.query(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, collection), id)
	} else {
		docs, err = b.all(ctx, collection)
	}

	if err != nil {
		return nil, err
	}

	out := []Record{}

	for _, d := range docs {
		if filter.Matches(d) {
			out = append(out, proj.Apply(d))
		}
	}

	return out, nil
}

// FindByIDs selects rows by primary key.
func (b *DuckDBBackend) FindByIDs(ctx context.Context, collection string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}

	b.mu.Lock()
	err := b.ensure(ctx, collection)
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	q := fmt.Sprintf(`SELECT doc FROM %s WHERE id IN (%s)`,
		collection, strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","))

	return b.query(ctx, q, args...)
}

// Update reads, merges and rewrites one document.
func (b *DuckDBBackend) Update(ctx context.Context, collection, id string, set Record) (UpdateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensure(ctx, collection); err != nil {
		return UpdateResult{}, err
	}

	docs, err := b.query(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, collection), id)
	if err != nil {
		return UpdateResult{}, err
	}

	if len(docs) == 0 {
		return UpdateResult{}, nil
	}

	doc := docs[0]
	changed := false

	for k, v := range set {
		if old, ok := lookupPath(doc, k); !ok || !valuesEqual(old, v) {
			changed = true
		}

		setPath(doc, k, v)
	}

	if !changed {
		return UpdateResult{Matched: 1}, nil
	}

	if len(b.unique[collection]) > 0 {
		others, err := b.all(ctx, collection)
		if err != nil {
			return UpdateResult{}, err
		}

		if err := b.conflict(collection, doc, others); err != nil {
			return UpdateResult{}, err
		}
	}

	data, err := encodeDoc(doc)
	if err != nil {
		return UpdateResult{}, err
	}

	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, collection), data, id); err != nil {
		return UpdateResult{}, fmt.Errorf("updating document: %w", err)
	}

	return UpdateResult{Matched: 1, Modified: 1}, nil
}

func (b *DuckDBBackend) exec(ctx context.Context, collection, q string, args ...any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensure(ctx, collection); err != nil {
		return 0, err
	}

	res, err := b.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}

	return res.RowsAffected()
}

// Delete removes one row.
func (b *DuckDBBackend) Delete(ctx context.Context, collection, id string) (int64, error) {
	return b.exec(ctx, collection, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, collection), id)
}

// DeleteAll removes every row.
func (b *DuckDBBackend) DeleteAll(ctx context.Context, collection string) (int64, error) {
	return b.exec(ctx, collection, fmt.Sprintf(`DELETE FROM %s`, collection))
}

// Count counts rows, scanning documents only when a filter is given.
func (b *DuckDBBackend) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	if len(filter) > 0 {
		docs, err := b.Find(ctx, collection, filter, Projection{})

		return int64(len(docs)), err
	}

	b.mu.Lock()
	err := b.ensure(ctx, collection)
	b.mu.Unlock()

	if err != nil {
		return 0, err
	}

	var n int64
	if err := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, collection)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}

	return n, nil
}

// EnsureIndexes registers unique fields, enforced on every write.
func (b *DuckDBBackend) EnsureIndexes(ctx context.Context, collection string, unique []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensure(ctx, collection); err != nil {
		return err
	}

	for _, f := range unique {
		if !contains(b.unique[collection], f) {
			b.unique[collection] = append(b.unique[collection], f)
		}
	}

	docs, err := b.all(ctx, collection)
	if err != nil {
		return err
	}

	for _, d := range docs {
		if err := b.conflict(collection, d, docs); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the database.
func (b *DuckDBBackend) Close(_ context.Context) error {
	if err := b.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("closing duckdb: %w", err)
	}

	return nil
}
