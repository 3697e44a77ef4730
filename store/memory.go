// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"sync"
)

var _ Backend = (*MemoryBackend)(nil)

type memCollection struct {
	order  []string
	docs   map[string]Record
	unique []string
}

// MemoryBackend keeps collections in process memory. Safe for concurrent
// access. Intended for tests and development.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memCollection)}
}

func (m *MemoryBackend) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]Record)}
		m.collections[name] = c
	}

	return c
}

func (c *memCollection) conflict(doc Record, skipID string) error {
	for _, field := range c.unique {
		v, ok := lookupPath(doc, field)
		if !ok {
			continue
		}

		for id, other := range c.docs {
			if id == skipID {
				continue
			}

			if ov, ok := lookupPath(other, field); ok && valuesEqual(ov, v) {
				return fmt.Errorf("%w: %s=%v", ErrDuplicateKey, field, v)
			}
		}
	}

	return nil
}

// Insert stores copies of records in order, stopping at the first conflict.
func (m *MemoryBackend) Insert(_ context.Context, collection string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)

	for _, r := range records {
		id := r.ID()
		if _, dup := c.docs[id]; dup {
			return fmt.Errorf("%w: _id=%s", ErrDuplicateKey, id)
		}

		if err := c.conflict(r, ""); err != nil {
			return err
		}

		c.docs[id] = cloneRecord(r)
		c.order = append(c.order, id)
	}

	return nil
}

// Find returns projected copies of the matching records.
func (m *MemoryBackend) Find(_ context.Context, collection string, filter Filter, proj Projection) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return []Record{}, nil
	}

	out := []Record{}

	for _, id := range c.order {
		doc := c.docs[id]
		if filter.Matches(doc) {
			out = append(out, proj.Apply(cloneRecord(doc)))
		}
	}

	return out, nil
}

// FindByIDs returns copies of the records with the given ids.
func (m *MemoryBackend) FindByIDs(_ context.Context, collection string, ids []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return []Record{}, nil
	}

	out := make([]Record, 0, len(ids))

	for _, id := range ids {
		if doc, ok := c.docs[id]; ok {
			out = append(out, cloneRecord(doc))
		}
	}

	return out, nil
}

// Update applies set to the record. Modified is 0 when every value was
// already equal.
func (m *MemoryBackend) Update(_ context.Context, collection, id string, set Record) (UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return UpdateResult{}, nil
	}

	doc, ok := c.docs[id]
	if !ok {
		return UpdateResult{}, nil
	}

	next := cloneRecord(doc)
	changed := false

	for k, v := range set {
		if old, ok := lookupPath(next, k); !ok || !valuesEqual(old, v) {
			changed = true
		}

		setPath(next, k, cloneValue(v))
	}

	if !changed {
		return UpdateResult{Matched: 1}, nil
	}

	if err := c.conflict(next, id); err != nil {
		return UpdateResult{}, err
	}

	c.docs[id] = next

	return UpdateResult{Matched: 1, Modified: 1}, nil
}

// Delete removes one record.
func (m *MemoryBackend) Delete(_ context.Context, collection, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}

	if _, ok := c.docs[id]; !ok {
		return 0, nil
	}

	delete(c.docs, id)

	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)

			break
		}
	}

	return 1, nil
}

// DeleteAll empties the collection. Unique indexes survive.
func (m *MemoryBackend) DeleteAll(_ context.Context, collection string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}

	n := int64(len(c.docs))
	c.docs = make(map[string]Record)
	c.order = nil

	return n, nil
}

// Count returns the number of matching records.
func (m *MemoryBackend) Count(_ context.Context, collection string, filter Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}

	var n int64

	for _, doc := range c.docs {
		if filter.Matches(doc) {
			n++
		}
	}

	return n, nil
}

// EnsureIndexes records the unique fields and checks existing records
// against them.
func (m *MemoryBackend) EnsureIndexes(_ context.Context, collection string, unique []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)

	for _, f := range unique {
		if !contains(c.unique, f) {
			c.unique = append(c.unique, f)
		}
	}

	for id, doc := range c.docs {
		if err := c.conflict(doc, id); err != nil {
			return err
		}
	}

	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close(_ context.Context) error { return nil }
