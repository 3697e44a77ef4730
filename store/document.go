// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// IDField holds the store-assigned identifier of every record.
const IDField = "_id"

// Record is an opaque document. Its shape is defined by the table schema.
type Record map[string]any

// ID returns the record identifier, or "" when unset.
func (r Record) ID() string {
	if id, ok := r[IDField].(string); ok {
		return id
	}

	return ""
}

// Filter is an equality filter: every field must equal the given value.
// Dotted names address nested fields. An array field matches when any
// element equals the value.
type Filter map[string]any

// Projection restricts the fields returned by a read.
// Only one of Include and Exclude may be set, _id aside.
type Projection struct {
	Include []string
	Exclude []string
}

// IsZero reports whether the projection returns whole records.
func (p Projection) IsZero() bool {
	return len(p.Include) == 0 && len(p.Exclude) == 0
}

// ParseProjection parses a space or comma separated field list such as
// "name code" or "-password". A leading "-" excludes a field.
func ParseProjection(s string) (Projection, error) {
	var p Projection

	mixed := [2]bool{}

	for _, tok := range strings.Fields(strings.ReplaceAll(s, ",", " ")) {
		if name, ok := strings.CutPrefix(tok, "-"); ok {
			if name == "" {
				return Projection{}, fmt.Errorf("invalid projection token %q", tok)
			}

			p.Exclude = append(p.Exclude, name)
			if name != IDField {
				mixed[1] = true
			}

			continue
		}

		p.Include = append(p.Include, tok)
		if tok != IDField {
			mixed[0] = true
		}
	}

	if mixed[0] && mixed[1] {
		return Projection{}, fmt.Errorf("projection %q mixes included and excluded fields", s)
	}

	return p, nil
}

// Apply returns a projected copy of r.
func (p Projection) Apply(r Record) Record {
	if p.IsZero() {
		return r
	}

	if len(p.Include) == 0 {
		out := cloneRecord(r)
		for _, f := range p.Exclude {
			deletePath(out, f)
		}

		return out
	}

	out := Record{}
	if !contains(p.Exclude, IDField) {
		if id, ok := r[IDField]; ok {
			out[IDField] = id
		}
	}

	for _, f := range p.Include {
		if v, ok := lookupPath(r, f); ok {
			setPath(out, f, cloneValue(v))
		}
	}

	return out
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}

	return false
}

// Matches reports whether r satisfies every clause of f.
func (f Filter) Matches(r Record) bool {
	for k, want := range f {
		got, ok := lookupPath(r, k)
		if !ok {
			if want == nil {
				continue
			}

			return false
		}

		if !valuesEqual(got, want) && !arrayContains(got, want) {
			return false
		}
	}

	return true
}

func arrayContains(arr, want any) bool {
	items, ok := normalizeValue(arr).([]any)
	if !ok {
		return false
	}

	for _, it := range items {
		if valuesEqual(it, want) {
			return true
		}
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)

		return ok && fa == fb
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)

		return ok && ta.Equal(tb)
	}

	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

// normalizeValue rewrites Record and typed slices to the plain shapes
// produced by decoding, so that equality does not depend on named types.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case Record:
		return normalizeValue(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}

		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}

		return out
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	cur := any(doc)

	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}

		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}

	return cur, true
}

func setPath(doc map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}

		cur = next
	}

	cur[parts[len(parts)-1]] = v
}

func deletePath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	cur := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			return
		}

		cur = next
	}

	delete(cur, parts[len(parts)-1])
}

func cloneRecord(r Record) Record {
	if r == nil {
		return nil
	}

	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return cloneRecord(t)
	case map[string]any:
		return map[string]any(cloneRecord(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}

		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
