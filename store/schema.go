// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp fields maintained for schemas with Timestamps set.
const (
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
)

// Kind is the value type a field accepts.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindInteger
	KindBool
	KindDate
	KindRef
	KindArray
	KindObject
)

var kindNames = map[Kind]string{
	KindAny:     "any",
	KindString:  "string",
	KindNumber:  "number",
	KindInteger: "integer",
	KindBool:    "bool",
	KindDate:    "date",
	KindRef:     "reference",
	KindArray:   "array",
	KindObject:  "object",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Field is one declarative constraint of a table.
type Field struct {
	Name     string // dotted for nested fields, e.g. "coord.lat"
	Kind     Kind
	Required bool
	Enum     []string
	Email    bool
	Positive bool
	MinItems int
	Default  any
	// Ref names the referenced table. Set on KindRef fields and on
	// KindArray fields holding references.
	Ref    string
	Unique bool
}

// Schema describes one table.
type Schema struct {
	Table      string
	Aliases    []string
	Collection string
	Fields     []Field
	Timestamps bool
}

// CollectionName returns the backend collection, which defaults to the table name.
func (s *Schema) CollectionName() string {
	if s.Collection != "" {
		return s.Collection
	}

	return s.Table
}

// Field returns the constraint declared for name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return Field{}, false
}

// UniqueFields lists the fields backed by a unique index.
func (s *Schema) UniqueFields() []string {
	var out []string

	for _, f := range s.Fields {
		if f.Unique {
			out = append(out, f.Name)
		}
	}

	return out
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// Normalize checks r against the schema and returns a copy with values cast
// to their declared kinds (numeric strings to numbers, date strings to
// time.Time). With partial set, only the fields present in r are checked,
// which is how updates are validated. Defaults are applied otherwise.
func (s *Schema) Normalize(r Record, partial bool) (Record, []FieldError) {
	out := cloneRecord(r)
	if out == nil {
		out = Record{}
	}

	var problems []FieldError

	for _, f := range s.Fields {
		v, present := lookupPath(out, f.Name)
		if present && v == nil {
			present = false
		}

		if !present {
			if partial {
				if f.Required && clearsPath(out, f.Name) {
					problems = append(problems, FieldError{Field: f.Name, Message: "is required"})

					continue
				}

				// updates may address nested fields with dotted keys
				if lv, ok := out[f.Name]; ok && lv != nil && strings.Contains(f.Name, ".") {
					cast, msg := f.check(lv)
					if msg != "" {
						problems = append(problems, FieldError{Field: f.Name, Message: msg})
					} else {
						out[f.Name] = cast
					}
				}

				continue
			}

			if f.Default != nil {
				setPath(out, f.Name, cloneValue(f.Default))

				continue
			}

			if f.Required {
				problems = append(problems, FieldError{Field: f.Name, Message: "is required"})
			}

			continue
		}

		cast, msg := f.check(v)
		if msg != "" {
			problems = append(problems, FieldError{Field: f.Name, Message: msg})

			continue
		}

		setPath(out, f.Name, cast)
	}

	return out, problems
}

// clearsPath reports whether r sets name, or one of its parents, to null
// either as a dotted key or through nested objects.
func clearsPath(r Record, name string) bool {
	for i := 0; i <= len(name); i++ {
		if i < len(name) && name[i] != '.' {
			continue
		}

		if v, ok := r[name[:i]]; ok && v == nil {
			return true
		}

		if v, ok := lookupPath(r, name[:i]); ok && v == nil {
			return true
		}
	}

	return false
}

func (f Field) check(v any) (any, string) {
	cast, msg := f.cast(v)
	if msg != "" {
		return nil, msg
	}

	switch c := cast.(type) {
	case string:
		if f.Required && strings.TrimSpace(c) == "" {
			return nil, "is required"
		}

		if len(f.Enum) > 0 && !contains(f.Enum, c) {
			return nil, fmt.Sprintf("must be one of %s", strings.Join(f.Enum, ", "))
		}

		if f.Email && !emailRe.MatchString(c) {
			return nil, "must be a valid email"
		}
	case float64:
		if f.Positive && c <= 0 {
			return nil, "must be positive"
		}
	case []any:
		if len(c) < f.MinItems {
			return nil, fmt.Sprintf("must have at least %d item(s)", f.MinItems)
		}
	}

	return cast, ""
}

func (f Field) cast(v any) (any, string) {
	switch f.Kind {
	case KindString, KindRef:
		s, ok := v.(string)
		if !ok {
			return nil, "must be a " + f.Kind.String()
		}

		return s, ""
	case KindNumber, KindInteger:
		n, ok := toFloat(v)
		if !ok {
			s, isStr := v.(string)
			if !isStr {
				return nil, "must be a number"
			}

			var err error
			if n, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return nil, "must be a number"
			}
		}

		if f.Kind == KindInteger && n != math.Trunc(n) {
			return nil, "must be an integer"
		}

		return n, ""
	case KindBool:
		switch b := v.(type) {
		case bool:
			return b, ""
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, "must be a boolean"
			}

			return parsed, ""
		default:
			return nil, "must be a boolean"
		}
	case KindDate:
		switch d := v.(type) {
		case time.Time:
			return d.UTC(), ""
		case string:
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, d); err == nil {
					return t.UTC(), ""
				}
			}

			return nil, "must be a date"
		default:
			return nil, "must be a date"
		}
	case KindArray:
		items, ok := normalizeValue(v).([]any)
		if !ok {
			return nil, "must be an array"
		}

		if f.Ref != "" {
			for _, it := range items {
				if _, ok := it.(string); !ok {
					return nil, "must hold " + f.Ref + " references"
				}
			}
		}

		return items, ""
	case KindObject:
		m, ok := asMap(v)
		if !ok {
			return nil, "must be an object"
		}

		return map[string]any(m), ""
	default:
		return v, ""
	}
}
