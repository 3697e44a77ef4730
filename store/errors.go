// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateKey is wrapped by backends when a unique index rejects a write.
var ErrDuplicateKey = errors.New("duplicate key")

// TableNotFoundError is returned when a table name has no registered schema.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Table)
}

// PersistenceError wraps any failure of the underlying store.
type PersistenceError struct {
	Table string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFoundError signals that an existence check matched no record.
type NotFoundError struct {
	Table  string
	Filter Filter
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no record in %s matches %v", e.Table, map[string]any(e.Filter))
}

// FieldError describes one failed field constraint.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError lists every field constraint a record failed.
type ValidationError struct {
	Table  string
	Index  int // position inside a batch, -1 for single records
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}

	if e.Index >= 0 {
		return fmt.Sprintf("invalid record #%d for %s: %s", e.Index, e.Table, strings.Join(parts, "; "))
	}

	return fmt.Sprintf("invalid record for %s: %s", e.Table, strings.Join(parts, "; "))
}

// IsTableNotFound reports whether err is (or wraps) a TableNotFoundError.
func IsTableNotFound(err error) bool {
	var e *TableNotFoundError

	return errors.As(err, &e)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError

	return errors.As(err, &e)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError

	return errors.As(err, &e)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var e *PersistenceError

	return errors.As(err, &e)
}
