// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UpdateResult acknowledges an update.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// Backend is a document store addressed by collection name. Backends do not
// know about schemas: validation, defaults and expansion happen in the
// Dispatcher.
type Backend interface {
	// Insert persists records in order. A failure may leave a prefix of
	// records written.
	Insert(ctx context.Context, collection string, records []Record) error
	// Find returns the matching records in insertion order.
	Find(ctx context.Context, collection string, filter Filter, proj Projection) ([]Record, error)
	// FindByIDs returns the records whose _id is in ids, in any order.
	FindByIDs(ctx context.Context, collection string, ids []string) ([]Record, error)
	// Update sets the given fields on one record. Dotted keys address nested fields.
	Update(ctx context.Context, collection, id string, set Record) (UpdateResult, error)
	Delete(ctx context.Context, collection, id string) (int64, error)
	DeleteAll(ctx context.Context, collection string) (int64, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	// EnsureIndexes creates a unique index per field.
	EnsureIndexes(ctx context.Context, collection string, unique []string) error
	Close(ctx context.Context) error
}

// NewID returns a fresh record identifier. Identifiers are ObjectID hex
// strings on every backend so that records move between stores unchanged.
func NewID() string {
	return bson.NewObjectID().Hex()
}
