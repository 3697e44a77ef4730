// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var _ Backend = (*MongoBackend)(nil)

// MongoBackend stores each table in a MongoDB collection.
//
// The connection is opened lazily by the first operation and then shared by
// every table for the life of the process. A failed attempt is retried by
// the next operation; once connected, reconnection is left to the driver.
type MongoBackend struct {
	uri    string
	dbName string

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoBackend returns a backend for the given connection string and
// database. No connection is made until the first operation.
func NewMongoBackend(uri, database string) *MongoBackend {
	return &MongoBackend{uri: uri, dbName: database}
}

func (b *MongoBackend) database(ctx context.Context) (*mongo.Database, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return b.db, nil
	}

	opts := options.Client().
		ApplyURI(b.uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	log.Printf("store: connected to mongodb database %q", b.dbName)

	b.client = client
	b.db = client.Database(b.dbName)

	return b.db, nil
}

func (b *MongoBackend) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := b.database(ctx)
	if err != nil {
		return nil, err
	}

	return db.Collection(name), nil
}

// Ping checks database connectivity, connecting first when needed.
func (b *MongoBackend) Ping(ctx context.Context) error {
	db, err := b.database(ctx)
	if err != nil {
		return err
	}

	return db.Client().Ping(ctx, readpref.Primary())
}

// storeID maps ObjectID hex strings to ObjectIDs; other ids stay strings.
func storeID(id string) any {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return oid
	}

	return id
}

func toDocument(r Record) bson.M {
	doc := make(bson.M, len(r))
	for k, v := range r {
		doc[k] = v
	}

	if id := r.ID(); id != "" {
		doc[IDField] = storeID(id)
	}

	return doc
}

func toFilter(f Filter) bson.M {
	out := bson.M{}

	for k, v := range f {
		if id, ok := v.(string); ok && k == IDField {
			out[k] = storeID(id)

			continue
		}

		out[k] = v
	}

	return out
}

func toProjection(p Projection) bson.M {
	if p.IsZero() {
		return nil
	}

	out := bson.M{}
	for _, f := range p.Include {
		out[f] = 1
	}

	for _, f := range p.Exclude {
		out[f] = 0
	}

	return out
}

// fromBSON converts decoded driver values to plain Go values: documents to
// maps, arrays to []any, ObjectIDs to hex strings, datetimes to time.Time.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}

		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromBSON(e)
		}

		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSON(e)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSON(e)
		}

		return out
	case bson.ObjectID:
		return t.Hex()
	case bson.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

func fromDocuments(docs []bson.M) []Record {
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		m, _ := fromBSON(d).(map[string]any)
		out = append(out, Record(m))
	}

	return out
}

func wrapWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}

	return err
}

// Insert uses InsertOne for a single record and an ordered InsertMany
// otherwise.
func (b *MongoBackend) Insert(ctx context.Context, collection string, records []Record) error {
	col, err := b.collection(ctx, collection)
	if err != nil {
		return err
	}

	if len(records) == 1 {
		if _, err := col.InsertOne(ctx, toDocument(records[0])); err != nil {
			return wrapWriteErr(err)
		}

		return nil
	}

	docs := make([]bson.M, len(records))
	for i, r := range records {
		docs[i] = toDocument(r)
	}

	if _, err := col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return wrapWriteErr(err)
	}

	return nil
}

func (b *MongoBackend) find(ctx context.Context, collection string, filter bson.M, proj Projection) ([]Record, error) {
	col, err := b.collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	// insertion order, which List promises
	opts := options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}})
	if p := toProjection(proj); p != nil {
		opts.SetProjection(p)
	}

	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("finding documents: %w", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding documents: %w", err)
	}

	return fromDocuments(docs), nil
}

// Find runs an equality query.
func (b *MongoBackend) Find(ctx context.Context, collection string, filter Filter, proj Projection) ([]Record, error) {
	return b.find(ctx, collection, toFilter(filter), proj)
}

// FindByIDs runs an $in query on _id.
func (b *MongoBackend) FindByIDs(ctx context.Context, collection string, ids []string) ([]Record, error) {
	in := make(bson.A, len(ids))
	for i, id := range ids {
		in[i] = storeID(id)
	}

	return b.find(ctx, collection, bson.M{IDField: bson.M{"$in": in}}, Projection{})
}

// Update runs UpdateOne with $set.
func (b *MongoBackend) Update(ctx context.Context, collection, id string, set Record) (UpdateResult, error) {
	col, err := b.collection(ctx, collection)
	if err != nil {
		return UpdateResult{}, err
	}

	filter := bson.M{IDField: storeID(id)}

	if len(set) == 0 {
		// $set rejects an empty document
		n, err := col.CountDocuments(ctx, filter)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("counting documents: %w", err)
		}

		return UpdateResult{Matched: n}, nil
	}

	res, err := col.UpdateOne(ctx, filter, bson.M{"$set": bson.M(set)})
	if err != nil {
		return UpdateResult{}, wrapWriteErr(err)
	}

	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// Delete runs DeleteOne.
func (b *MongoBackend) Delete(ctx context.Context, collection, id string) (int64, error) {
	col, err := b.collection(ctx, collection)
	if err != nil {
		return 0, err
	}

	res, err := col.DeleteOne(ctx, bson.M{IDField: storeID(id)})
	if err != nil {
		return 0, fmt.Errorf("deleting document: %w", err)
	}

	return res.DeletedCount, nil
}

// DeleteAll runs DeleteMany with an empty filter.
func (b *MongoBackend) DeleteAll(ctx context.Context, collection string) (int64, error) {
	col, err := b.collection(ctx, collection)
	if err != nil {
		return 0, err
	}

	res, err := col.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}

	return res.DeletedCount, nil
}

// Count runs CountDocuments.
func (b *MongoBackend) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	col, err := b.collection(ctx, collection)
	if err != nil {
		return 0, err
	}

	n, err := col.CountDocuments(ctx, toFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}

	return n, nil
}

// EnsureIndexes creates one unique ascending index per field.
func (b *MongoBackend) EnsureIndexes(ctx context.Context, collection string, unique []string) error {
	col, err := b.collection(ctx, collection)
	if err != nil {
		return err
	}

	models := make([]mongo.IndexModel, 0, len(unique))
	for _, f := range unique {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: f, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	}

	if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating %s indexes: %w", collection, err)
	}

	return nil
}

// Close disconnects the client if a connection was ever made.
func (b *MongoBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}

	err := b.client.Disconnect(ctx)
	b.client, b.db = nil, nil

	if err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("disconnecting from mongodb: %w", err)
	}

	return nil
}
