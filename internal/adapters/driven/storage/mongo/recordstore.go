// Package mongo provides a MongoDB implementation of driven.RecordStore.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
)

// Defaults used when the URI does not name a database or collection.
const (
	DefaultDatabase   = "kbsync"
	DefaultCollection = "records"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore keeps records in one MongoDB collection, keyed by "id".
type RecordStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Open connects to the MongoDB deployment at uri.
//
// The database is taken from the URI path and the collection from a
// "collection" query parameter, which is removed before the URI reaches
// the driver: mongodb://host:27017/kb?collection=normalised.
func Open(ctx context.Context, uri string) (*RecordStore, error) {
	clean, dbName, collName, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(clean).
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to MongoDB: %w", domain.ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping MongoDB: %w", domain.ErrStoreUnavailable, err)
	}

	coll := client.Database(dbName).Collection(collName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: domain.FieldID, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create id index: %w", err)
	}

	return &RecordStore{client: client, collection: coll}, nil
}

// ParseURI splits a store URI into the driver URI, database and collection.
func ParseURI(uri string) (clean, database, collection string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", fmt.Errorf("%w: mongo uri: %w", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", "", "", fmt.Errorf("%w: mongo uri scheme %q", domain.ErrInvalidInput, u.Scheme)
	}

	q := u.Query()
	collection = q.Get("collection")
	q.Del("collection")
	u.RawQuery = q.Encode()

	database = strings.Trim(u.Path, "/")
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return u.String(), database, collection, nil
}

// Count returns the number of documents in the collection.
func (s *RecordStore) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// QueryAll returns every document in the collection ordered by id.
func (s *RecordStore) QueryAll(ctx context.Context) ([]domain.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: domain.FieldID, Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, toRecord(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Upsert replaces the document with the same id, inserting it if absent.
func (s *RecordStore) Upsert(ctx context.Context, rec domain.Record) error {
	id := rec.ID()
	if id == "" {
		return fmt.Errorf("%w: record has no id", domain.ErrInvalidInput)
	}

	doc := bson.M{}
	for k, v := range rec {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	doc[domain.FieldID] = id

	_, err := s.collection.ReplaceOne(ctx,
		bson.M{domain.FieldID: id},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Get retrieves a document by id.
func (s *RecordStore) Get(ctx context.Context, id string) (domain.Record, error) {
	var doc bson.M
	err := s.collection.FindOne(ctx, bson.M{domain.FieldID: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", id, err)
	}
	return toRecord(doc), nil
}

// Close disconnects the client.
func (s *RecordStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// toRecord converts a decoded document to a JSON-like Record, dropping the
// server-assigned _id.
func toRecord(doc bson.M) domain.Record {
	rec := make(domain.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		rec[k] = plain(v)
	}
	return rec
}

// plain rewrites driver container and numeric types into the
// map[string]any / []any / float64 shapes the rest of the pipeline expects.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.M:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = plain(x)
		}
		return m
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.A:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = plain(x)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
