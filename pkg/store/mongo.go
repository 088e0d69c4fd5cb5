package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	perrors "github.com/matzehuels/postroc/pkg/errors"
)

// Defaults for the MongoDB source.
const (
	DefaultMongoDatabase   = "postroc"
	DefaultMongoCollection = "snapshots"
)

// MongoSource stores snapshots as documents keyed by snapshot name.
type MongoSource struct {
	coll   *mongo.Collection
	name   string
	client *mongo.Client
}

// NewMongoSource connects to uri and returns a source for the snapshot
// called name. Empty database or collection names use the defaults.
func NewMongoSource(ctx context.Context, uri, database, collection, name string) (*MongoSource, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeNetwork, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, perrors.Wrap(perrors.ErrCodeNetwork, err, "ping mongodb")
	}
	s := NewMongoSourceFromCollection(client.Database(database).Collection(collection), name)
	s.client = client
	return s, nil
}

// NewMongoSourceFromCollection wraps an existing collection. Close leaves
// the client connected.
func NewMongoSourceFromCollection(coll *mongo.Collection, name string) *MongoSource {
	return &MongoSource{coll: coll, name: name}
}

// Load fetches the snapshot document. A missing document is NOT_FOUND.
func (m *MongoSource) Load(ctx context.Context) (*Snapshot, error) {
	var s Snapshot
	err := m.coll.FindOne(ctx, bson.M{"name": m.name}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, perrors.New(perrors.ErrCodeNotFound, "snapshot %q not found", m.name)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", m.name, err)
	}
	return &s, nil
}

// Save upserts the snapshot under the source's name.
func (m *MongoSource) Save(ctx context.Context, s *Snapshot) error {
	c := *s
	c.Name = m.name
	if c.Version == "" {
		c.Version = Version
	}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"name": m.name}, &c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", m.name, err)
	}
	return nil
}

// Close disconnects the client when the source created it.
func (m *MongoSource) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

var _ Source = (*MongoSource)(nil)
