package store

import (
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
)

// Version is written into every saved snapshot.
const Version = "1.0.0"

// Snapshot is a persisted set of nodes together with the environment their
// fetch fields run against.
type Snapshot struct {
	Version     string            `json:"version" yaml:"version" bson:"version"`
	Name        string            `json:"name" yaml:"name" bson:"name"`
	Environment *env.Config       `json:"environment,omitempty" yaml:"environment,omitempty" bson:"environment,omitempty"`
	Nodes       []custom.Document `json:"nodes" yaml:"nodes" bson:"nodes"`
}

// Source loads and saves snapshots.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
}

// NodeList converts the stored documents into validated nodes.
func (s *Snapshot) NodeList() ([]custom.Node, error) {
	return custom.Nodes(s.Nodes)
}

// SetNodes replaces the stored documents with nodes.
func (s *Snapshot) SetNodes(nodes []custom.Node) {
	s.Nodes = make([]custom.Document, len(nodes))
	for i, n := range nodes {
		s.Nodes[i] = custom.NewDocument(n)
	}
}

// Redacted returns a copy with credentials blanked, for sharing: auth
// secrets and the values of credential-like headers.
func (s *Snapshot) Redacted() *Snapshot {
	c := *s
	if s.Environment != nil {
		e := *s.Environment
		e.Auth.Token = ""
		e.Auth.APIKeyValue = ""
		e.Auth.Password = ""
		e.DefaultHeaders = slices.Clone(e.DefaultHeaders)
		for i, h := range e.DefaultHeaders {
			if sensitive(h.Key) {
				e.DefaultHeaders[i].Value = ""
			}
		}
		c.Environment = &e
	}
	return &c
}

func sensitive(header string) bool {
	h := strings.ToLower(header)
	return h == "authorization" || strings.Contains(h, "token") || strings.Contains(h, "api-key")
}

// MongoOptions locates snapshots stored in MongoDB.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// mongoPrefix marks a snapshot reference as a MongoDB snapshot name.
const mongoPrefix = "mongo:"

// Open returns the source named by ref: "mongo:<name>" selects the MongoDB
// snapshot <name>, anything else is a file path.
func Open(ctx context.Context, ref string, m MongoOptions) (Source, error) {
	name, ok := strings.CutPrefix(ref, mongoPrefix)
	if !ok {
		return NewFileSource(ref), nil
	}
	if m.URI == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "snapshot %q needs a mongodb uri", ref)
	}
	src, err := NewMongoSource(ctx, m.URI, m.Database, m.Collection, name)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Close releases the connection held by src, if any.
func Close(ctx context.Context, src Source) error {
	if c, ok := src.(interface{ Close(context.Context) error }); ok {
		return c.Close(ctx)
	}
	return nil
}
