// Package store loads and saves snapshots: a named set of node documents
// plus the environment their fetch fields use.
//
// Two sources are provided. [FileSource] keeps one snapshot per JSON or
// YAML file. [MongoSource] keeps snapshots as documents in a MongoDB
// collection, keyed by name. [Open] picks one from a reference string:
//
//	src, err := store.Open(ctx, "mongo:checkout", store.MongoOptions{URI: uri})
//	src, err := store.Open(ctx, "testdata/checkout.yaml", store.MongoOptions{})
package store
