// Package qdrant provides the Qdrant-backed implementation of
// [vector.Store] over the official gRPC client.
//
// Collections are created with cosine distance so search scores are cosine
// similarities and the contract's threshold semantics hold without
// conversion. Qdrant point identifiers must be unsigned integers or UUIDs;
// this adapter requires UUID strings, which [vector.PointID] produces.
package qdrant

import (
	"context"

	qdrantcli "github.com/qdrant/go-client/qdrant"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// Compile-time interface check.
var _ vector.Store = (*Store)(nil)

// Config holds the connection settings for a Qdrant deployment.
type Config struct {
	// Host is the server hostname, e.g. "localhost" or
	// "xyz.eu-central.aws.cloud.qdrant.io".
	Host string

	// Port is the gRPC port. Zero uses Qdrant's default 6334.
	Port int

	// APIKey authenticates against a secured deployment. Empty disables
	// authentication.
	APIKey string

	// UseTLS enables transport security. Required for cloud deployments.
	UseTLS bool
}

// Store implements [vector.Store] on a Qdrant server. It holds a single
// gRPC client and is safe for concurrent use.
type Store struct {
	client *qdrantcli.Client
}

// NewStore connects to the deployment described by cfg and verifies
// connectivity before returning.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, errs.New(errs.KindConfiguration, "qdrant store", "host must not be empty")
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrantcli.NewClient(&qdrantcli.Config{
		Host:   cfg.Host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, errs.Wrapf(errs.KindConfiguration, "qdrant store", err, "create client")
	}
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, errs.Wrapf(errs.KindConfiguration, "qdrant store", err, "health check")
	}
	return &Store{client: client}, nil
}

// Close shuts down the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity to the server.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return errs.Wrap(errs.KindQueryExecution, "qdrant store: ping", err)
}

// CreateCollection implements [vector.Store]. The collection compares
// vectors by cosine similarity.
func (s *Store) CreateCollection(ctx context.Context, name string, dims int) error {
	if dims < 1 {
		return errs.Newf(errs.KindInvalidInput, "qdrant store: create collection", "dimension %d is not positive", dims)
	}
	err := s.client.CreateCollection(ctx, &qdrantcli.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrantcli.NewVectorsConfig(&qdrantcli.VectorParams{
			Size:     uint64(dims),
			Distance: qdrantcli.Distance_Cosine,
		}),
	})
	if err != nil {
		return errs.Wrapf(errs.KindVectorWrite, "qdrant store", err, "create collection %q", name)
	}
	return nil
}

// CollectionExists implements [vector.Store].
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, errs.Wrapf(errs.KindQueryExecution, "qdrant store", err, "collection exists %q", name)
	}
	return ok, nil
}

// DeleteCollection drops the named collection and every point in it.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return errs.Wrapf(errs.KindVectorWrite, "qdrant store", err, "delete collection %q", name)
	}
	return nil
}
