// Package neo4j provides the Neo4j-backed implementation of the graph
// interfaces: [graph.Store] for ingest writes with snapshot/restore support,
// [graph.Explorer] for schema introspection, and [graph.Querier] for
// generated read queries.
//
// Labels and relationship types cannot be parameterised in Cypher, so every
// identifier is validated before it is interpolated into query text. Values
// always travel as query parameters.
package neo4j

import (
	"context"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
)

// Compile-time interface check.
var _ graph.Graph = (*Store)(nil)

// Config holds the connection settings for a Neo4j deployment.
type Config struct {
	// URI is the connection URI, e.g. "neo4j://localhost:7687" or
	// "neo4j+s://xxxx.databases.neo4j.io".
	URI string

	// Username and Password authenticate against the server. Leave both empty
	// for a deployment with authentication disabled.
	Username string
	Password string

	// Database selects a named database. Empty uses the server default.
	Database string
}

// Store implements [graph.Graph] on a Neo4j server. It holds a single
// connection-pooled driver and is safe for concurrent use.
type Store struct {
	driver   neo4jdrv.DriverWithContext
	database string
}

// NewStore creates a driver for the deployment described by cfg and verifies
// connectivity before returning.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errs.New(errs.KindConfiguration, "neo4j store", "uri must not be empty")
	}
	auth := neo4jdrv.NoAuth()
	if cfg.Username != "" {
		auth = neo4jdrv.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4jdrv.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, errs.Wrapf(errs.KindConfiguration, "neo4j store", err, "create driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errs.Wrapf(errs.KindConfiguration, "neo4j store", err, "verify connectivity")
	}
	return &Store{driver: driver, database: cfg.Database}, nil
}

// Close shuts down the driver and releases its connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Ping verifies connectivity to the server.
func (s *Store) Ping(ctx context.Context) error {
	return errs.Wrap(errs.KindQueryExecution, "neo4j store: ping", s.driver.VerifyConnectivity(ctx))
}

// session opens a session bound to the configured database.
func (s *Store) session(ctx context.Context, mode neo4jdrv.AccessMode) neo4jdrv.SessionWithContext {
	return s.driver.NewSession(ctx, neo4jdrv.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}
