// Package mcpserver exposes engine operations as MCP tools.
//
// A [Server] wraps an [Engine] and publishes four tools over the official
// MCP Go SDK (github.com/modelcontextprotocol/go-sdk):
//   - "ask"           — answer a natural-language question end to end.
//   - "run_query"     — execute a raw Cypher query with guardrails.
//   - "get_schema"    — return labels, relationship types, and properties.
//   - "ingest_entity" — write one entity through the dual-store pipeline.
//
// The server speaks both transports the SDK offers: mount [Server.Handler]
// on an HTTP mux for streamable HTTP, or call [Server.ServeStdio] to own
// the process's stdin/stdout.
//
// Typical usage:
//
//	srv, err := mcpserver.New(eng)
//	if err != nil { ... }
//	mux.Handle("/mcp", srv.Handler())
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/graphseer/pkg/engine"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/ingest"
	"github.com/MrWong99/graphseer/pkg/retrieve"
)

// defaultToolTimeout bounds a single tool execution. The ask pipeline makes
// two LLM round trips, so the bound is generous; override with
// [WithToolTimeout] when the deployment needs tighter limits.
const defaultToolTimeout = 120 * time.Second

// Engine is the subset of engine operations the tool surface calls.
type Engine interface {
	Answer(ctx context.Context, question string, opts ...engine.AnswerOption) (*engine.Answer, error)
	Execute(ctx context.Context, query string, params map[string]any, opts ...execute.Option) (*execute.ExecutionResult, error)
	Schema(ctx context.Context) (*retrieve.SchemaSummary, error)
	Ingest(ctx context.Context, label string, ent ingest.Entity) (*ingest.Report, error)
}

// Compile-time check: the concrete engine must satisfy Engine.
var _ Engine = (*engine.Engine)(nil)

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithVersion sets the version string advertised during the MCP handshake.
// The default is "dev".
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithToolTimeout sets the deadline applied to each individual tool
// execution. The default is 2 minutes, sized for the two LLM round trips
// the ask pipeline makes.
func WithToolTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.toolTimeout = d
		}
	}
}

// Server publishes engine operations as MCP tools. It is safe for
// concurrent use; the underlying SDK server multiplexes any number of
// client sessions.
//
// The zero value is NOT usable; create instances with [New].
type Server struct {
	engine      Engine
	mcpServer   *mcp.Server
	version     string
	toolTimeout time.Duration
}

// New creates a Server exposing eng's operations as MCP tools.
//
// Returns an error if eng is nil.
func New(eng Engine, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("mcp server: engine must not be nil")
	}

	s := &Server{
		engine:      eng,
		version:     "dev",
		toolTimeout: defaultToolTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{Name: "graphseer", Version: s.version},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Handler returns an [http.Handler] serving the MCP streamable-HTTP
// transport. Mount it at the configured MCP path; the handler manages
// session negotiation internally.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// ServeStdio runs the server over the process's stdin/stdout until the
// client disconnects or ctx is cancelled. Intended for the one-process
// deployment where an MCP host spawns graphseer directly.
func (s *Server) ServeStdio(ctx context.Context) error {
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: stdio session ended: %w", err)
	}
	return nil
}

// registerTools declares the four engine tools on the SDK server. Input
// and output schemas are inferred from the handler argument types.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a natural-language question from the knowledge graph. Runs the full pipeline: context retrieval, query generation, execution, and narration. Returns the narrated answer plus the generated query, its confidence, and per-stage timings.",
	}, s.handleAsk)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "run_query",
		Description: "Execute a Cypher query against the graph store and return the shaped result. Queries are sanitized and row-capped; mutations are rejected unless the server is configured to allow writes.",
	}, s.handleRunQuery)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_schema",
		Description: "Return the live graph schema: node labels, relationship types, and property names currently present in the store. Call this before composing queries by hand.",
	}, s.handleGetSchema)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ingest_entity",
		Description: "Write one entity through the dual-store pipeline: upsert the node and its relationships in the graph store and its embedding in the vector store. Returns per-store outcomes and any degradation warnings.",
	}, s.handleIngestEntity)
}
