// Package engine assembles the graphseer pipeline into one facade.
//
// An [Engine] holds the dual-store coordinator, the context retriever, the
// query generator, the executor, and the response narrator, and publishes
// every operation a host needs: the write path (Ingest, IngestBatch, Sync,
// Remove), the retrieval surface (RetrieveContext, SearchSimilar, Schema,
// ExampleEntities, EntityMetadata), the query surface (GenerateQuery,
// ValidateQuery, SanitizeQuery, Execute, ExecuteCount, ExecutePaginated,
// ExplainQuery, TestQuery, GenerateResponse), and the end-to-end Answer.
//
// The engine is a plain value constructed once per process; it keeps no
// state between requests beyond the caches its collaborators maintain, so
// one instance serves concurrent callers. Resilience wrapping (breakers,
// retries) belongs to whoever constructs the collaborators; the engine
// takes the stores it is given.
package engine

import (
	"context"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/graph"
	"github.com/MrWong99/graphseer/pkg/ingest"
	"github.com/MrWong99/graphseer/pkg/provider/embeddings"
	"github.com/MrWong99/graphseer/pkg/provider/llm"
	"github.com/MrWong99/graphseer/pkg/querygen"
	"github.com/MrWong99/graphseer/pkg/respond"
	"github.com/MrWong99/graphseer/pkg/retrieve"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// Config names the collaborators an [Engine] runs on. Graph, Vector,
// Embedder, and LLM are required. Configs feeds entity configurations to
// retrieval and may be nil when no entities are configured; Resolver feeds
// the write path and may be nil when the host never ingests.
type Config struct {
	Graph    graph.Graph
	Vector   vector.Store
	Embedder embeddings.Provider
	LLM      llm.Provider
	Configs  retrieve.ConfigProvider
	Resolver ingest.ConfigResolver
}

type options struct {
	metrics    *observe.Metrics
	retrieve   []retrieve.Option
	generate   []querygen.Option
	execute    []execute.Option
	respond    []respond.Option
	remember   bool
	memoryColl string
}

// Option customises an [Engine] beyond its collaborators.
type Option func(*options)

// WithMetrics replaces the default metrics instance. Tests pass one built
// on a private meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRetrieveDefaults sets retrieval options applied to every operation
// that assembles context. Per-call options still override them.
func WithRetrieveDefaults(opts ...retrieve.Option) Option {
	return func(o *options) { o.retrieve = append(o.retrieve, opts...) }
}

// WithGenerateDefaults sets query-generation options applied to every
// generation. Per-call options still override them.
func WithGenerateDefaults(opts ...querygen.Option) Option {
	return func(o *options) { o.generate = append(o.generate, opts...) }
}

// WithExecuteDefaults sets execution options applied to every query run.
// Per-call options still override them.
func WithExecuteDefaults(opts ...execute.Option) Option {
	return func(o *options) { o.execute = append(o.execute, opts...) }
}

// WithRespondDefaults sets narration options applied to every response.
// Per-call options still override them.
func WithRespondDefaults(opts ...respond.Option) Option {
	return func(o *options) { o.respond = append(o.respond, opts...) }
}

// WithMemory turns on the similar-query writeback: after a fully successful
// [Engine.Answer] the question/query pair is upserted into collection, the
// same collection the retriever searches, so every answered question
// improves later retrieval. An empty collection keeps the retriever's
// default. Writeback failures are logged and never fail the answer.
func WithMemory(collection string) Option {
	return func(o *options) {
		o.remember = true
		if collection != "" {
			o.memoryColl = collection
		}
	}
}

// Engine is the assembled pipeline. Construct with [New]; the zero value is
// not usable.
type Engine struct {
	coord     *ingest.Coordinator
	retriever *retrieve.Retriever
	generator *querygen.Generator
	executor  *execute.Executor
	responder *respond.Generator

	vectors  vector.Store
	resolver ingest.ConfigResolver
	metrics  *observe.Metrics

	remember   bool
	memoryColl string
}

// New wires an Engine from its collaborators. It fails fast on a missing
// required collaborator so misconfiguration surfaces at startup, not on the
// first request.
func New(cfg Config, opts ...Option) (*Engine, error) {
	const op = "engine"
	switch {
	case cfg.Graph == nil:
		return nil, errs.New(errs.KindConfiguration, op, "graph store is required")
	case cfg.Vector == nil:
		return nil, errs.New(errs.KindConfiguration, op, "vector store is required")
	case cfg.Embedder == nil:
		return nil, errs.New(errs.KindConfiguration, op, "embedding provider is required")
	case cfg.LLM == nil:
		return nil, errs.New(errs.KindConfiguration, op, "llm provider is required")
	}

	o := options{memoryColl: retrieve.DefaultCollection}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}

	configs := cfg.Configs
	if configs == nil {
		configs = retrieve.StaticConfigs{}
	}

	return &Engine{
		coord:      ingest.New(cfg.Graph, cfg.Vector, cfg.Embedder),
		retriever:  retrieve.New(cfg.Graph, cfg.Vector, cfg.Embedder, configs, o.retrieve...),
		generator:  querygen.New(cfg.LLM, o.generate...),
		executor:   execute.New(cfg.Graph, o.execute...),
		responder:  respond.New(cfg.LLM, o.respond...),
		vectors:    cfg.Vector,
		resolver:   cfg.Resolver,
		metrics:    o.metrics,
		remember:   o.remember,
		memoryColl: o.memoryColl,
	}, nil
}

// status is the metric attribute value for an operation outcome.
func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// config resolves label through the wired resolver for a write operation.
func (e *Engine) config(ctx context.Context, op, label string) (*entity.Config, error) {
	if e.resolver == nil {
		return nil, errs.New(errs.KindConfiguration, op, "no entity configuration resolver wired")
	}
	cfg, err := e.resolver(ctx, label)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errs.Newf(errs.KindConfiguration, op, "no configuration for entity %s", entity.Redact(label))
	}
	return cfg, nil
}
