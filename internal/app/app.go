// Package app wires all graphseer subsystems into a running application.
//
// The App struct owns the full lifecycle: New connects the stores, builds the
// discovery layer and the engine, Run starts the background surfaces, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithGraphStore, WithVectorStore, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/MrWong99/graphseer/internal/config"
	"github.com/MrWong99/graphseer/internal/resilience"
	"github.com/MrWong99/graphseer/pkg/discover"
	"github.com/MrWong99/graphseer/pkg/engine"
	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/graph"
	"github.com/MrWong99/graphseer/pkg/graph/neo4j"
	"github.com/MrWong99/graphseer/pkg/ingest"
	"github.com/MrWong99/graphseer/pkg/provider/embeddings"
	"github.com/MrWong99/graphseer/pkg/provider/llm"
	"github.com/MrWong99/graphseer/pkg/querygen"
	"github.com/MrWong99/graphseer/pkg/respond"
	"github.com/MrWong99/graphseer/pkg/vector"
	"github.com/MrWong99/graphseer/pkg/vector/pgvector"
	"github.com/MrWong99/graphseer/pkg/vector/qdrant"
)

// Providers holds one interface value per model provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and orchestrates the graphseer pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	graph         graph.Graph
	vectors       vector.Store
	graphBreaker  *resilience.Breaker
	vectorBreaker *resilience.Breaker
	llm           llm.Provider
	embedder      embeddings.Provider
	schema        discover.SchemaIntrospector
	discoverer    *discover.Discoverer
	engine        *engine.Engine
	hook          *ingest.Hook

	// listener is the HTTP surface (health, metrics, optional MCP).
	listener *listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGraphStore injects a graph store instead of connecting to Neo4j.
func WithGraphStore(g graph.Graph) Option {
	return func(a *App) { a.graph = g }
}

// WithVectorStore injects a vector store instead of connecting to the
// configured driver.
func WithVectorStore(v vector.Store) Option {
	return func(a *App) { a.vectors = v }
}

// WithIntrospector injects a storage introspector instead of building one
// from the Postgres pool.
func WithIntrospector(si discover.SchemaIntrospector) Option {
	return func(a *App) { a.schema = si }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: store connections, entity
// descriptor loading, engine assembly, the auto-sync pump, and the HTTP
// listener. Nothing serves traffic until Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Stores ────────────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Provider breakers ─────────────────────────────────────────────
	a.initProviders()

	// ── 3. Entity discovery ──────────────────────────────────────────────
	if err := a.initDiscovery(ctx); err != nil {
		return nil, fmt.Errorf("app: init discovery: %w", err)
	}

	// ── 4. Engine ────────────────────────────────────────────────────────
	if err := a.initEngine(); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}

	// ── 5. Auto-sync pump ────────────────────────────────────────────────
	a.initSync()

	// ── 6. HTTP listener ─────────────────────────────────────────────────
	if err := a.initListener(); err != nil {
		return nil, fmt.Errorf("app: init listener: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStores connects the graph and vector stores (unless injected) and wraps
// both in their circuit-breaker guards. Every later collaborator sees only
// the guarded stores.
func (a *App) initStores(ctx context.Context) error {
	if a.graph == nil {
		store, err := neo4j.NewStore(ctx, neo4j.Config{
			URI:      a.cfg.Stores.Graph.URI,
			Username: a.cfg.Stores.Graph.Username,
			Password: a.cfg.Stores.Graph.Password,
			Database: a.cfg.Stores.Graph.Database,
		})
		if err != nil {
			return err
		}
		a.graph = store
		a.closers = append(a.closers, func() error {
			return store.Close(context.Background())
		})
		slog.Info("graph store connected", "uri", a.cfg.Stores.Graph.URI)
	}
	graphGuard := resilience.NewGraphGuard(a.graph, a.breakerConfig("neo4j"), a.storePolicy())
	a.graph = graphGuard
	a.graphBreaker = graphGuard.Breaker()

	vectorName := string(a.cfg.Stores.Vector.Driver)
	if a.vectors == nil {
		switch a.cfg.Stores.Vector.Driver {
		case config.VectorPgvector:
			store, err := pgvector.NewStore(ctx, a.cfg.Stores.Vector.DSN, a.cfg.Stores.Vector.Dimensions)
			if err != nil {
				return err
			}
			a.vectors = store
			a.closers = append(a.closers, func() error {
				store.Close()
				return nil
			})
		default:
			store, err := qdrant.NewStore(ctx, qdrant.Config{
				Host:   a.cfg.Stores.Vector.Host,
				Port:   a.cfg.Stores.Vector.Port,
				APIKey: a.cfg.Stores.Vector.APIKey,
				UseTLS: a.cfg.Stores.Vector.UseTLS,
			})
			if err != nil {
				return err
			}
			a.vectors = store
			a.closers = append(a.closers, store.Close)
			vectorName = string(config.VectorQdrant)
		}
		slog.Info("vector store connected", "driver", vectorName)
	}
	if vectorName == "" {
		vectorName = "vector"
	}
	vectorGuard := resilience.NewVectorGuard(a.vectors, a.breakerConfig(vectorName), a.storePolicy())
	a.vectors = vectorGuard
	a.vectorBreaker = vectorGuard.Breaker()

	return nil
}

// initProviders puts each configured model provider behind its own circuit
// breaker so a dead remote fails fast instead of stalling every request.
// Missing providers stay nil; the engine rejects combinations it cannot run
// without.
func (a *App) initProviders() {
	fallbackCfg := func(name string) resilience.FallbackConfig {
		return resilience.FallbackConfig{Breaker: a.breakerConfig(name)}
	}

	if a.providers.LLM != nil {
		name := a.cfg.Providers.LLM.Name
		if name == "" {
			name = "llm"
		}
		a.llm = resilience.NewLLMFallback(a.providers.LLM, name, fallbackCfg(name))
	}
	if a.providers.Embeddings != nil {
		name := a.cfg.Providers.Embeddings.Name
		if name == "" {
			name = "embeddings"
		}
		a.embedder = resilience.NewEmbedFallback(a.providers.Embeddings, name, fallbackCfg(name))
	}
}

// initDiscovery builds the descriptor registry (including any YAML descriptor
// file), the optional Postgres-backed tiers, and the discoverer itself.
func (a *App) initDiscovery(ctx context.Context) error {
	reg := discover.NewRegistry()
	disc := a.cfg.AutoDiscovery

	if disc.DescriptorsFile != "" {
		file, err := discover.LoadFile(disc.DescriptorsFile)
		if err != nil {
			return err
		}
		n, err := discover.ImportFile(reg, file)
		if err != nil {
			return err
		}
		slog.Info("imported entity descriptors", "path", disc.DescriptorsFile, "count", n)
	}

	opts := []discover.Option{
		discover.WithCache(discover.NewCache(disc.CacheTTL())),
	}
	if disc.MaxDepth > 0 {
		opts = append(opts, discover.WithMaxDepth(disc.MaxDepth))
	}
	if len(disc.ExcludeProperties) > 0 {
		opts = append(opts, discover.WithExclusions(disc.ExcludeProperties...))
	}

	if dsn := a.cfg.Stores.Postgres.DSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("ping postgres: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})

		table := discover.NewConfigTable(pool)
		if err := table.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, discover.WithConfigSource(table))
		if a.schema == nil {
			a.schema = discover.NewPGIntrospector(pool)
		}
		slog.Info("postgres discovery tiers enabled")
	}

	a.discoverer = discover.New(a.schema, reg, opts...)
	return nil
}

// initEngine assembles the query engine over the guarded stores and
// providers, with pipeline defaults mapped from the configuration sections.
func (a *App) initEngine() error {
	engOpts := []engine.Option{
		engine.WithGenerateDefaults(generationOptions(a.cfg.QueryGeneration)...),
		engine.WithExecuteDefaults(executionOptions(a.cfg.QueryExecution)...),
		engine.WithRespondDefaults(responseOptions(a.cfg.ResponseGeneration)...),
	}
	if a.cfg.QueryGeneration.Remember {
		engOpts = append(engOpts, engine.WithMemory(a.cfg.QueryGeneration.MemoryCollection))
	}

	eng, err := engine.New(engine.Config{
		Graph:    a.graph,
		Vector:   a.vectors,
		Embedder: a.embedder,
		LLM:      a.llm,
		Configs:  discoveredConfigs{a.discoverer},
		Resolver: a.discoverer.DiscoverByName,
	}, engOpts...)
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

// initSync builds the auto-sync pump. Events are accepted from New on; the
// background workers start in Run.
func (a *App) initSync() {
	coord := ingest.New(a.graph, a.vectors, a.embedder)

	hookOpts := []ingest.HookOption{
		ingest.WithPolicy(a.cfg.AutoSync.Policy()),
		ingest.WithMissingIsCreate(a.cfg.AutoSync.MissingIsCreate),
	}
	if a.cfg.AutoSync.QueueSize > 0 {
		hookOpts = append(hookOpts, ingest.WithQueue(a.cfg.AutoSync.QueueSize, a.cfg.AutoSync.Workers))
	}

	a.hook = ingest.NewHook(coord, a.discoverer.DiscoverByName, hookOpts...)
	a.closers = append(a.closers, func() error {
		a.hook.Stop()
		return nil
	})
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Engine returns the assembled query engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// SyncHook returns the auto-sync pump host applications feed entity
// lifecycle events into.
func (a *App) SyncHook() *ingest.Hook {
	return a.hook
}

// Discoverer returns the entity discovery layer.
func (a *App) Discoverer() *discover.Discoverer {
	return a.discoverer
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the background surfaces and blocks until ctx is cancelled.
//
// The auto-sync workers and the HTTP listener (health, metrics, and the
// optional MCP endpoint) run until ctx is done; Run returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	a.hook.Start(ctx)

	if a.listener != nil {
		go a.listener.serve()
	}

	slog.Info("app running",
		"listen_addr", a.cfg.Server.ListenAddr,
		"mcp", a.cfg.MCP.Enabled,
		"entities", a.discoverer.Registry().Len(),
	)
	<-ctx.Done()
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Stop accepting HTTP traffic first so in-flight requests drain.
		if a.listener != nil {
			if err := a.listener.shutdown(ctx); err != nil {
				slog.Warn("http listener shutdown error", "err", err)
			}
		}

		// Run closers in order.
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// discoveredConfigs adapts the discoverer to the retriever's configuration
// source. Labels are sorted so schema summaries keep a stable order.
type discoveredConfigs struct {
	d *discover.Discoverer
}

func (s discoveredConfigs) Configs(ctx context.Context) ([]*entity.Config, error) {
	byName, err := s.d.DiscoverAll(ctx)
	if err != nil {
		return nil, err
	}
	names := lo.Keys(byName)
	sort.Strings(names)
	configs := make([]*entity.Config, 0, len(names))
	for _, name := range names {
		configs = append(configs, byName[name])
	}
	return configs, nil
}

// breakerConfig builds the circuit-breaker settings for one dependency from
// the shared resilience section.
func (a *App) breakerConfig(name string) resilience.BreakerConfig {
	cfg := resilience.BreakerConfig{
		Name:            name,
		RecoveryTimeout: a.cfg.Resilience.Breaker.RecoveryTimeout(),
	}
	if n := a.cfg.Resilience.Breaker.FailureThreshold; n > 0 {
		cfg.FailureThreshold = uint32(n)
	}
	return cfg
}

// storePolicy returns the retry schedule for graph and vector store calls.
func (a *App) storePolicy() resilience.RetryPolicy {
	p := resilience.StorePolicy()
	if n := a.cfg.Resilience.Retry.StoreAttempts; n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// generationOptions maps the query_generation section onto generator options.
func generationOptions(qc config.QueryGenerationConfig) []querygen.Option {
	opts := []querygen.Option{
		querygen.WithAllowWrite(qc.AllowWrite),
		querygen.WithExplanation(qc.Explain),
	}
	if qc.MaxRetries > 0 {
		opts = append(opts, querygen.WithMaxRetries(qc.MaxRetries))
	}
	if qc.Temperature > 0 {
		opts = append(opts, querygen.WithTemperature(qc.Temperature))
	}
	if qc.MaxComplexity > 0 {
		opts = append(opts, querygen.WithMaxComplexity(qc.MaxComplexity))
	}
	if qc.RowLimit > 0 {
		opts = append(opts, querygen.WithRowLimit(qc.RowLimit))
	}
	return opts
}

// executionOptions maps the query_execution section onto executor options.
func executionOptions(qc config.QueryExecutionConfig) []execute.Option {
	opts := []execute.Option{
		execute.WithAllowWrite(!qc.ReadOnly),
		execute.WithStats(qc.IncludeStats),
	}
	if qc.TimeoutSeconds > 0 {
		opts = append(opts, execute.WithTimeout(qc.Timeout()))
	}
	if qc.Limit > 0 {
		opts = append(opts, execute.WithLimit(qc.Limit))
	}
	if qc.Format != "" {
		opts = append(opts, execute.WithFormat(qc.Format))
	}
	return opts
}

// responseOptions maps the response_generation section onto responder options.
func responseOptions(rc config.ResponseGenerationConfig) []respond.Option {
	opts := []respond.Option{
		respond.WithDetails(rc.IncludeDetails),
	}
	if rc.Format != "" {
		opts = append(opts, respond.WithFormat(rc.Format))
	}
	if rc.Style != "" {
		opts = append(opts, respond.WithStyle(rc.Style))
	}
	if rc.SampleRows > 0 {
		opts = append(opts, respond.WithSampleRows(rc.SampleRows))
	}
	return opts
}
