// Package retrieve assembles the context bundle that grounds query
// generation.
//
// A bundle pulls from three independent sources: past question/query pairs
// found by similarity search, the live graph schema with example rows per
// label, and the entity configurations whose terms appear in the question.
// The sources are fetched concurrently, and every source failure is absorbed
// into [Bundle.Errors] so that one unavailable collaborator degrades the
// prompt instead of failing the request.
//
// Every label, relationship type and property name entering a bundle has
// passed identifier validation; values that fail are dropped and the drop is
// recorded. Downstream prompt and query builders rely on this.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
	"github.com/MrWong99/graphseer/pkg/provider/embeddings"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// Defaults applied by [New] unless overridden with options.
const (
	// DefaultCollection is the vector collection holding past
	// question/query records.
	DefaultCollection = "graphseer_queries"

	// DefaultTopK caps how many similar records a bundle carries.
	DefaultTopK = 5

	// DefaultThreshold drops similar records scoring below it.
	DefaultThreshold = 0.7

	// DefaultExampleLimit caps the example rows fetched per label.
	DefaultExampleLimit = 3
)

// Payload keys of a similar-query record. The engine writes records with
// these keys after a successful answer; [Retriever.Retrieve] reads them
// back.
const (
	PayloadQuestion = "question"
	PayloadQuery    = "query"
)

// ConfigProvider yields every known entity configuration. The discovery
// layer implements it; [StaticConfigs] covers deployments with a fixed set.
type ConfigProvider interface {
	Configs(ctx context.Context) ([]*entity.Config, error)
}

// StaticConfigs is a [ConfigProvider] serving a fixed slice.
type StaticConfigs []*entity.Config

// Configs implements [ConfigProvider].
func (s StaticConfigs) Configs(context.Context) ([]*entity.Config, error) {
	return s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// settings carries the tunables shared by [New] and per-call options.
type settings struct {
	collection   string
	topK         int
	threshold    float64
	exampleLimit int
}

// Option adjusts retrieval behaviour. Options passed to [New] become the
// retriever's defaults; options passed to an individual call override them
// for that call only.
type Option func(*settings)

// WithSimilarCollection names the vector collection searched for past
// question/query records. Empty names are ignored.
func WithSimilarCollection(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithTopK caps how many similar records are returned. Values below one are
// ignored.
func WithTopK(k int) Option {
	return func(s *settings) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithThreshold drops similar records scoring below t. Zero keeps every
// match; negative values are ignored.
func WithThreshold(t float64) Option {
	return func(s *settings) {
		if t >= 0 {
			s.threshold = t
		}
	}
}

// WithExampleLimit caps the example rows fetched per label. Values below one
// are ignored.
func WithExampleLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.exampleLimit = n
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Retriever
// ─────────────────────────────────────────────────────────────────────────────

// Retriever assembles context bundles from the three retrieval sources.
// All collaborators must be non-nil. Safe for concurrent use.
type Retriever struct {
	graph    graph.Explorer
	vectors  vector.Store
	embedder embeddings.Provider
	configs  ConfigProvider
	defaults settings
}

// New creates a [Retriever] with the default tunables. Apply [Option] values
// to override them.
func New(g graph.Explorer, v vector.Store, e embeddings.Provider, c ConfigProvider, opts ...Option) *Retriever {
	r := &Retriever{
		graph:    g,
		vectors:  v,
		embedder: e,
		configs:  c,
		defaults: settings{
			collection:   DefaultCollection,
			topK:         DefaultTopK,
			threshold:    DefaultThreshold,
			exampleLimit: DefaultExampleLimit,
		},
	}
	for _, o := range opts {
		o(&r.defaults)
	}
	return r
}

// resolve copies the retriever's defaults and applies per-call options.
func (r *Retriever) resolve(opts []Option) settings {
	s := r.defaults
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Retrieve assembles the context bundle for question.
//
// The three sources run concurrently. A source failure leaves its section of
// the bundle empty and appends a description to [Bundle.Errors]; Retrieve
// itself fails only on a blank question.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts ...Option) (*Bundle, error) {
	const op = "retrieve"
	if strings.TrimSpace(question) == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "blank question")
	}
	cfg := r.resolve(opts)

	b := &Bundle{
		Question: question,
		Similar:  []SimilarRecord{},
		Examples: make(map[string][]map[string]any),
	}
	var mu sync.Mutex
	record := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		b.Errors = append(b.Errors, fmt.Sprintf(format, args...))
	}

	eg, egCtx := errgroup.WithContext(ctx)

	// ── goroutine 1: embedding and similar queries ───────────────────────────
	eg.Go(func() error {
		vec, err := r.embedder.Embed(egCtx, question)
		if err != nil {
			record("embed question: %v", err)
			return nil
		}
		b.Embedding = vec
		matches, err := r.vectors.Search(egCtx, cfg.collection, vec,
			vector.WithTopK(cfg.topK), vector.WithThreshold(cfg.threshold))
		if err != nil {
			record("similar queries: %v", err)
			return nil
		}
		b.Similar = toSimilar(matches)
		return nil
	})

	// ── goroutine 2: schema and example rows ─────────────────────────────────
	eg.Go(func() error {
		sch, err := r.graph.Schema(egCtx)
		if err != nil {
			record("graph schema: %v", err)
			return nil
		}
		summary, dropped := summarizeSchema(sch)
		b.Schema = summary
		for _, d := range dropped {
			record("schema: discarded %s", d)
		}
		for _, label := range summary.Labels {
			rows, err := r.graph.ExampleNodes(egCtx, label, cfg.exampleLimit)
			if err != nil {
				record("examples for %s: %v", label, err)
				continue
			}
			clean, bad := scrubRows(rows)
			for _, name := range bad {
				record("examples for %s: discarded property %q", label, name)
			}
			b.Examples[label] = clean
		}
		return nil
	})

	// ── goroutine 3: entity and scope detection ──────────────────────────────
	eg.Go(func() error {
		cfgs, err := r.configs.Configs(egCtx)
		if err != nil {
			record("entity configurations: %v", err)
			return nil
		}
		b.Metadata = detectEntities(question, cfgs)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}

// SearchSimilar embeds question and returns past question/query records
// scoring at or above the threshold, best first. Unlike
// [Retriever.Retrieve], failures surface as errors.
func (r *Retriever) SearchSimilar(ctx context.Context, question string, opts ...Option) ([]SimilarRecord, error) {
	const op = "search_similar"
	if strings.TrimSpace(question) == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "blank question")
	}
	cfg := r.resolve(opts)

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, errs.Wrapf(errs.KindEmbedding, op, err, "embed question")
	}
	matches, err := r.vectors.Search(ctx, cfg.collection, vec,
		vector.WithTopK(cfg.topK), vector.WithThreshold(cfg.threshold))
	if err != nil {
		return nil, errs.Wrapf(errs.KindQueryExecution, op, err, "search %q", cfg.collection)
	}
	return toSimilar(matches), nil
}

// Schema fetches the graph schema and flattens it to sorted identifier
// sets. Identifiers failing validation are dropped and logged.
func (r *Retriever) Schema(ctx context.Context) (*SchemaSummary, error) {
	sch, err := r.graph.Schema(ctx)
	if err != nil {
		return nil, errs.Wrapf(errs.KindQueryExecution, "get_schema", err, "fetch graph schema")
	}
	summary, dropped := summarizeSchema(sch)
	for _, d := range dropped {
		slog.WarnContext(ctx, "discarded schema identifier", "identifier", d)
	}
	return &summary, nil
}

// ExampleEntities samples up to perLabel rows for each label. Labels must
// be valid identifiers. A label whose fetch fails is skipped with a warning
// so one broken label does not hide the rest; perLabel values below one fall
// back to the configured example limit.
func (r *Retriever) ExampleEntities(ctx context.Context, labels []string, perLabel int) (map[string][]map[string]any, error) {
	const op = "get_example_entities"
	for _, label := range labels {
		if err := entity.CheckIdentifier("label", label); err != nil {
			return nil, errs.Wrap(errs.KindInjectionDefense, op, err)
		}
	}
	if perLabel < 1 {
		perLabel = r.defaults.exampleLimit
	}

	out := make(map[string][]map[string]any, len(labels))
	for _, label := range labels {
		rows, err := r.graph.ExampleNodes(ctx, label, perLabel)
		if err != nil {
			slog.WarnContext(ctx, "example fetch failed, label skipped",
				"label", label, "error", err)
			continue
		}
		clean, bad := scrubRows(rows)
		for _, name := range bad {
			slog.WarnContext(ctx, "discarded example property",
				"label", label, "property", name)
		}
		out[label] = clean
	}
	return out, nil
}

// EntityMetadata detects the entities and scopes mentioned in question and
// returns their metadata.
func (r *Retriever) EntityMetadata(ctx context.Context, question string) (*Metadata, error) {
	const op = "get_entity_metadata"
	if strings.TrimSpace(question) == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "blank question")
	}
	cfgs, err := r.configs.Configs(ctx)
	if err != nil {
		return nil, errs.Wrapf(errs.KindConfiguration, op, err, "load entity configurations")
	}
	meta := detectEntities(question, cfgs)
	return &meta, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Normalization helpers
// ─────────────────────────────────────────────────────────────────────────────

// toSimilar converts search hits to similar records, splitting the question
// and query fields out of the payload. Records are sorted by descending
// score.
func toSimilar(matches []vector.Match) []SimilarRecord {
	out := make([]SimilarRecord, 0, len(matches))
	for _, m := range matches {
		rec := SimilarRecord{
			Question: cast.ToString(m.Payload[PayloadQuestion]),
			Query:    cast.ToString(m.Payload[PayloadQuery]),
			Score:    m.Score,
		}
		for k, v := range m.Payload {
			if k == PayloadQuestion || k == PayloadQuery {
				continue
			}
			if rec.Metadata == nil {
				rec.Metadata = make(map[string]any)
			}
			rec.Metadata[k] = v
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// summarizeSchema flattens a graph schema into sorted, deduplicated
// identifier sets. Identifiers failing validation are dropped; the returned
// strings describe each drop as `<what> "<redacted>"`.
func summarizeSchema(sch *graph.Schema) (SchemaSummary, []string) {
	var dropped []string
	keep := func(what, name string) bool {
		if entity.ValidIdentifier(name) {
			return true
		}
		dropped = append(dropped, fmt.Sprintf("%s %q", what, entity.Redact(name)))
		return false
	}

	var s SchemaSummary
	labels := make(map[string]bool)
	for _, l := range sch.Labels {
		if labels[l] {
			continue
		}
		labels[l] = true
		if keep("label", l) {
			s.Labels = append(s.Labels, l)
		}
	}
	rels := make(map[string]bool)
	for _, rel := range sch.Relationships {
		if rels[rel.Type] {
			continue
		}
		rels[rel.Type] = true
		if keep("relationship type", rel.Type) {
			s.Relationships = append(s.Relationships, rel.Type)
		}
	}
	props := make(map[string]bool)
	for _, list := range sch.Properties {
		for _, p := range list {
			if props[p.Name] {
				continue
			}
			props[p.Name] = true
			if keep("property", p.Name) {
				s.Properties = append(s.Properties, p.Name)
			}
		}
	}

	sort.Strings(s.Labels)
	sort.Strings(s.Relationships)
	sort.Strings(s.Properties)
	sort.Strings(dropped)
	return s, dropped
}

// scrubRows drops row properties whose names fail identifier validation and
// returns the distinct dropped names, redacted and sorted.
func scrubRows(rows []map[string]any) ([]map[string]any, []string) {
	var dropped []string
	seen := make(map[string]bool)
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		clean := make(map[string]any, len(row))
		for k, v := range row {
			if entity.ValidIdentifier(k) {
				clean[k] = v
				continue
			}
			if red := entity.Redact(k); !seen[red] {
				seen[red] = true
				dropped = append(dropped, red)
			}
		}
		out = append(out, clean)
	}
	sort.Strings(dropped)
	return out, dropped
}
