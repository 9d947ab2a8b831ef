// Package ingest coordinates entity writes across the graph store and the
// vector store.
//
// A write follows a fixed pipeline: plan (project the entity through its
// configuration), embed, write graph, write vector, compensate on failure.
// The two stores never commit half an entity: if the vector write fails after
// the graph write succeeded, the node is rolled back; if the rollback itself
// fails, the caller receives a data-consistency error carrying both causes.
// Removals run the mirror protocol with the vector point restored when the
// graph delete fails.
//
// Every write is an upsert keyed on (label, id), so replaying an ingest is
// indistinguishable from running it once. That idempotency is what makes the
// at-least-once auto-sync [Hook] safe.
//
// Embedding failures do not abort a write: the graph side still commits and
// the report notes the degraded vector side. A store failure does abort.
//
// Stores are passed in as interfaces; wrap them in resilience decorators
// before construction to get retries and circuit breaking.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
	"github.com/MrWong99/graphseer/pkg/provider/embeddings"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// Entity is one host record: attribute name to value. The "id" key is
// mandatory and identifies the record within its label.
type Entity map[string]any

// Coordinator applies entity writes to both stores. Safe for concurrent use.
type Coordinator struct {
	graph    graph.Store
	vectors  vector.Store
	embedder embeddings.Provider

	// ensured memoizes vector collections known to exist so the existence
	// probe runs once per collection per process.
	mu      sync.Mutex
	ensured map[string]bool
}

// New returns a Coordinator writing through the given stores and embedder.
func New(g graph.Store, v vector.Store, e embeddings.Provider) *Coordinator {
	return &Coordinator{
		graph:    g,
		vectors:  v,
		embedder: e,
		ensured:  make(map[string]bool),
	}
}

// Ingest writes ent to both stores per cfg and reports what was written.
//
// The returned error is nil even when the vector side degraded (embedder
// failure, no embeddable text); the report's warnings say why. Store
// failures return a nil report.
func (c *Coordinator) Ingest(ctx context.Context, cfg *entity.Config, ent Entity) (*Report, error) {
	return c.apply(ctx, "ingest", cfg, ent)
}

// Sync is [Coordinator.Ingest] under its auto-sync name. Both operations are
// upserts, so syncing an id the stores have never seen creates it.
func (c *Coordinator) Sync(ctx context.Context, cfg *entity.Config, ent Entity) (*Report, error) {
	return c.apply(ctx, "sync", cfg, ent)
}

func (c *Coordinator) apply(ctx context.Context, op string, cfg *entity.Config, ent Entity) (*Report, error) {
	start := time.Now()
	if err := checkConfig(op, cfg); err != nil {
		return nil, err
	}
	pl, err := buildPlan(op, cfg, ent)
	if err != nil {
		return nil, err
	}
	rep := &Report{Label: cfg.Label, ID: pl.id}

	// Embed first so an embedder outage degrades the write instead of
	// leaving a node without its point after a partial pipeline.
	var vec []float32
	switch {
	case pl.wantsVector():
		v, embedErr := c.embedder.Embed(ctx, pl.embedText)
		if embedErr != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("embedding failed: %v", embedErr))
			slog.WarnContext(ctx, "embedding failed, writing graph side only",
				"label", cfg.Label, "id", pl.id, "error", embedErr)
		} else {
			vec = v
		}
	case cfg.HasVector():
		rep.Warnings = append(rep.Warnings, "no embeddable text, vector point skipped")
	}

	if err := c.graph.UpsertNode(ctx, pl.node, pl.edgeTypes, pl.edges); err != nil {
		return nil, errs.Wrapf(errs.KindGraphWrite, op, err, "upsert node %s %s", cfg.Label, pl.id)
	}
	rep.GraphStored = true
	rep.Edges = len(pl.edges)

	if vec != nil {
		if err := c.writePoint(ctx, pl, vec); err != nil {
			return nil, c.compensateGraph(ctx, op, cfg.Label, pl.id, err)
		}
		rep.VectorStored = true
	}

	rep.Duration = time.Since(start)
	return rep, nil
}

// Remove deletes the entity identified by (cfg.Label, id) from both stores.
// It returns true when a graph node existed and was removed. The vector
// point is deleted even when the node is already gone.
func (c *Coordinator) Remove(ctx context.Context, cfg *entity.Config, id string) (bool, error) {
	if err := checkConfig("remove", cfg); err != nil {
		return false, err
	}
	if id == "" {
		return false, errs.Newf(errs.KindInvalidInput, "remove", "empty id for label %s", cfg.Label)
	}

	snap, err := c.graph.GetNode(ctx, cfg.Label, id)
	if err != nil {
		return false, errs.Wrapf(errs.KindGraphWrite, "remove", err, "snapshot node %s %s", cfg.Label, id)
	}

	if cfg.HasVector() {
		pointID := vector.PointID(cfg.Label, id)
		if err := c.vectors.Delete(ctx, cfg.Vector.Collection, pointID); err != nil {
			return false, errs.Wrapf(errs.KindVectorWrite, "remove", err, "delete point for %s %s", cfg.Label, id)
		}
	}

	if snap == nil {
		return false, nil
	}

	if err := c.graph.DeleteNode(ctx, cfg.Label, id); err != nil {
		delErr := errs.Wrapf(errs.KindGraphWrite, "remove", err, "delete node %s %s", cfg.Label, id)
		if cfg.HasVector() {
			if restoreErr := c.restorePoint(ctx, cfg, id, snap); restoreErr != nil {
				cerr := errs.Consistency("remove", delErr, restoreErr)
				slog.ErrorContext(ctx, "vector restore failed after graph delete failure",
					"label", cfg.Label, "id", id, "consistency", "violated", "error", cerr)
				return false, cerr
			}
		}
		return false, delErr
	}
	return true, nil
}

// Exists reports whether a graph node is stored under (cfg.Label, id).
// The auto-sync [Hook] uses it to tell updates of known entities apart from
// replays of entities the stores never saw.
func (c *Coordinator) Exists(ctx context.Context, cfg *entity.Config, id string) (bool, error) {
	if err := checkConfig("exists", cfg); err != nil {
		return false, err
	}
	if id == "" {
		return false, errs.Newf(errs.KindInvalidInput, "exists", "empty id for label %s", cfg.Label)
	}
	snap, err := c.graph.GetNode(ctx, cfg.Label, id)
	if err != nil {
		return false, errs.Wrapf(errs.KindGraphWrite, "exists", err, "snapshot node %s %s", cfg.Label, id)
	}
	return snap != nil, nil
}

// restorePoint rebuilds the vector point of a node whose graph delete failed
// after the point was already removed. The stores hold no copy of the
// embedding, so it is recomputed from the snapshot's properties.
func (c *Coordinator) restorePoint(ctx context.Context, cfg *entity.Config, id string, snap *graph.Snapshot) error {
	ent := Entity{"id": id}
	for k, v := range snap.Node.Props {
		ent[k] = v
	}
	pl, err := buildPlan("remove", cfg, ent)
	if err != nil {
		return err
	}
	if !pl.wantsVector() {
		// No embeddable text means no point would have existed.
		return nil
	}
	vec, err := c.embedder.Embed(ctx, pl.embedText)
	if err != nil {
		return errs.Wrapf(errs.KindEmbedding, "remove", err, "re-embed %s %s", cfg.Label, id)
	}
	return c.writePoint(ctx, pl, vec)
}

// compensateGraph rolls back a node after a failed vector write. On rollback
// failure both causes are joined into a data-consistency error.
func (c *Coordinator) compensateGraph(ctx context.Context, op, label, id string, vecErr error) error {
	wrapped := errs.Wrapf(errs.KindVectorWrite, op, vecErr, "upsert point for %s %s", label, id)
	if delErr := c.graph.DeleteNode(ctx, label, id); delErr != nil {
		cerr := errs.Consistency(op, wrapped, delErr)
		slog.ErrorContext(ctx, "graph rollback failed after vector write failure",
			"label", label, "id", id, "consistency", "violated", "error", cerr)
		return cerr
	}
	slog.WarnContext(ctx, "vector write failed, graph node rolled back",
		"label", label, "id", id, "error", vecErr)
	return wrapped
}

// writePoint upserts the plan's point, creating the collection on first use.
func (c *Coordinator) writePoint(ctx context.Context, pl *writePlan, vec []float32) error {
	if err := c.ensureCollection(ctx, pl.collection); err != nil {
		return err
	}
	return c.vectors.Upsert(ctx, pl.collection, []vector.Point{{
		ID:      pl.pointID,
		Vector:  vec,
		Payload: pl.payload,
	}})
}

// ensureCollection creates the collection unless a previous call saw it.
// Serialized so concurrent first writes race neither the probe nor the
// create.
func (c *Coordinator) ensureCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensured[name] {
		return nil
	}
	if err := vector.EnsureCollection(ctx, c.vectors, name, c.embedder.Dimensions()); err != nil {
		return err
	}
	c.ensured[name] = true
	return nil
}

func checkConfig(op string, cfg *entity.Config) error {
	if cfg == nil {
		return errs.New(errs.KindConfiguration, op, "nil entity configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errs.Wrapf(errs.KindConfiguration, op, err, "configuration for %s is invalid", cfg.Label)
	}
	return nil
}
