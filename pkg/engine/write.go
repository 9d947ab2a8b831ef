package engine

import (
	"context"
	"time"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/ingest"
)

// BatchEntity is one entity of a batch ingest, addressed by label.
type BatchEntity struct {
	Label  string
	Entity ingest.Entity
}

// Ingest writes one entity to both stores. The label's configuration comes
// from the wired resolver.
func (e *Engine) Ingest(ctx context.Context, label string, ent ingest.Entity) (rep *ingest.Report, err error) {
	const op = "ingest"
	defer e.observeWrite(ctx, op, time.Now(), &err)

	cfg, err := e.config(ctx, op, label)
	if err != nil {
		return nil, err
	}
	return e.coord.Ingest(ctx, cfg, ent)
}

// IngestBatch writes a batch of entities, possibly of mixed labels, with
// per-entity failure isolation. A label that cannot be resolved aborts the
// whole batch: unresolvable configuration is an operator problem, not a
// data problem, and silently skipping its entities would mask it.
func (e *Engine) IngestBatch(ctx context.Context, items []BatchEntity) (rep *ingest.BatchReport, err error) {
	const op = "ingest_batch"
	defer e.observeWrite(ctx, op, time.Now(), &err)

	batch := make([]ingest.BatchItem, len(items))
	cache := make(map[string]*entity.Config)
	for i, it := range items {
		cfg, ok := cache[it.Label]
		if !ok {
			cfg, err = e.config(ctx, op, it.Label)
			if err != nil {
				return nil, err
			}
			cache[it.Label] = cfg
		}
		batch[i] = ingest.BatchItem{Config: cfg, Entity: it.Entity}
	}
	return e.coord.IngestBatch(ctx, batch)
}

// Sync brings both stores up to date with the entity's current state. An
// unknown id is created, per the coordinator's upsert semantics.
func (e *Engine) Sync(ctx context.Context, label string, ent ingest.Entity) (rep *ingest.Report, err error) {
	const op = "sync"
	defer e.observeWrite(ctx, op, time.Now(), &err)

	cfg, err := e.config(ctx, op, label)
	if err != nil {
		return nil, err
	}
	return e.coord.Sync(ctx, cfg, ent)
}

// Remove deletes the entity from both stores. It reports false without
// error when nothing was stored under the id.
func (e *Engine) Remove(ctx context.Context, label, id string) (removed bool, err error) {
	const op = "remove"
	defer e.observeWrite(ctx, op, time.Now(), &err)

	cfg, err := e.config(ctx, op, label)
	if err != nil {
		return false, err
	}
	return e.coord.Remove(ctx, cfg, id)
}

// observeWrite records the duration histogram and outcome counter for one
// write operation. err must point at the named return so deferred calls see
// the final value.
func (e *Engine) observeWrite(ctx context.Context, op string, start time.Time, err *error) {
	st := status(*err)
	observe.ObserveSince(ctx, e.metrics.IngestDuration, start, observe.Attr("op", op), observe.Attr("status", st))
	e.metrics.RecordIngestOutcome(ctx, op, st)
}
