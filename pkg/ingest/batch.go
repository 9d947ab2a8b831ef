package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// BatchItem pairs one entity with its configuration. Items in a batch may
// mix labels.
type BatchItem struct {
	Config *entity.Config
	Entity Entity
}

// IngestBatch writes a batch of entities, isolating failures per entity.
//
// All embedding inputs are gathered into a single provider call and point
// upserts are issued in bulk per collection. A failed bulk upsert degrades
// to per-point upserts so one poisoned point cannot fail its whole
// collection group; entities whose point cannot be written at all have
// their node rolled back, keeping the per-entity atomicity of single
// ingests. There is no rollback across entities.
func (c *Coordinator) IngestBatch(ctx context.Context, items []BatchItem) (*BatchReport, error) {
	const op = "ingest_batch"
	br := &BatchReport{Total: len(items), Outcomes: make([]Outcome, len(items))}
	if len(items) == 0 {
		return br, nil
	}

	type job struct {
		item BatchItem
		plan *writePlan
		vec  []float32
		out  *Outcome
	}

	// Plan every entity first; config validation runs once per config.
	checked := make(map[*entity.Config]error)
	var jobs []*job
	for i, it := range items {
		out := &br.Outcomes[i]
		if it.Config != nil {
			out.Label = it.Config.Label
		}
		cerr, seen := checked[it.Config]
		if !seen {
			cerr = checkConfig(op, it.Config)
			checked[it.Config] = cerr
		}
		if cerr != nil {
			out.Err = cerr
			continue
		}
		pl, err := buildPlan(op, it.Config, it.Entity)
		if err != nil {
			out.Err = err
			continue
		}
		out.ID = pl.id
		jobs = append(jobs, &job{item: it, plan: pl, out: out})
	}

	// One grouped embedding call for every entity that wants a point.
	var embedJobs []*job
	var texts []string
	for _, j := range jobs {
		if j.plan.wantsVector() {
			embedJobs = append(embedJobs, j)
			texts = append(texts, j.plan.embedText)
		}
	}
	var embedWarning string
	if len(texts) > 0 {
		vecs, err := c.embedder.EmbedBatch(ctx, texts)
		switch {
		case err != nil:
			embedWarning = fmt.Sprintf("batch embedding failed: %v", err)
			slog.WarnContext(ctx, "batch embedding failed, writing graph side only",
				"entities", len(texts), "error", err)
		case len(vecs) != len(texts):
			embedWarning = fmt.Sprintf("batch embedding returned %d vectors for %d texts", len(vecs), len(texts))
			slog.WarnContext(ctx, "batch embedding miscounted, writing graph side only",
				"want", len(texts), "got", len(vecs))
		default:
			for i, j := range embedJobs {
				j.vec = vecs[i]
			}
		}
	}

	// Graph writes, one node at a time so failures stay isolated.
	byCollection := make(map[string][]*job)
	for _, j := range jobs {
		start := time.Now()
		rep := &Report{Label: j.item.Config.Label, ID: j.plan.id}
		if j.plan.wantsVector() && embedWarning != "" {
			rep.Warnings = append(rep.Warnings, embedWarning)
		}
		if j.item.Config.HasVector() && !j.plan.wantsVector() {
			rep.Warnings = append(rep.Warnings, "no embeddable text, vector point skipped")
		}
		if err := c.graph.UpsertNode(ctx, j.plan.node, j.plan.edgeTypes, j.plan.edges); err != nil {
			j.out.Err = errs.Wrapf(errs.KindGraphWrite, op, err, "upsert node %s %s", j.item.Config.Label, j.plan.id)
			continue
		}
		rep.GraphStored = true
		rep.Edges = len(j.plan.edges)
		rep.Duration = time.Since(start)
		j.out.Report = rep
		if j.vec != nil {
			byCollection[j.plan.collection] = append(byCollection[j.plan.collection], j)
		}
	}

	// Bulk point upserts per collection, degrading to per-point on failure.
	for collection, grp := range byCollection {
		if err := c.ensureCollection(ctx, collection); err != nil {
			for _, j := range grp {
				c.failBatchVector(ctx, op, j.out, j.plan, err)
			}
			continue
		}
		points := make([]vector.Point, len(grp))
		for i, j := range grp {
			points[i] = vector.Point{ID: j.plan.pointID, Vector: j.vec, Payload: j.plan.payload}
		}
		if err := c.vectors.Upsert(ctx, collection, points); err != nil {
			slog.WarnContext(ctx, "bulk point upsert failed, retrying per point",
				"collection", collection, "points", len(points), "error", err)
			for i, j := range grp {
				if perr := c.vectors.Upsert(ctx, collection, points[i:i+1]); perr != nil {
					c.failBatchVector(ctx, op, j.out, j.plan, perr)
					continue
				}
				j.out.Report.VectorStored = true
			}
			continue
		}
		for _, j := range grp {
			j.out.Report.VectorStored = true
		}
	}

	for i := range br.Outcomes {
		if br.Outcomes[i].Err != nil {
			br.Failed++
		} else {
			br.Succeeded++
		}
	}
	if err := ctx.Err(); err != nil {
		return br, err
	}
	return br, nil
}

// failBatchVector rolls back one batch entity whose point could not be
// written, mirroring the single-ingest compensation.
func (c *Coordinator) failBatchVector(ctx context.Context, op string, out *Outcome, pl *writePlan, vecErr error) {
	out.Report = nil
	out.Err = c.compensateGraph(ctx, op, pl.node.Label, pl.id, vecErr)
}
