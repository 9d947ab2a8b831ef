package ingest

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// writePlan is the fully resolved shape of one entity write: everything the
// store calls need, computed up front so the write sequence itself touches no
// entity data.
type writePlan struct {
	id        string
	node      graph.Node
	edgeTypes []string
	edges     []graph.Edge

	// Vector side. collection is empty when the entity has no vector shape;
	// embedText is empty when none of the embed fields carry text, in which
	// case no point is written.
	collection string
	embedText  string
	pointID    string
	payload    map[string]any
}

// wantsVector reports whether this plan produces a vector point.
func (p *writePlan) wantsVector() bool {
	return p.collection != "" && p.embedText != ""
}

// buildPlan projects ent through cfg into a writePlan.
//
// Properties absent from the entity are simply not written. A relationship
// whose foreign key is absent, null or blank is skipped without error. The
// embedding input is the trimmed values of the embed fields joined by
// newlines.
func buildPlan(op string, cfg *entity.Config, ent Entity) (*writePlan, error) {
	if ent == nil {
		return nil, errs.Newf(errs.KindInvalidInput, op, "nil entity for label %s", cfg.Label)
	}
	id := strings.TrimSpace(cast.ToString(ent["id"]))
	if id == "" {
		return nil, errs.Newf(errs.KindInvalidInput, op, "entity of label %s has no id", cfg.Label)
	}

	props := make(map[string]any, len(cfg.Properties))
	for _, p := range cfg.Properties {
		if p == "id" {
			continue
		}
		if v, ok := ent[p]; ok {
			props[p] = v
		}
	}

	edgeTypes := make([]string, 0, len(cfg.Relationships))
	var edges []graph.Edge
	for _, rel := range cfg.Relationships {
		edgeTypes = append(edgeTypes, rel.Type)
		if rel.ForeignKey == "" {
			continue
		}
		fk, ok := ent[rel.ForeignKey]
		if !ok || fk == nil {
			continue
		}
		target := strings.TrimSpace(cast.ToString(fk))
		if target == "" {
			continue
		}
		var eprops map[string]any
		for src, dst := range rel.PropertyMap {
			if v, ok := ent[src]; ok {
				if eprops == nil {
					eprops = make(map[string]any)
				}
				eprops[dst] = v
			}
		}
		edges = append(edges, graph.Edge{
			Type:        rel.Type,
			TargetLabel: rel.TargetLabel,
			TargetID:    target,
			Props:       eprops,
		})
	}

	pl := &writePlan{
		id:        id,
		node:      graph.Node{Label: cfg.Label, ID: id, Props: props},
		edgeTypes: lo.Uniq(edgeTypes),
		edges:     edges,
	}

	if cfg.HasVector() {
		var parts []string
		for _, f := range cfg.Vector.EmbedFields {
			v, ok := ent[f]
			if !ok {
				continue
			}
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				parts = append(parts, s)
			}
		}
		pl.collection = cfg.Vector.Collection
		pl.embedText = strings.Join(parts, "\n")
		pl.pointID = vector.PointID(cfg.Label, id)
		payload := map[string]any{
			vector.PayloadEntityLabel: cfg.Label,
			vector.PayloadEntityID:    id,
		}
		for _, m := range cfg.Vector.Metadata {
			if v, ok := ent[m]; ok {
				payload[m] = v
			}
		}
		pl.payload = payload
	}
	return pl, nil
}
