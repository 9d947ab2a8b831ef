package neo4j

import (
	"context"
	"fmt"
	"sort"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cast"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
)

// Schema introspects the live graph via the built-in schema procedures and
// returns its normalized shape.
func (s *Store) Schema(ctx context.Context) (*graph.Schema, error) {
	const op = "neo4j store: schema"

	session := s.session(ctx, neo4jdrv.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		sch := &graph.Schema{
			Labels:        []string{},
			Relationships: []graph.RelPattern{},
			Properties:    map[string][]graph.Property{},
		}

		res, err := tx.Run(ctx, "CALL db.labels() YIELD label RETURN label ORDER BY label", nil)
		if err != nil {
			return nil, fmt.Errorf("list labels: %w", err)
		}
		for res.Next(ctx) {
			sch.Labels = append(sch.Labels, cast.ToString(res.Record().Values[0]))
		}
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("list labels: %w", err)
		}

		patterns, err := relationshipPatterns(ctx, tx)
		if err != nil {
			return nil, err
		}
		sch.Relationships = patterns

		props, err := labelProperties(ctx, tx)
		if err != nil {
			return nil, err
		}
		sch.Properties = props

		return sch, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, op, err)
	}
	return out.(*graph.Schema), nil
}

// relationshipPatterns reads db.schema.visualization(), whose virtual nodes
// carry the label in a "name" property, and resolves each relationship's
// endpoints through them.
func relationshipPatterns(ctx context.Context, tx neo4jdrv.ManagedTransaction) ([]graph.RelPattern, error) {
	res, err := tx.Run(ctx,
		"CALL db.schema.visualization() YIELD nodes, relationships RETURN nodes, relationships", nil)
	if err != nil {
		return nil, fmt.Errorf("schema visualization: %w", err)
	}
	patterns := []graph.RelPattern{}
	if res.Next(ctx) {
		values := res.Record().Values

		labelByID := map[string]string{}
		if nodes, ok := values[0].([]any); ok {
			for _, v := range nodes {
				if n, ok := v.(neo4jdrv.Node); ok {
					labelByID[n.ElementId] = cast.ToString(n.Props["name"])
				}
			}
		}
		if rels, ok := values[1].([]any); ok {
			for _, v := range rels {
				if r, ok := v.(neo4jdrv.Relationship); ok {
					patterns = append(patterns, graph.RelPattern{
						Type: r.Type,
						From: labelByID[r.StartElementId],
						To:   labelByID[r.EndElementId],
					})
				}
			}
		}
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("schema visualization: %w", err)
	}
	sort.Slice(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return patterns, nil
}

// labelProperties reads db.schema.nodeTypeProperties() and merges the rows
// into one sorted property list per label. A property observed under several
// node types keeps the union of its value types.
func labelProperties(ctx context.Context, tx neo4jdrv.ManagedTransaction) (map[string][]graph.Property, error) {
	res, err := tx.Run(ctx,
		"CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName, propertyTypes "+
			"RETURN nodeLabels, propertyName, propertyTypes", nil)
	if err != nil {
		return nil, fmt.Errorf("node type properties: %w", err)
	}

	// label → property name → set of value types
	byLabel := map[string]map[string]map[string]struct{}{}
	for res.Next(ctx) {
		values := res.Record().Values
		name := cast.ToString(values[1])
		if name == "" {
			continue
		}
		labels, _ := values[0].([]any)
		types, _ := values[2].([]any)
		for _, lv := range labels {
			label := cast.ToString(lv)
			if byLabel[label] == nil {
				byLabel[label] = map[string]map[string]struct{}{}
			}
			if byLabel[label][name] == nil {
				byLabel[label][name] = map[string]struct{}{}
			}
			for _, tv := range types {
				byLabel[label][name][cast.ToString(tv)] = struct{}{}
			}
		}
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("node type properties: %w", err)
	}

	out := make(map[string][]graph.Property, len(byLabel))
	for label, props := range byLabel {
		list := make([]graph.Property, 0, len(props))
		for name, typeSet := range props {
			types := make([]string, 0, len(typeSet))
			for t := range typeSet {
				types = append(types, t)
			}
			sort.Strings(types)
			list = append(list, graph.Property{Name: name, Types: types})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		out[label] = list
	}
	return out, nil
}

// ExampleNodes samples up to limit nodes of the given label. The label is
// validated before it is interpolated into the query.
func (s *Store) ExampleNodes(ctx context.Context, label string, limit int) ([]map[string]any, error) {
	const op = "neo4j store: example nodes"
	if err := entity.CheckIdentifier("label", label); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	session := s.session(ctx, neo4jdrv.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4jdrv.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			fmt.Sprintf("MATCH (n:%s) RETURN properties(n) AS props LIMIT $limit", label),
			map[string]any{"limit": limit})
		if err != nil {
			return nil, err
		}
		rows := []map[string]any{}
		for res.Next(ctx) {
			rows = append(rows, asPropMap(res.Record().Values[0]))
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, op, err)
	}
	return out.([]map[string]any), nil
}
