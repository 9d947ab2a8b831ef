package neo4j

import (
	"context"
	"strings"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
)

// Run executes a generated query. The session is read-only unless
// [graph.AllowWrite] was passed, so write clauses fail at the server even if
// they slipped past validation.
func (s *Store) Run(ctx context.Context, query string, params map[string]any, opts ...graph.RunOpt) (*graph.Result, error) {
	const op = "neo4j store: run"
	p := graph.ApplyRunOpts(opts)

	mode := neo4jdrv.AccessModeRead
	if p.Write {
		mode = neo4jdrv.AccessModeWrite
	}
	session := s.session(ctx, mode)
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, op, err)
	}
	keys, err := res.Keys()
	if err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, op, err)
	}

	result := &graph.Result{Columns: keys, Rows: [][]any{}}
	for res.Next(ctx) {
		values := res.Record().Values
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = convertValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := res.Err(); err != nil {
		return nil, errs.Wrap(errs.KindQueryExecution, op, err)
	}
	if sum, sumErr := res.Consume(ctx); sumErr == nil {
		if prof := sum.Profile(); prof != nil {
			result.Plan = convertProfiledPlan(prof)
			result.Stats = &graph.ResultStats{
				RowsScanned:  scannedRows(prof),
				DatabaseHits: totalDBHits(prof),
			}
		} else if plan := sum.Plan(); plan != nil {
			result.Plan = convertPlan(plan)
		}
	}
	return result, nil
}

func convertPlan(p neo4jdrv.Plan) *graph.PlanNode {
	if p == nil {
		return nil
	}
	node := &graph.PlanNode{
		Operator:    p.Operator(),
		Identifiers: p.Identifiers(),
		Arguments:   convertMap(p.Arguments()),
	}
	for _, c := range p.Children() {
		if child := convertPlan(c); child != nil {
			node.Children = append(node.Children, *child)
		}
	}
	return node
}

func convertProfiledPlan(p neo4jdrv.ProfiledPlan) *graph.PlanNode {
	if p == nil {
		return nil
	}
	node := &graph.PlanNode{
		Operator:    p.Operator(),
		Identifiers: p.Identifiers(),
		Arguments:   convertMap(p.Arguments()),
		DBHits:      p.DbHits(),
		Records:     p.Records(),
	}
	for _, c := range p.Children() {
		if child := convertProfiledPlan(c); child != nil {
			node.Children = append(node.Children, *child)
		}
	}
	return node
}

// scannedRows sums the records pulled by scan operators across the plan.
func scannedRows(p neo4jdrv.ProfiledPlan) int64 {
	var total int64
	if strings.Contains(p.Operator(), "Scan") {
		total += p.Records()
	}
	for _, c := range p.Children() {
		total += scannedRows(c)
	}
	return total
}

func totalDBHits(p neo4jdrv.ProfiledPlan) int64 {
	total := p.DbHits()
	for _, c := range p.Children() {
		total += totalDBHits(c)
	}
	return total
}

// convertValue normalizes a driver value so no neo4j type crosses the
// package boundary. Nodes, relationships and paths become the graph package's
// value types; containers are converted recursively; scalars pass through.
func convertValue(v any) any {
	switch tv := v.(type) {
	case neo4jdrv.Node:
		return graph.NodeValue{ID: tv.ElementId, Labels: tv.Labels, Props: convertMap(tv.Props)}
	case neo4jdrv.Relationship:
		return graph.RelValue{
			ID:      tv.ElementId,
			Type:    tv.Type,
			StartID: tv.StartElementId,
			EndID:   tv.EndElementId,
			Props:   convertMap(tv.Props),
		}
	case neo4jdrv.Path:
		p := graph.PathValue{
			Nodes: make([]graph.NodeValue, len(tv.Nodes)),
			Rels:  make([]graph.RelValue, len(tv.Relationships)),
		}
		for i, n := range tv.Nodes {
			p.Nodes[i] = convertValue(n).(graph.NodeValue)
		}
		for i, r := range tv.Relationships {
			p.Rels[i] = convertValue(r).(graph.RelValue)
		}
		return p
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = convertValue(e)
		}
		return out
	case map[string]any:
		return convertMap(tv)
	default:
		return v
	}
}

func convertMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = convertValue(v)
	}
	return out
}

// asPropMap converts a value expected to be a property map, tolerating null.
func asPropMap(v any) map[string]any {
	m, ok := convertValue(v).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}
