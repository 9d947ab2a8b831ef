package execute

import "github.com/MrWong99/graphseer/pkg/graph"

func shapeData(res *graph.Result, f Format) any {
	switch f {
	case FormatGraph:
		return graphShape(res)
	case FormatJSON:
		return map[string]any{"columns": res.Columns, "rows": res.Rows}
	default:
		return tableRows(res)
	}
}

// tableRows flattens result rows into column-keyed maps. Nodes and
// relationships reduce to their property maps, paths to the list of node
// property maps along them.
func tableRows(res *graph.Result) []map[string]any {
	rows := make([]map[string]any, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make(map[string]any, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(r) {
				row[col] = flattenValue(r[i])
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func flattenValue(v any) any {
	switch tv := v.(type) {
	case graph.NodeValue:
		return tv.Props
	case graph.RelValue:
		return tv.Props
	case graph.PathValue:
		nodes := make([]any, len(tv.Nodes))
		for i, n := range tv.Nodes {
			nodes[i] = n.Props
		}
		return nodes
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = flattenValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = flattenValue(e)
		}
		return out
	default:
		return v
	}
}

// graphShape collects every node and relationship in the result into
// deduplicated node and edge lists, walking containers and paths. Order
// follows first appearance.
func graphShape(res *graph.Result) *GraphShape {
	shape := &GraphShape{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	seenNodes := make(map[string]bool)
	seenEdges := make(map[string]bool)

	var walk func(v any)
	walk = func(v any) {
		switch tv := v.(type) {
		case graph.NodeValue:
			if seenNodes[tv.ID] {
				return
			}
			seenNodes[tv.ID] = true
			shape.Nodes = append(shape.Nodes, GraphNode{
				ID:         tv.ID,
				Label:      firstLabel(tv.Labels),
				Properties: tv.Props,
			})
		case graph.RelValue:
			if seenEdges[tv.ID] {
				return
			}
			seenEdges[tv.ID] = true
			shape.Edges = append(shape.Edges, GraphEdge{
				ID:         tv.ID,
				Type:       tv.Type,
				FromID:     tv.StartID,
				ToID:       tv.EndID,
				Properties: tv.Props,
			})
		case graph.PathValue:
			for _, n := range tv.Nodes {
				walk(n)
			}
			for _, r := range tv.Rels {
				walk(r)
			}
		case []any:
			for _, e := range tv {
				walk(e)
			}
		case map[string]any:
			for _, e := range tv {
				walk(e)
			}
		}
	}
	for _, row := range res.Rows {
		for _, cell := range row {
			walk(cell)
		}
	}
	return shape
}

func firstLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}
