package respond

import (
	"strings"

	"github.com/MrWong99/graphseer/pkg/execute"
)

// suggest ranks visualization suggestions for a non-empty result, most
// specific first. A table is always offered last as the fallback.
func suggest(queryText string, rows []map[string]any, result *execute.ExecutionResult) []Visualization {
	var out []Visualization
	cols := columnNames(rows)

	if v, ok := numberViz(rows, cols); ok {
		out = append(out, v)
	}
	if v, ok := barChartViz(rows, cols); ok {
		out = append(out, v)
	}
	if v, ok := lineChartViz(rows, cols); ok {
		out = append(out, v)
	}
	if v, ok := graphViz(queryText, rows, result); ok {
		out = append(out, v)
	}
	out = append(out, Visualization{
		Type:      VizTable,
		Rationale: "A table shows every returned column.",
		Columns:   cols,
	})
	return out
}

// numberViz fires for a single row with a single numeric cell, the
// typical shape of a count query.
func numberViz(rows []map[string]any, cols []string) (Visualization, bool) {
	if len(rows) != 1 || len(cols) != 1 {
		return Visualization{}, false
	}
	if _, ok := numericColumn(rows, cols[0]); !ok {
		return Visualization{}, false
	}
	return Visualization{
		Type:      VizNumber,
		Rationale: "A single numeric value reads best as one big number.",
		Columns:   cols,
	}, true
}

// barChartViz fires for two columns, one categorical and one numeric,
// with at most fifty rows. The categorical column is listed first.
func barChartViz(rows []map[string]any, cols []string) (Visualization, bool) {
	if len(cols) != 2 || len(rows) == 0 || len(rows) > 50 {
		return Visualization{}, false
	}
	for i, cat := range cols {
		num := cols[1-i]
		if !categoricalColumn(rows, cat) {
			continue
		}
		if _, ok := numericColumn(rows, num); ok {
			return Visualization{
				Type:      VizBarChart,
				Rationale: "One categorical and one numeric column compare well as bars.",
				Columns:   []string{cat, num},
			}, true
		}
	}
	return Visualization{}, false
}

// lineChartViz fires when a temporally named column sits alongside a
// numeric one.
func lineChartViz(rows []map[string]any, cols []string) (Visualization, bool) {
	for _, tcol := range cols {
		if !temporalColumn(tcol) {
			continue
		}
		for _, ncol := range cols {
			if ncol == tcol {
				continue
			}
			if _, ok := numericColumn(rows, ncol); ok {
				return Visualization{
					Type:      VizLineChart,
					Rationale: "Values over time suit a line chart.",
					Columns:   []string{tcol, ncol},
				}, true
			}
		}
	}
	return Visualization{}, false
}

// graphViz fires when the query traverses relationships and the result
// still carries graph entities, either as a graph shape or as flattened
// property maps in table cells.
func graphViz(queryText string, rows []map[string]any, result *execute.ExecutionResult) (Visualization, bool) {
	if !mentionsTraversal(queryText) {
		return Visualization{}, false
	}
	rationale := "The query traverses relationships and returned graph entities."
	if shape, ok := result.Data.(*execute.GraphShape); ok && len(shape.Nodes) > 0 {
		return Visualization{Type: VizGraph, Rationale: rationale}, true
	}
	for _, row := range rows {
		for _, v := range row {
			if _, ok := v.(map[string]any); ok {
				return Visualization{Type: VizGraph, Rationale: rationale}, true
			}
		}
	}
	return Visualization{}, false
}

func mentionsTraversal(queryText string) bool {
	return strings.Contains(queryText, "-[") || strings.Contains(queryText, "]-") || strings.Contains(queryText, "--")
}

func categoricalColumn(rows []map[string]any, col string) bool {
	found := false
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		if _, isStr := v.(string); !isStr {
			return false
		}
		found = true
	}
	return found
}
