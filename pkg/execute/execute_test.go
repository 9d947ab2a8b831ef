package execute_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/execute"
	"github.com/MrWong99/graphseer/pkg/graph"
	graphmock "github.com/MrWong99/graphseer/pkg/graph/mock"
)

func newExecutor() (*execute.Executor, *graphmock.Graph) {
	g := &graphmock.Graph{
		RunResult: &graph.Result{Columns: []string{"n"}, Rows: [][]any{}},
	}
	return execute.New(g), g
}

func runCalls(g *graphmock.Graph) []graphmock.Call {
	var out []graphmock.Call
	for _, c := range g.Calls() {
		if c.Method == "Run" {
			out = append(out, c)
		}
	}
	return out
}

// blockingQuerier parks until the context is done, standing in for a
// store call that never returns on its own.
type blockingQuerier struct{}

func (b *blockingQuerier) Run(ctx context.Context, _ string, _ map[string]any, _ ...graph.RunOpt) (*graph.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// scriptedQuerier returns a different result per call, for operations
// that issue more than one query.
type scriptedQuerier struct {
	queries []string
	results []*graph.Result
	errs    []error
}

func (s *scriptedQuerier) Run(_ context.Context, query string, _ map[string]any, _ ...graph.RunOpt) (*graph.Result, error) {
	i := len(s.queries)
	s.queries = append(s.queries, query)
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.results[i], err
}

func TestExecute_TableFlattensNodes(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	g.RunResult = &graph.Result{
		Columns: []string{"c", "orders"},
		Rows: [][]any{
			{graph.NodeValue{ID: "c1", Labels: []string{"Customer"}, Props: map[string]any{"name": "Acme"}}, int64(3)},
		},
	}

	params := map[string]any{"status": "active"}
	res, err := ex.Execute(context.Background(), "MATCH (c:Customer) WHERE c.status = $status RETURN c, 3 AS orders", params)
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("Success = false, want true")
	}
	rows, ok := res.Data.([]map[string]any)
	if !ok {
		t.Fatalf("Data = %T, want []map[string]any", res.Data)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if !reflect.DeepEqual(rows[0]["c"], map[string]any{"name": "Acme"}) {
		t.Errorf("flattened node = %v, want its property map", rows[0]["c"])
	}
	if rows[0]["orders"] != int64(3) {
		t.Errorf("orders = %v, want 3", rows[0]["orders"])
	}
	if res.Metadata.Format != execute.FormatTable || !res.Metadata.ReadOnly {
		t.Errorf("metadata = %+v, want table/read-only", res.Metadata)
	}
	if res.Stats == nil || res.Stats.RowsReturned != 1 {
		t.Errorf("stats = %+v, want one returned row", res.Stats)
	}

	calls := runCalls(g)
	if len(calls) != 1 {
		t.Fatalf("Run calls = %d, want 1", len(calls))
	}
	wantQuery := "MATCH (c:Customer) WHERE c.status = $status RETURN c, 3 AS orders LIMIT 100"
	if calls[0].Args[0] != wantQuery {
		t.Errorf("query = %q, want %q", calls[0].Args[0], wantQuery)
	}
	if !reflect.DeepEqual(calls[0].Args[1], params) {
		t.Errorf("params = %v, want passed through structurally", calls[0].Args[1])
	}
	if rp := calls[0].Args[2].(graph.RunParams); rp.Write {
		t.Error("RunParams.Write = true, want read session")
	}
}

func TestExecute_GraphFormatDeduplicates(t *testing.T) {
	t.Parallel()

	customer := graph.NodeValue{ID: "n1", Labels: []string{"Customer"}, Props: map[string]any{"name": "Acme"}}
	order := graph.NodeValue{ID: "n2", Labels: []string{"Order"}, Props: map[string]any{"total": int64(12)}}
	placed := graph.RelValue{ID: "r1", Type: "PLACED_BY", StartID: "n2", EndID: "n1", Props: map[string]any{}}

	ex, g := newExecutor()
	g.RunResult = &graph.Result{
		Columns: []string{"c", "r", "o"},
		Rows: [][]any{
			{customer, placed, order},
			{customer, placed, order},
		},
	}

	res, err := ex.Execute(context.Background(), "MATCH (c:Customer)<-[r:PLACED_BY]-(o:Order) RETURN c, r, o", nil, execute.WithFormat(execute.FormatGraph))
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	shape, ok := res.Data.(*execute.GraphShape)
	if !ok {
		t.Fatalf("Data = %T, want *execute.GraphShape", res.Data)
	}
	if len(shape.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2 after deduplication", len(shape.Nodes))
	}
	if shape.Nodes[0].ID != "n1" || shape.Nodes[0].Label != "Customer" {
		t.Errorf("first node = %+v, want n1/Customer", shape.Nodes[0])
	}
	if len(shape.Edges) != 1 {
		t.Fatalf("edges = %d, want 1 after deduplication", len(shape.Edges))
	}
	edge := shape.Edges[0]
	if edge.ID != "r1" || edge.Type != "PLACED_BY" || edge.FromID != "n2" || edge.ToID != "n1" {
		t.Errorf("edge = %+v, want r1 PLACED_BY n2->n1", edge)
	}
}

func TestExecute_JSONFormatKeepsStructure(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	g.RunResult = &graph.Result{
		Columns: []string{"name", "total"},
		Rows:    [][]any{{"Acme", int64(41)}, {"Bolt", int64(7)}},
	}

	res, err := ex.Execute(context.Background(), "MATCH (c:Customer) RETURN c.name AS name, c.total AS total", nil, execute.WithFormat(execute.FormatJSON))
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	data, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data = %T, want map[string]any", res.Data)
	}
	if !reflect.DeepEqual(data["columns"], []string{"name", "total"}) {
		t.Errorf("columns = %v, want original column order", data["columns"])
	}
	if !reflect.DeepEqual(data["rows"], [][]any{{"Acme", int64(41)}, {"Bolt", int64(7)}}) {
		t.Errorf("rows = %v, want structurally faithful rows", data["rows"])
	}
}

func TestExecute_RowCapRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			"appends cap to uncapped query",
			"MATCH (n:Customer) RETURN n",
			"MATCH (n:Customer) RETURN n LIMIT 100",
		},
		{
			"keeps cap within the maximum",
			"MATCH (n:Customer) RETURN n LIMIT 500",
			"MATCH (n:Customer) RETURN n LIMIT 500",
		},
		{
			"rewrites oversized cap",
			"MATCH (n:Customer) RETURN n LIMIT 5000",
			"MATCH (n:Customer) RETURN n LIMIT 100",
		},
		{
			"leaves single-aggregate projection alone",
			"MATCH (n:Customer) RETURN count(n) AS count",
			"MATCH (n:Customer) RETURN count(n) AS count",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ex, g := newExecutor()
			if _, err := ex.Execute(context.Background(), tc.query, nil); err != nil {
				t.Fatalf("Execute() unexpected error: %v", err)
			}
			calls := runCalls(g)
			if len(calls) != 1 || calls[0].Args[0] != tc.want {
				t.Errorf("ran %v, want %q", calls, tc.want)
			}
		})
	}
}

func TestExecute_RejectsWriteKeyword(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	_, err := ex.Execute(context.Background(), "MATCH (n:Customer) SET n.flag = true RETURN n", nil)
	if !errs.IsKind(err, errs.KindReadOnlyViolation) {
		t.Fatalf("error = %v, want read-only violation", err)
	}
	if !strings.Contains(err.Error(), `"set"`) {
		t.Errorf("error = %v, want the offending keyword named", err)
	}
	if g.CallCount("Run") != 0 {
		t.Error("store was reached despite the write keyword")
	}
}

func TestExecute_AllowWriteRunsWriteSession(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	res, err := ex.Execute(context.Background(), "CREATE (n:Customer {id: 'c9'}) RETURN n", nil, execute.WithAllowWrite(true))
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if res.Metadata.ReadOnly {
		t.Error("Metadata.ReadOnly = true, want false")
	}
	calls := runCalls(g)
	if len(calls) != 1 {
		t.Fatalf("Run calls = %d, want 1", len(calls))
	}
	if rp := calls[0].Args[2].(graph.RunParams); !rp.Write {
		t.Error("RunParams.Write = false, want write session")
	}
}

func TestExecute_TimeoutMapsToQueryTimeout(t *testing.T) {
	t.Parallel()

	ex := execute.New(&blockingQuerier{}, execute.WithTimeout(20*time.Millisecond))
	_, err := ex.Execute(context.Background(), "MATCH (n:Customer) RETURN n", nil)
	if !errs.IsKind(err, errs.KindQueryTimeout) {
		t.Fatalf("error = %v, want query timeout", err)
	}
	if !strings.Contains(err.Error(), "query exceeded") {
		t.Errorf("error = %v, want the deadline named", err)
	}
}

func TestExecute_CancellationIsNotATimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := execute.New(&blockingQuerier{})
	_, err := ex.Execute(ctx, "MATCH (n:Customer) RETURN n", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if errs.IsKind(err, errs.KindQueryTimeout) {
		t.Error("caller cancellation was reported as a query timeout")
	}
}

func TestExecute_StatsControls(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		ex, _ := newExecutor()
		res, err := ex.Execute(context.Background(), "MATCH (n:Customer) RETURN n", nil, execute.WithStats(false))
		if err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		if res.Stats != nil {
			t.Errorf("Stats = %+v, want nil", res.Stats)
		}
	})

	t.Run("merges backend counters", func(t *testing.T) {
		t.Parallel()

		ex, g := newExecutor()
		g.RunResult = &graph.Result{
			Columns: []string{"n"},
			Rows:    [][]any{{"a"}, {"b"}},
			Stats:   &graph.ResultStats{RowsScanned: 12, DatabaseHits: 90},
		}
		res, err := ex.Execute(context.Background(), "MATCH (n:Customer) RETURN n", nil)
		if err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		if res.Stats == nil {
			t.Fatal("Stats = nil, want populated")
		}
		if res.Stats.RowsReturned != 2 || res.Stats.RowsScanned != 12 || res.Stats.DatabaseHits != 90 {
			t.Errorf("stats = %+v, want backend counters merged", res.Stats)
		}
	})
}

func TestExecute_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()

	if _, err := ex.Execute(context.Background(), "   ", nil); !errs.IsKind(err, errs.KindInvalidInput) {
		t.Errorf("blank query error = %v, want invalid input", err)
	}
	if _, err := ex.Execute(context.Background(), "MATCH (n) RETURN n", nil, execute.WithFormat("csv")); !errs.IsKind(err, errs.KindInvalidInput) {
		t.Errorf("unknown format error = %v, want invalid input", err)
	}
	if g.CallCount("Run") != 0 {
		t.Error("store was reached despite invalid input")
	}
}

func TestExecuteCount_RewritesFinalProjection(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	g.RunResult = &graph.Result{Columns: []string{"total"}, Rows: [][]any{{int64(57)}}}

	total, err := ex.ExecuteCount(context.Background(), "MATCH (n:Customer) RETURN n ORDER BY n.name LIMIT 20", nil)
	if err != nil {
		t.Fatalf("ExecuteCount() unexpected error: %v", err)
	}
	if total != 57 {
		t.Errorf("total = %d, want 57", total)
	}
	calls := runCalls(g)
	want := "MATCH (n:Customer) RETURN count(*) AS total"
	if len(calls) != 1 || calls[0].Args[0] != want {
		t.Errorf("ran %v, want %q", calls, want)
	}
}

func TestExecuteCount_RequiresReturnClause(t *testing.T) {
	t.Parallel()

	ex, _ := newExecutor()
	_, err := ex.ExecuteCount(context.Background(), "MATCH (n:Customer)", nil)
	if !errs.IsKind(err, errs.KindInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
	if !strings.Contains(err.Error(), "RETURN") {
		t.Errorf("error = %v, want the missing clause named", err)
	}
}

func TestExecuteCount_EmptyResultIsZero(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	g.RunResult = &graph.Result{Columns: []string{"total"}, Rows: [][]any{}}

	total, err := ex.ExecuteCount(context.Background(), "MATCH (n:Customer) RETURN n", nil)
	if err != nil {
		t.Fatalf("ExecuteCount() unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
}

func TestExecuteCount_WriteKeywordStillRejected(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	_, err := ex.ExecuteCount(context.Background(), "MATCH (n:Customer) DETACH DELETE n", nil)
	if !errs.IsKind(err, errs.KindReadOnlyViolation) {
		t.Fatalf("error = %v, want read-only violation", err)
	}
	if g.CallCount("Run") != 0 {
		t.Error("store was reached despite the write keyword")
	}
}

func TestExecutePaginated_WindowsResults(t *testing.T) {
	t.Parallel()

	pageRows := make([][]any, 0, 17)
	for i := 41; i <= 57; i++ {
		pageRows = append(pageRows, []any{fmt.Sprintf("row-%d", i)})
	}
	store := &scriptedQuerier{results: []*graph.Result{
		{Columns: []string{"name"}, Rows: pageRows},
		{Columns: []string{"total"}, Rows: [][]any{{int64(57)}}},
	}}

	ex := execute.New(store)
	pr, err := ex.ExecutePaginated(context.Background(), "MATCH (n:Customer) RETURN n.name AS name ORDER BY name", 3, 20, nil)
	if err != nil {
		t.Fatalf("ExecutePaginated() unexpected error: %v", err)
	}

	if len(store.queries) != 2 {
		t.Fatalf("queries = %d, want page query plus count query", len(store.queries))
	}
	wantPage := "MATCH (n:Customer) RETURN n.name AS name ORDER BY name SKIP 40 LIMIT 20"
	if store.queries[0] != wantPage {
		t.Errorf("page query = %q, want %q", store.queries[0], wantPage)
	}
	wantCount := "MATCH (n:Customer) RETURN count(*) AS total"
	if store.queries[1] != wantCount {
		t.Errorf("count query = %q, want %q", store.queries[1], wantCount)
	}

	want := execute.Pagination{Page: 3, PerPage: 20, Total: 57, LastPage: 3, HasMore: false}
	if pr.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", pr.Pagination, want)
	}
	rows, ok := pr.Data.([]map[string]any)
	if !ok || len(rows) != 17 {
		t.Errorf("Data = %T with %d rows, want the 17 rows of the last page", pr.Data, len(rows))
	}
	if pr.Stats == nil || pr.Stats.RowsReturned != 17 {
		t.Errorf("stats = %+v, want 17 returned rows", pr.Stats)
	}
}

func TestExecutePaginated_ReplacesExistingPaging(t *testing.T) {
	t.Parallel()

	store := &scriptedQuerier{results: []*graph.Result{
		{Columns: []string{"n"}, Rows: [][]any{{"a"}}},
		{Columns: []string{"total"}, Rows: [][]any{{int64(35)}}},
	}}

	ex := execute.New(store)
	pr, err := ex.ExecutePaginated(context.Background(), "MATCH (n:Customer) RETURN n SKIP 5 LIMIT 10", 1, 20, nil)
	if err != nil {
		t.Fatalf("ExecutePaginated() unexpected error: %v", err)
	}
	wantPage := "MATCH (n:Customer) RETURN n SKIP 0 LIMIT 20"
	if store.queries[0] != wantPage {
		t.Errorf("page query = %q, want the caller's paging replaced: %q", store.queries[0], wantPage)
	}
	if !pr.Pagination.HasMore || pr.Pagination.LastPage != 2 {
		t.Errorf("pagination = %+v, want more pages after the first", pr.Pagination)
	}
}

func TestExecutePaginated_RejectsBadWindow(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()

	if _, err := ex.ExecutePaginated(context.Background(), "MATCH (n) RETURN n", 0, 20, nil); !errs.IsKind(err, errs.KindInvalidInput) {
		t.Errorf("page 0 error = %v, want invalid input", err)
	}
	if _, err := ex.ExecutePaginated(context.Background(), "MATCH (n) RETURN n", 1, 0, nil); !errs.IsKind(err, errs.KindInvalidInput) {
		t.Errorf("per_page 0 error = %v, want invalid input", err)
	}
	if g.CallCount("Run") != 0 {
		t.Error("store was reached despite the invalid window")
	}
}

func TestExplain_ReturnsPlan(t *testing.T) {
	t.Parallel()

	ex, g := newExecutor()
	g.RunResult = &graph.Result{
		Columns: []string{},
		Plan: &graph.PlanNode{
			Operator: "ProduceResults",
			Children: []graph.PlanNode{{Operator: "NodeByLabelScan"}},
		},
	}

	plan, err := ex.Explain(context.Background(), "MATCH (n:Customer) RETURN n", nil)
	if err != nil {
		t.Fatalf("Explain() unexpected error: %v", err)
	}
	if plan.Operator != "ProduceResults" || len(plan.Children) != 1 {
		t.Errorf("plan = %+v, want the store's operator tree", plan)
	}

	calls := runCalls(g)
	want := "EXPLAIN MATCH (n:Customer) RETURN n"
	if len(calls) != 1 || calls[0].Args[0] != want {
		t.Errorf("ran %v, want %q without a row cap", calls, want)
	}
}

func TestExplain_MissingPlanIsError(t *testing.T) {
	t.Parallel()

	ex, _ := newExecutor()
	_, err := ex.Explain(context.Background(), "MATCH (n:Customer) RETURN n", nil)
	if !errs.IsKind(err, errs.KindQueryExecution) {
		t.Fatalf("error = %v, want query execution kind", err)
	}
}

func TestTest_ReportsPlannability(t *testing.T) {
	t.Parallel()

	t.Run("plannable", func(t *testing.T) {
		t.Parallel()

		ex, g := newExecutor()
		g.RunResult = &graph.Result{Plan: &graph.PlanNode{Operator: "ProduceResults"}}
		if !ex.Test(context.Background(), "MATCH (n:Customer) RETURN n") {
			t.Error("Test() = false, want true for a plannable query")
		}
	})

	t.Run("store rejects the query", func(t *testing.T) {
		t.Parallel()

		ex, g := newExecutor()
		g.RunResult = nil
		g.RunErr = errors.New("syntax error")
		if ex.Test(context.Background(), "MATCH (n:Customer RETURN n") {
			t.Error("Test() = true, want false when planning fails")
		}
	})

	t.Run("blank query", func(t *testing.T) {
		t.Parallel()

		ex, g := newExecutor()
		if ex.Test(context.Background(), "   ") {
			t.Error("Test() = true, want false for a blank query")
		}
		if g.CallCount("Run") != 0 {
			t.Error("store was reached for a blank query")
		}
	})
}
