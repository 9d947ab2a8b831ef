package resilience

import (
	"context"
	"reflect"
	"testing"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
	graphmock "github.com/MrWong99/graphseer/pkg/graph/mock"
	"github.com/MrWong99/graphseer/pkg/vector"
	vectormock "github.com/MrWong99/graphseer/pkg/vector/mock"
)

// flakyGraph fails UpsertNode a fixed number of times before succeeding.
type flakyGraph struct {
	graphmock.Graph
	failuresLeft int
	upserts      int
}

func (f *flakyGraph) UpsertNode(_ context.Context, _ graph.Node, _ []string, _ []graph.Edge) error {
	f.upserts++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errs.New(errs.KindGraphWrite, "neo4j upsert", "write conflict")
	}
	return nil
}

// flakyVector fails Upsert a fixed number of times before succeeding.
type flakyVector struct {
	vectormock.Store
	failuresLeft int
	upserts      int
}

func (f *flakyVector) Upsert(_ context.Context, _ string, _ []vector.Point) error {
	f.upserts++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errs.New(errs.KindVectorWrite, "qdrant upsert", "connection reset")
	}
	return nil
}

func TestGraphGuard_PassesResultsThrough(t *testing.T) {
	inner := &graphmock.Graph{
		GetNodeResult:      &graph.Snapshot{Node: graph.Node{Label: "Customer", ID: "c1"}},
		SchemaResult:       &graph.Schema{Labels: []string{"Customer"}},
		ExampleNodesResult: []map[string]any{{"id": "c1"}},
		RunResult:          &graph.Result{Columns: []string{"n"}, Rows: [][]any{{1}}},
	}
	guard := NewGraphGuard(inner, BreakerConfig{Name: "graph"}, StorePolicy())
	ctx := context.Background()

	if err := guard.UpsertNode(ctx, graph.Node{Label: "Customer", ID: "c1"}, nil, nil); err != nil {
		t.Fatalf("UpsertNode() error = %v", err)
	}
	snap, err := guard.GetNode(ctx, "Customer", "c1")
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if snap != inner.GetNodeResult {
		t.Errorf("GetNode() = %+v, want the wrapped store's snapshot", snap)
	}
	if err := guard.DeleteNode(ctx, "Customer", "c1"); err != nil {
		t.Fatalf("DeleteNode() error = %v", err)
	}
	if err := guard.RestoreNode(ctx, *snap); err != nil {
		t.Fatalf("RestoreNode() error = %v", err)
	}
	if err := guard.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	schema, err := guard.Schema(ctx)
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if schema != inner.SchemaResult {
		t.Errorf("Schema() = %+v, want the wrapped store's schema", schema)
	}
	examples, err := guard.ExampleNodes(ctx, "Customer", 3)
	if err != nil {
		t.Fatalf("ExampleNodes() error = %v", err)
	}
	if !reflect.DeepEqual(examples, inner.ExampleNodesResult) {
		t.Errorf("ExampleNodes() = %v, want %v", examples, inner.ExampleNodesResult)
	}
	res, err := guard.Run(ctx, "MATCH (n) RETURN n", nil, graph.AllowWrite())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res != inner.RunResult {
		t.Errorf("Run() = %+v, want the wrapped store's result", res)
	}

	for _, method := range []string{
		"UpsertNode", "GetNode", "DeleteNode", "RestoreNode",
		"Ping", "Schema", "ExampleNodes", "Run",
	} {
		if got := inner.CallCount(method); got != 1 {
			t.Errorf("CallCount(%s) = %d, want 1", method, got)
		}
	}

	// Run options must reach the wrapped store intact.
	calls := inner.Calls()
	last := calls[len(calls)-1]
	if last.Method != "Run" {
		t.Fatalf("last call = %s, want Run", last.Method)
	}
	if params, ok := last.Args[2].(graph.RunParams); !ok || !params.Write {
		t.Errorf("Run forwarded params = %+v, want Write=true", last.Args[2])
	}
}

func TestGraphGuard_RetriesTransientFailures(t *testing.T) {
	inner := &flakyGraph{failuresLeft: 2}
	guard := NewGraphGuard(inner, BreakerConfig{Name: "graph"}, fastPolicy(3))

	err := guard.UpsertNode(context.Background(), graph.Node{Label: "Customer", ID: "c1"}, nil, nil)
	if err != nil {
		t.Fatalf("UpsertNode() error = %v, want recovery within the attempt budget", err)
	}
	if inner.upserts != 3 {
		t.Errorf("upsert attempts = %d, want 3", inner.upserts)
	}
}

func TestGraphGuard_StopsOnNonRetryableErrors(t *testing.T) {
	inner := &graphmock.Graph{
		GetNodeErr: errs.New(errs.KindInvalidInput, "neo4j get", "blank label"),
	}
	guard := NewGraphGuard(inner, BreakerConfig{Name: "graph"}, fastPolicy(3))

	_, err := guard.GetNode(context.Background(), "", "c1")
	if !errs.IsKind(err, errs.KindInvalidInput) {
		t.Fatalf("GetNode() error = %v, want kind invalid_input", err)
	}
	if got := inner.CallCount("GetNode"); got != 1 {
		t.Errorf("CallCount(GetNode) = %d, want 1 attempt for a non-retryable error", got)
	}
}

func TestGraphGuard_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &graphmock.Graph{
		PingErr: errs.New(errs.KindQueryExecution, "neo4j ping", "connection refused"),
	}
	guard := NewGraphGuard(inner, BreakerConfig{Name: "graph", FailureThreshold: 5}, fastPolicy(3))
	ctx := context.Background()

	// First call burns its whole attempt budget against the failing store.
	err := guard.Ping(ctx)
	if !errs.IsKind(err, errs.KindQueryExecution) {
		t.Fatalf("first Ping() error = %v, want kind query_execution", err)
	}
	if got := inner.CallCount("Ping"); got != 3 {
		t.Fatalf("CallCount(Ping) = %d, want 3", got)
	}

	// The second call trips the breaker on its second attempt, and the open
	// breaker turns the third attempt into a fail-fast instead of a retry.
	err = guard.Ping(ctx)
	if !errs.IsKind(err, errs.KindCircuitOpen) {
		t.Fatalf("second Ping() error = %v, want kind circuit_open", err)
	}
	if got := inner.CallCount("Ping"); got != 5 {
		t.Errorf("CallCount(Ping) = %d, want 5 (open breaker must not reach the store)", got)
	}
	if state := guard.Breaker().State(); state != "open" {
		t.Errorf("breaker state = %q, want open", state)
	}

	// Later calls never touch the store while the breaker stays open.
	if err := guard.Ping(ctx); !errs.IsKind(err, errs.KindCircuitOpen) {
		t.Fatalf("third Ping() error = %v, want kind circuit_open", err)
	}
	if got := inner.CallCount("Ping"); got != 5 {
		t.Errorf("CallCount(Ping) = %d after fail-fast call, want 5", got)
	}
}

func TestVectorGuard_PassesResultsThrough(t *testing.T) {
	inner := &vectormock.Store{
		CollectionExistsResult: true,
		SearchResult:           []vector.Match{{ID: "p1", Score: 0.91}},
	}
	guard := NewVectorGuard(inner, BreakerConfig{Name: "vector"}, StorePolicy())
	ctx := context.Background()

	if err := guard.CreateCollection(ctx, "customers", 1536); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	exists, err := guard.CollectionExists(ctx, "customers")
	if err != nil {
		t.Fatalf("CollectionExists() error = %v", err)
	}
	if !exists {
		t.Error("CollectionExists() = false, want true")
	}
	if err := guard.Upsert(ctx, "customers", []vector.Point{{ID: "p1"}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	matches, err := guard.Search(ctx, "customers", []float32{0.1, 0.2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !reflect.DeepEqual(matches, inner.SearchResult) {
		t.Errorf("Search() = %v, want %v", matches, inner.SearchResult)
	}
	if err := guard.Delete(ctx, "customers", "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := guard.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	for _, method := range []string{
		"CreateCollection", "CollectionExists", "Upsert", "Search", "Delete", "Ping",
	} {
		if got := inner.CallCount(method); got != 1 {
			t.Errorf("CallCount(%s) = %d, want 1", method, got)
		}
	}
}

func TestVectorGuard_RetriesTransientFailures(t *testing.T) {
	inner := &flakyVector{failuresLeft: 1}
	guard := NewVectorGuard(inner, BreakerConfig{Name: "vector"}, fastPolicy(3))

	err := guard.Upsert(context.Background(), "customers", []vector.Point{{ID: "p1"}})
	if err != nil {
		t.Fatalf("Upsert() error = %v, want recovery within the attempt budget", err)
	}
	if inner.upserts != 2 {
		t.Errorf("upsert attempts = %d, want 2", inner.upserts)
	}
}

func TestVectorGuard_FailsFastWhenOpen(t *testing.T) {
	inner := &vectormock.Store{
		UpsertErr: errs.New(errs.KindVectorWrite, "qdrant upsert", "connection reset"),
	}
	guard := NewVectorGuard(inner, BreakerConfig{Name: "vector", FailureThreshold: 5}, RetryPolicy{MaxAttempts: 1})
	ctx := context.Background()
	points := []vector.Point{{ID: "p1"}}

	for i := 0; i < 5; i++ {
		if err := guard.Upsert(ctx, "customers", points); !errs.IsKind(err, errs.KindVectorWrite) {
			t.Fatalf("Upsert() #%d error = %v, want kind vector_write", i+1, err)
		}
	}
	err := guard.Upsert(ctx, "customers", points)
	if !errs.IsKind(err, errs.KindCircuitOpen) {
		t.Fatalf("Upsert() after threshold error = %v, want kind circuit_open", err)
	}
	if got := inner.CallCount("Upsert"); got != 5 {
		t.Errorf("CallCount(Upsert) = %d, want 5 (open breaker must not reach the store)", got)
	}
}
