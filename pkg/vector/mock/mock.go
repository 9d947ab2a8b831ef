// Package mock provides a test double for the vector store contract.
//
// Use Store to return pre-canned matches without a live server, and to
// verify which operations a pipeline performed.
//
// Example:
//
//	s := &mock.Store{
//	    SearchResult: []vector.Match{{ID: "p1", Score: 0.91}},
//	}
//	matches, _ := s.Search(ctx, "people", queryVec)
//	if s.CallCount("Search") != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/graphseer/pkg/vector"
)

// Call records a single method invocation on [Store].
type Call struct {
	// Method is the invoked method's name, e.g. "Upsert".
	Method string
	// Args holds the non-context arguments in declaration order.
	Args []any
}

// Store is a mock implementation of [vector.Store].
type Store struct {
	mu    sync.Mutex
	calls []Call

	// ──── CreateCollection ─────────────────────────────────────────────────
	CreateCollectionErr error

	// ──── CollectionExists ─────────────────────────────────────────────────
	CollectionExistsResult bool
	CollectionExistsErr    error

	// ──── Upsert ───────────────────────────────────────────────────────────
	UpsertErr error

	// ──── Search ───────────────────────────────────────────────────────────
	SearchResult []vector.Match
	SearchErr    error

	// ──── Delete ───────────────────────────────────────────────────────────
	DeleteErr error

	// ──── Ping ─────────────────────────────────────────────────────────────
	PingErr error
}

// Calls returns a copy of all recorded method invocations.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// CreateCollection implements [vector.Store].
func (s *Store) CreateCollection(_ context.Context, name string, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "CreateCollection", Args: []any{name, dims}})
	return s.CreateCollectionErr
}

// CollectionExists implements [vector.Store].
func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "CollectionExists", Args: []any{name}})
	return s.CollectionExistsResult, s.CollectionExistsErr
}

// Upsert implements [vector.Store].
func (s *Store) Upsert(_ context.Context, collection string, points []vector.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Upsert", Args: []any{collection, points}})
	return s.UpsertErr
}

// Search implements [vector.Store].
func (s *Store) Search(_ context.Context, collection string, vec []float32, opts ...vector.SearchOpt) ([]vector.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Search", Args: []any{collection, vec, vector.ApplySearchOpts(opts)}})
	if s.SearchResult == nil {
		return []vector.Match{}, s.SearchErr
	}
	out := make([]vector.Match, len(s.SearchResult))
	copy(out, s.SearchResult)
	return out, s.SearchErr
}

// Delete implements [vector.Store].
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Delete", Args: []any{collection, id}})
	return s.DeleteErr
}

// Ping implements [vector.Store].
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Ping", Args: nil})
	return s.PingErr
}

// Ensure Store implements vector.Store at compile time.
var _ vector.Store = (*Store)(nil)
