package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
	"github.com/MrWong99/graphseer/pkg/ingest"
)

// mapResolver resolves labels from a fixed map, like the engine resolves
// them from discovery.
func mapResolver(cfgs map[string]*entity.Config) ingest.ConfigResolver {
	return func(_ context.Context, label string) (*entity.Config, error) {
		cfg, ok := cfgs[label]
		if !ok {
			return nil, errors.New("unknown label " + label)
		}
		return cfg, nil
	}
}

func TestHook_CreateDispatchesSync(t *testing.T) {
	t.Parallel()

	c, g, _, _ := newCoordinator()
	h := ingest.NewHook(c, mapResolver(map[string]*entity.Config{"Team": teamConfig()}))

	err := h.Handle(context.Background(), ingest.Event{
		Op:     ingest.EventCreate,
		Label:  "Team",
		Entity: teamEntity(),
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("UpsertNode"); n != 1 {
		t.Errorf("UpsertNode calls = %d, want 1", n)
	}
}

func TestHook_DeleteDispatchesRemove(t *testing.T) {
	t.Parallel()

	c, g, v, _ := newCoordinator()
	g.GetNodeResult = &graph.Snapshot{Node: graph.Node{Label: "Team", ID: "t1"}}
	h := ingest.NewHook(c, mapResolver(map[string]*entity.Config{"Team": teamConfig()}))

	err := h.Handle(context.Background(), ingest.Event{
		Op:     ingest.EventDelete,
		Label:  "Team",
		Entity: ingest.Entity{"id": "t1"},
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("DeleteNode"); n != 1 {
		t.Errorf("DeleteNode calls = %d, want 1", n)
	}
	if n := v.CallCount("Delete"); n != 1 {
		t.Errorf("vector Delete calls = %d, want 1", n)
	}
}

func TestHook_PolicyDisablesOperation(t *testing.T) {
	t.Parallel()

	cfg := teamConfig()
	cfg.AutoSync = entity.SyncPolicy{Create: false, Update: true, Delete: true}

	c, g, _, _ := newCoordinator()
	h := ingest.NewHook(c, mapResolver(map[string]*entity.Config{"Team": cfg}))

	err := h.Handle(context.Background(), ingest.Event{
		Op:     ingest.EventCreate,
		Label:  "Team",
		Entity: teamEntity(),
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("UpsertNode"); n != 0 {
		t.Errorf("UpsertNode calls = %d, want 0 for a disabled operation", n)
	}
}

func TestHook_HookPolicyGatesBeforeEntityPolicy(t *testing.T) {
	t.Parallel()

	c, g, _, _ := newCoordinator()
	// The entity allows creates; the hook-wide policy does not.
	h := ingest.NewHook(c,
		mapResolver(map[string]*entity.Config{"Team": teamConfig()}),
		ingest.WithPolicy(entity.SyncPolicy{Create: false, Update: true, Delete: true}),
	)

	err := h.Handle(context.Background(), ingest.Event{
		Op:     ingest.EventCreate,
		Label:  "Team",
		Entity: teamEntity(),
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("UpsertNode"); n != 0 {
		t.Errorf("UpsertNode calls = %d, want 0 when the hook policy disables creates", n)
	}
}

func TestHook_StrictUpdateSkipsUnknownEntity(t *testing.T) {
	t.Parallel()

	c, g, _, _ := newCoordinator()
	h := ingest.NewHook(c,
		mapResolver(map[string]*entity.Config{"Team": teamConfig()}),
		ingest.WithMissingIsCreate(false),
	)

	err := h.Handle(context.Background(), ingest.Event{
		Op:     ingest.EventUpdate,
		Label:  "Team",
		Entity: teamEntity(),
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("GetNode"); n != 1 {
		t.Errorf("GetNode calls = %d, want 1 existence probe", n)
	}
	if n := g.CallCount("UpsertNode"); n != 0 {
		t.Errorf("UpsertNode calls = %d, want 0 for an unknown entity", n)
	}
}

func TestHook_StrictUpdateAppliesKnownEntity(t *testing.T) {
	t.Parallel()

	c, g, _, _ := newCoordinator()
	g.GetNodeResult = &graph.Snapshot{Node: graph.Node{Label: "Team", ID: "t1"}}
	h := ingest.NewHook(c,
		mapResolver(map[string]*entity.Config{"Team": teamConfig()}),
		ingest.WithMissingIsCreate(false),
	)

	err := h.Handle(context.Background(), ingest.Event{
		Op:     ingest.EventUpdate,
		Label:  "Team",
		Entity: teamEntity(),
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("UpsertNode"); n != 1 {
		t.Errorf("UpsertNode calls = %d, want 1 for a known entity", n)
	}
}

func TestHook_RejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	c, _, _, _ := newCoordinator()
	h := ingest.NewHook(c, mapResolver(map[string]*entity.Config{"Team": teamConfig()}))

	err := h.Handle(context.Background(), ingest.Event{Op: "upsert", Label: "Team"})
	if !errs.IsKind(err, errs.KindInvalidInput) {
		t.Errorf("error kind = %v, want invalid input", errs.KindOf(err))
	}
}

func TestHook_ResolverFailureWraps(t *testing.T) {
	t.Parallel()

	c, _, _, _ := newCoordinator()
	h := ingest.NewHook(c, mapResolver(nil))

	err := h.Handle(context.Background(), ingest.Event{
		Op:     ingest.EventCreate,
		Label:  "Phantom",
		Entity: ingest.Entity{"id": "p1"},
	})
	if !errs.IsKind(err, errs.KindConfiguration) {
		t.Errorf("error kind = %v, want configuration", errs.KindOf(err))
	}
}

func TestHook_AsyncProcessesInBackground(t *testing.T) {
	t.Parallel()

	c, g, _, _ := newCoordinator()
	h := ingest.NewHook(c,
		mapResolver(map[string]*entity.Config{"Team": teamConfig()}),
		ingest.WithQueue(4, 2),
	)
	ctx := context.Background()
	h.Start(ctx)
	defer h.Stop()

	err := h.Handle(ctx, ingest.Event{
		Op:     ingest.EventCreate,
		Label:  "Team",
		Entity: teamEntity(),
	})
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for g.CallCount("UpsertNode") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := g.CallCount("UpsertNode"); n != 1 {
		t.Errorf("UpsertNode calls = %d, want 1 processed by a worker", n)
	}
}

func TestHook_FullQueueProcessesInline(t *testing.T) {
	t.Parallel()

	c, g, _, _ := newCoordinator()
	// Workers never started, so the first event stays queued and the second
	// overflows to the caller's goroutine.
	h := ingest.NewHook(c,
		mapResolver(map[string]*entity.Config{"Team": teamConfig()}),
		ingest.WithQueue(1, 1),
	)
	ctx := context.Background()

	ev := ingest.Event{Op: ingest.EventCreate, Label: "Team", Entity: teamEntity()}
	if err := h.Handle(ctx, ev); err != nil {
		t.Fatalf("first Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("UpsertNode"); n != 0 {
		t.Fatalf("UpsertNode calls = %d, want 0 while the event sits queued", n)
	}

	if err := h.Handle(ctx, ev); err != nil {
		t.Fatalf("second Handle() unexpected error: %v", err)
	}
	if n := g.CallCount("UpsertNode"); n != 1 {
		t.Errorf("UpsertNode calls = %d, want 1 processed inline on overflow", n)
	}
}

func TestHook_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	c, _, _, _ := newCoordinator()
	h := ingest.NewHook(c,
		mapResolver(map[string]*entity.Config{"Team": teamConfig()}),
		ingest.WithQueue(1, 1),
	)
	h.Start(context.Background())
	h.Stop()
	h.Stop()
}
