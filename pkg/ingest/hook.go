package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/cast"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
)

// EventOp names a host entity lifecycle operation.
type EventOp string

// Host entity lifecycle operations delivered to the auto-sync hook.
const (
	EventCreate EventOp = "create"
	EventUpdate EventOp = "update"
	EventDelete EventOp = "delete"
)

// Event is one host entity change. Delete events only need the "id" key of
// Entity populated.
type Event struct {
	Op     EventOp
	Label  string
	Entity Entity
}

// ConfigResolver resolves an entity label to its configuration. The engine
// wires this to discovery; tests use a map lookup.
type ConfigResolver func(ctx context.Context, label string) (*entity.Config, error)

// Hook subscribes the coordinator to host entity events.
//
// Without a queue every event is processed on the caller's goroutine. With
// [WithQueue] events are buffered and handled by background workers; callers
// never block on store writes, and a full queue degrades to inline
// processing rather than dropping the event. Events still queued when
// [Hook.Stop] returns are discarded — hosts that need delivery redeliver,
// and the coordinator's upsert semantics make replays harmless.
//
// Per-operation sync flags come from the hook-wide policy and each entity's
// configured policy: an event is skipped silently unless both allow its
// operation.
type Hook struct {
	coord   *Coordinator
	resolve ConfigResolver

	policy          entity.SyncPolicy
	missingIsCreate bool

	queue    chan Event
	workers  int
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// HookOption configures a [Hook].
type HookOption func(*Hook)

// WithQueue buffers up to size events and processes them on workers
// background goroutines started by [Hook.Start]. Values below one fall back
// to one.
func WithQueue(size, workers int) HookOption {
	return func(h *Hook) {
		if size < 1 {
			size = 1
		}
		if workers < 1 {
			workers = 1
		}
		h.queue = make(chan Event, size)
		h.workers = workers
	}
}

// WithPolicy sets the hook-wide sync policy consulted before each entity's
// own policy. The default allows every operation.
func WithPolicy(p entity.SyncPolicy) HookOption {
	return func(h *Hook) {
		h.policy = p
	}
}

// WithMissingIsCreate controls update events for entities the graph store
// has never seen. When true (the default) the update runs as an upsert and
// creates the node. When false the event is skipped with a warning.
func WithMissingIsCreate(allow bool) HookOption {
	return func(h *Hook) {
		h.missingIsCreate = allow
	}
}

// NewHook returns a Hook dispatching events through coord, resolving entity
// configurations via resolve.
func NewHook(coord *Coordinator, resolve ConfigResolver, opts ...HookOption) *Hook {
	h := &Hook{
		coord:           coord,
		resolve:         resolve,
		policy:          entity.DefaultSyncPolicy(),
		missingIsCreate: true,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the background workers. A no-op without [WithQueue].
// The workers run until [Hook.Stop] is called or ctx is cancelled.
func (h *Hook) Start(ctx context.Context) {
	if h.queue == nil {
		return
	}
	for i := 0; i < h.workers; i++ {
		h.wg.Add(1)
		go h.worker(ctx)
	}
}

// Stop halts the workers and waits for in-flight events to finish. Safe to
// call multiple times.
func (h *Hook) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

// Handle dispatches one event. In queued mode it returns as soon as the
// event is buffered; processing errors are then logged by the worker rather
// than returned.
func (h *Hook) Handle(ctx context.Context, ev Event) error {
	if h.queue == nil {
		return h.process(ctx, ev)
	}
	select {
	case h.queue <- ev:
		return nil
	default:
		slog.WarnContext(ctx, "auto-sync queue full, processing inline",
			"op", ev.Op, "label", ev.Label)
		return h.process(ctx, ev)
	}
}

func (h *Hook) worker(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev := <-h.queue:
			if err := h.process(ctx, ev); err != nil {
				slog.WarnContext(ctx, "auto-sync event failed",
					"op", ev.Op, "label", ev.Label, "error", err)
			}
		}
	}
}

func (h *Hook) process(ctx context.Context, ev Event) error {
	cfg, err := h.resolve(ctx, ev.Label)
	if err != nil {
		return errs.Wrapf(errs.KindConfiguration, "autosync", err, "resolve configuration for %s", ev.Label)
	}

	switch ev.Op {
	case EventCreate:
		if !h.policy.Create || !cfg.AutoSync.Create {
			h.skip(ctx, ev)
			return nil
		}
		_, err = h.coord.Sync(ctx, cfg, ev.Entity)
	case EventUpdate:
		if !h.policy.Update || !cfg.AutoSync.Update {
			h.skip(ctx, ev)
			return nil
		}
		if !h.missingIsCreate {
			id := cast.ToString(ev.Entity["id"])
			known, exErr := h.coord.Exists(ctx, cfg, id)
			if exErr != nil {
				return exErr
			}
			if !known {
				slog.WarnContext(ctx, "auto-sync update for unknown entity skipped",
					"label", ev.Label, "id", id)
				return nil
			}
		}
		_, err = h.coord.Sync(ctx, cfg, ev.Entity)
	case EventDelete:
		if !h.policy.Delete || !cfg.AutoSync.Delete {
			h.skip(ctx, ev)
			return nil
		}
		_, err = h.coord.Remove(ctx, cfg, cast.ToString(ev.Entity["id"]))
	default:
		return errs.Newf(errs.KindInvalidInput, "autosync", "unknown event operation %q", ev.Op)
	}
	return err
}

func (h *Hook) skip(ctx context.Context, ev Event) {
	slog.DebugContext(ctx, "auto-sync disabled for operation, event skipped",
		"op", ev.Op, "label", ev.Label)
}
