// Package dashboard keeps a rendered view of the current metrics snapshot
// fresh by following the change feed.
package dashboard

import (
	"context"
	"sync"

	"execdash/internal/feed"
	"execdash/internal/logger"
	"execdash/internal/snapshot"
)

type State int

const (
	StateLoading State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// Loader reads the current snapshot.
type Loader interface {
	GetLatest(ctx context.Context) (snapshot.Snapshot, error)
}

// Renderer is one dashboard instance. It loads once on Mount, then
// replaces its snapshot wholesale on every change notification until
// Unmount.
type Renderer struct {
	loader Loader
	sub    feed.Subscriber
	log    *logger.Logger

	mu      sync.RWMutex
	state   State
	snap    snapshot.Snapshot
	view    View
	demo    bool
	mounted bool
	closed  bool
	unsub   feed.Unsubscribe

	changes chan struct{}
}

func NewRenderer(loader Loader, sub feed.Subscriber, log *logger.Logger) *Renderer {
	if log == nil {
		log = logger.Nop()
	}
	return &Renderer{
		loader:  loader,
		sub:     sub,
		log:     log.With("component", "DashboardRenderer"),
		changes: make(chan struct{}, 1),
	}
}

// Mount loads the latest snapshot, falling back to snapshot.Default on any
// error, and subscribes to the feed. A second Mount, or a Mount after
// Unmount, returns the current view without doing anything.
func (r *Renderer) Mount(ctx context.Context) View {
	r.mu.Lock()
	if r.mounted || r.closed {
		defer r.mu.Unlock()
		return r.view
	}
	r.mounted = true
	r.mu.Unlock()

	s, err := r.loader.GetLatest(ctx)
	demo := false
	if err != nil {
		r.log.Debug("initial load failed; rendering defaults", "error", err)
		s = snapshot.Default()
		demo = true
	}

	r.mu.Lock()
	r.apply(s)
	r.demo = demo
	r.state = StateReady
	view := r.view
	r.signal()
	r.mu.Unlock()

	unsub := r.sub.Subscribe(r.onChange)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		unsub()
		return view
	}
	r.unsub = unsub
	r.mu.Unlock()
	return view
}

func (r *Renderer) onChange(s snapshot.Snapshot) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.apply(s)
	r.demo = false
	r.signal()
	r.mu.Unlock()
}

// caller holds r.mu
func (r *Renderer) apply(s snapshot.Snapshot) {
	r.snap = s
	r.view = BuildView(s)
}

// caller holds r.mu
func (r *Renderer) signal() {
	if r.closed {
		return
	}
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// Changes fires (coalesced) after the view was rebuilt. It is closed by
// Unmount.
func (r *Renderer) Changes() <-chan struct{} {
	return r.changes
}

func (r *Renderer) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

func (r *Renderer) Snapshot() snapshot.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap.Clone()
}

func (r *Renderer) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Demo reports whether the view shows fallback values because nothing
// could be loaded.
func (r *Renderer) Demo() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.demo
}

// Unmount releases the feed registration. It is idempotent.
func (r *Renderer) Unmount() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	close(r.changes)
}
