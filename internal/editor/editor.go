// Package editor implements the admin editing flow: load the current
// snapshot (or the defaults), apply operator edits on top of it and write
// the whole merged view back to the store.
package editor

import (
	"context"
	"errors"
	"sync"

	"execdash/internal/feed"
	"execdash/internal/logger"
	"execdash/internal/snapshot"
	"execdash/internal/store"
	"execdash/internal/telemetry"
)

// MetricsStore is the part of store.Store the editor needs.
type MetricsStore interface {
	GetLatest(ctx context.Context) (snapshot.Snapshot, error)
	Upsert(ctx context.Context, p snapshot.Partial) (snapshot.Snapshot, error)
}

type Status string

const (
	StatusEmpty        Status = ""
	StatusLoaded       Status = "loaded"
	StatusDemo         Status = "demo"
	StatusSaved        Status = "saved"
	StatusSavedLocally Status = "saved_locally"
)

// Result is the outcome of a Submit. It never carries an error: a failed
// write degrades to StatusSavedLocally and the merged view is kept.
type Result struct {
	Snapshot snapshot.Snapshot `json:"snapshot"`
	Status   Status            `json:"status"`
	Message  string            `json:"message"`
}

// Editor holds one editing session.
type Editor struct {
	store MetricsStore
	log   *logger.Logger

	mu      sync.Mutex
	current snapshot.Snapshot
	loaded  bool
	status  Status
	message string
}

func New(st MetricsStore, log *logger.Logger) *Editor {
	if log == nil {
		log = logger.Nop()
	}
	return &Editor{store: st, log: log.With("component", "AdminEditor")}
}

// Load reads the latest snapshot. When the store is empty or unreachable
// it substitutes snapshot.Default so the form always has values.
func (e *Editor) Load(ctx context.Context) snapshot.Snapshot {
	s, err := e.store.GetLatest(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case err == nil:
		e.set(s, StatusLoaded, "")
	case errors.Is(err, store.ErrNotFound):
		e.set(snapshot.Default(), StatusDemo, "No metrics stored yet; showing default values")
	default:
		e.log.Warn("loading metrics failed; using defaults", "error", err)
		e.set(snapshot.Default(), StatusDemo, "Metrics unavailable; showing default values")
	}
	e.loaded = true
	return e.current.Clone()
}

// Submit merges edits onto the last loaded snapshot and stores the result.
// If nothing was loaded yet it loads first.
func (e *Editor) Submit(ctx context.Context, edits snapshot.Partial) Result {
	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if !loaded {
		e.Load(ctx)
	}

	e.mu.Lock()
	merged := edits.ApplyTo(e.current)
	e.mu.Unlock()

	stored, err := e.store.Upsert(ctx, merged.Partial())

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.log.Warn("metrics submit failed; keeping local copy", "error", err)
		telemetry.EditorSubmits.WithLabelValues(string(StatusSavedLocally)).Inc()
		e.set(merged, StatusSavedLocally, "Saved locally; the database could not be reached")
		return Result{Snapshot: merged.Clone(), Status: e.status, Message: e.message}
	}

	telemetry.EditorSubmits.WithLabelValues(string(StatusSaved)).Inc()
	e.set(stored, StatusSaved, "Metrics updated successfully")
	return Result{Snapshot: stored.Clone(), Status: e.status, Message: e.message}
}

// Follow keeps the session's snapshot in step with writes from other
// sessions. Notifications replace the snapshot whole.
func (e *Editor) Follow(sub feed.Subscriber) feed.Unsubscribe {
	return sub.Subscribe(func(s snapshot.Snapshot) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.current = s
		e.loaded = true
	})
}

// Current returns the session's snapshot.
func (e *Editor) Current() snapshot.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

// Status returns the last soft status and its message.
func (e *Editor) Status() (Status, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.message
}

func (e *Editor) set(s snapshot.Snapshot, st Status, msg string) {
	e.current = s
	e.status = st
	e.message = msg
}
