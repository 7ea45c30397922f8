// Package store is the persistent metrics store. It keeps the current
// executive metrics snapshot (and, in append mode, its history) in the
// executive_metrics table and announces every successful write on the
// change feed.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"execdash/internal/config"
	dbpkg "execdash/internal/db"
	"execdash/internal/feed"
	"execdash/internal/logger"
	"execdash/internal/snapshot"
	"execdash/internal/telemetry"
)

var (
	// ErrNotFound means the store holds no snapshot yet.
	ErrNotFound = errors.New("no metrics snapshot stored")
	// ErrTransport wraps every other persistence failure.
	ErrTransport = errors.New("metrics store unavailable")
)

// Clock supplies write timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Store reads and writes metrics snapshots.
type Store struct {
	db    *gorm.DB
	clock Clock
	pub   feed.Publisher
	mode  string
	log   *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPublisher sets where change notifications go after a commit.
func WithPublisher(p feed.Publisher) Option {
	return func(s *Store) { s.pub = p }
}

// WithWriteMode selects config.WriteModeUpsert or config.WriteModeAppend.
func WithWriteMode(mode string) Option {
	return func(s *Store) {
		if mode == config.WriteModeAppend || mode == config.WriteModeUpsert {
			s.mode = mode
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns a store over db. Without options it uses the wall clock,
// upsert mode and publishes nowhere.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		clock: systemClock{},
		mode:  config.WriteModeUpsert,
		log:   logger.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "MetricsStore")
	return s
}

// GetLatest returns the snapshot with the greatest updated_at.
func (s *Store) GetLatest(ctx context.Context) (snapshot.Snapshot, error) {
	var row dbpkg.ExecutiveMetrics
	err := s.db.WithContext(ctx).Order("updated_at DESC, id DESC").Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		telemetry.StoreOps.WithLabelValues("get_latest", "not_found").Inc()
		return snapshot.Snapshot{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	case err != nil:
		telemetry.StoreOps.WithLabelValues("get_latest", "error").Inc()
		return snapshot.Snapshot{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	telemetry.StoreOps.WithLabelValues("get_latest", "ok").Inc()
	return row.Snapshot(), nil
}

// Upsert stores p as a whole row and returns what was stored. Fields p
// leaves unset take their zero value (map sections keep their known-key
// defaults), so callers wanting a merge send the full merged view.
//
// The stored updated_at is strictly later than that of any row already in
// the table, even when the clock goes backwards.
func (s *Store) Upsert(ctx context.Context, p snapshot.Partial) (snapshot.Snapshot, error) {
	var (
		stored   snapshot.Snapshot
		previous *snapshot.Snapshot
		action   = "INSERT"
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()

		var latest dbpkg.ExecutiveMetrics
		err := tx.Order("updated_at DESC, id DESC").Take(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			if !now.After(latest.UpdatedAt) {
				now = latest.UpdatedAt.Add(time.Microsecond)
			}
		}

		merged := p.ApplyTo(snapshot.Normalize(snapshot.Snapshot{}))
		merged.UpdatedAt = now
		row := dbpkg.MetricsRow(merged)

		if s.mode == config.WriteModeUpsert && p.ID != nil {
			var existing dbpkg.ExecutiveMetrics
			err := tx.Take(&existing, *p.ID).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return err
			default:
				prev := existing.Snapshot()
				previous = &prev
				row.CreatedAt = existing.CreatedAt
				if err := tx.Save(&row).Error; err != nil {
					return err
				}
				action = "UPDATE"
				stored = row.Snapshot()
				return nil
			}
		}

		row.ID = 0
		row.CreatedAt = now
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		stored = row.Snapshot()
		return nil
	})
	if err != nil {
		telemetry.StoreOps.WithLabelValues("upsert", "error").Inc()
		s.log.Error("metrics write failed", "error", err)
		return snapshot.Snapshot{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	telemetry.StoreOps.WithLabelValues("upsert", "ok").Inc()

	// The write is durable from here on; what follows is best effort.
	bg := context.WithoutCancel(ctx)
	if s.pub != nil {
		if err := s.pub.Publish(bg, stored); err != nil {
			s.log.Warn("change notification failed", "id", stored.ID, "error", err)
		}
	}
	s.audit(bg, action, previous, stored)

	return stored, nil
}

func (s *Store) audit(ctx context.Context, action string, previous *snapshot.Snapshot, stored snapshot.Snapshot) {
	entry := dbpkg.AuditEntry{
		Actor:    ActorFrom(ctx),
		Action:   action,
		Table:    dbpkg.ExecutiveMetrics{}.TableName(),
		RecordID: strconv.FormatUint(uint64(stored.ID), 10),
		New:      stored,
		At:       stored.UpdatedAt,
	}
	if previous != nil {
		entry.Old = *previous
	}
	if err := dbpkg.AppendAudit(s.db.WithContext(ctx), entry); err != nil {
		s.log.Warn("audit write failed", "id", stored.ID, "error", err)
	}
}

// History returns snapshots updated at or after since, newest first.
// limit is clamped to [1, 1000].
func (s *Store) History(ctx context.Context, since time.Time, limit int) ([]snapshot.Snapshot, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var rows []dbpkg.ExecutiveMetrics
	err := s.db.WithContext(ctx).
		Where("updated_at >= ?", since.UTC()).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		telemetry.StoreOps.WithLabelValues("history", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	telemetry.StoreOps.WithLabelValues("history", "ok").Inc()

	out := make([]snapshot.Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Snapshot())
	}
	return out, nil
}

// Seed stores the default snapshot when the table is empty. It reports
// whether a row was written.
func (s *Store) Seed(ctx context.Context) (snapshot.Snapshot, bool, error) {
	latest, err := s.GetLatest(ctx)
	if err == nil {
		return latest, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return snapshot.Snapshot{}, false, err
	}
	stored, err := s.Upsert(ctx, snapshot.Default().Partial())
	if err != nil {
		return snapshot.Snapshot{}, false, err
	}
	return stored, true, nil
}
