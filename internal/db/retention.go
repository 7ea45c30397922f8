package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"execdash/internal/logger"
)

// RetentionPolicy bounds the growth of the audit log and of the snapshot
// history kept in append mode.
type RetentionPolicy struct {
	AuditRetention time.Duration
	// HistoryKeep is the number of newest snapshot rows to keep. Zero keeps
	// everything.
	HistoryKeep int
}

// RetentionResult reports how many rows one pass removed.
type RetentionResult struct {
	AuditDeleted    int64
	SnapshotsPruned int64
	SessionsExpired int64
}

// RunRetentionOnce performs a single pass of retention cleanup. The
// current snapshot is never removed. Timestamps are stored in UTC, so the
// cutoff is computed in UTC whatever zone now carries.
func RunRetentionOnce(db *gorm.DB, p RetentionPolicy, now time.Time) (RetentionResult, error) {
	var res RetentionResult

	if p.AuditRetention > 0 {
		tx := db.Where("created_at < ?", now.UTC().Add(-p.AuditRetention)).Delete(&AuditLog{})
		if tx.Error != nil {
			return res, tx.Error
		}
		res.AuditDeleted = tx.RowsAffected
	}

	tx := db.Where("expires_at < ?", now.UTC()).Delete(&Session{})
	if tx.Error != nil {
		return res, tx.Error
	}
	res.SessionsExpired = tx.RowsAffected

	if p.HistoryKeep > 0 {
		var keep []uint
		if err := db.Model(&ExecutiveMetrics{}).
			Order("updated_at DESC, id DESC").
			Limit(p.HistoryKeep).
			Pluck("id", &keep).Error; err != nil {
			return res, err
		}
		if len(keep) == p.HistoryKeep {
			tx := db.Where("id NOT IN ?", keep).Delete(&ExecutiveMetrics{})
			if tx.Error != nil {
				return res, tx.Error
			}
			res.SnapshotsPruned = tx.RowsAffected
		}
	}

	return res, nil
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day until ctx is
// cancelled.
func StartRetentionWorker(ctx context.Context, db *gorm.DB, p RetentionPolicy, log *logger.Logger) {
	log = log.With("component", "RetentionWorker")
	run := func() {
		res, err := RunRetentionOnce(db, p, time.Now().UTC())
		if err != nil {
			log.Error("retention cleanup failed", "error", err)
			return
		}
		if res.AuditDeleted > 0 || res.SnapshotsPruned > 0 || res.SessionsExpired > 0 {
			log.Info("retention cleanup completed",
				"auditDeleted", res.AuditDeleted,
				"snapshotsPruned", res.SnapshotsPruned,
				"sessionsExpired", res.SessionsExpired)
		}
	}

	go func() {
		run()

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
