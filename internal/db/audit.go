package db

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEntry is the input to AppendAudit. Old and New are marshalled to
// JSON; nil values are stored as SQL NULL.
type AuditEntry struct {
	Actor    string
	Action   string
	Table    string
	RecordID string
	Old      any
	New      any
	At       time.Time
}

// AppendAudit writes one audit row.
func AppendAudit(db *gorm.DB, e AuditEntry) error {
	row := AuditLog{
		CreatedAt: e.At.UTC(),
		Actor:     e.Actor,
		Action:    e.Action,
		Table:     e.Table,
		RecordID:  e.RecordID,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	var err error
	if row.OldData, err = jsonOrNil(e.Old); err != nil {
		return err
	}
	if row.NewData, err = jsonOrNil(e.New); err != nil {
		return err
	}
	return db.Create(&row).Error
}

// ListAuditLogs returns the newest rows first. limit is clamped to [1, 500].
func ListAuditLogs(db *gorm.DB, limit int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	var rows []AuditLog
	err := db.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func jsonOrNil(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
