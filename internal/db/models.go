package db

import (
	"time"

	"gorm.io/datatypes"

	"execdash/internal/snapshot"
)

// ExecutiveMetrics is one stored metrics snapshot. The current snapshot is
// the row with the latest UpdatedAt; older rows only exist in append mode.
type ExecutiveMetrics struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	// UpdatedAt is assigned by the store from its clock, never by gorm.
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index"`

	MealsDelivered       int64   `gorm:"not null;default:0"`
	PeopleServed         int64   `gorm:"not null;default:0"`
	CostPerMeal          float64 `gorm:"not null;default:0"`
	ProgramEfficiency    float64 `gorm:"not null;default:0"`
	Revenue              float64 `gorm:"not null;default:0"`
	Expenses             float64 `gorm:"not null;default:0"`
	Reserves             float64 `gorm:"not null;default:0"`
	CashPosition         float64 `gorm:"not null;default:0"`
	CoverageGovernorates int64   `gorm:"not null;default:0"`

	// Open numeric maps. No schema is enforced on the keys.
	ScenarioFactors  datatypes.JSONMap `gorm:"type:json"`
	ChartDeltas      datatypes.JSONMap `gorm:"type:json"`
	GlobalIndicators datatypes.JSONMap `gorm:"type:json"`
}

func (ExecutiveMetrics) TableName() string { return "executive_metrics" }

// Snapshot converts the row into the domain type, filling known map keys.
func (m ExecutiveMetrics) Snapshot() snapshot.Snapshot {
	return snapshot.Normalize(snapshot.Snapshot{
		ID:                   m.ID,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		MealsDelivered:       m.MealsDelivered,
		PeopleServed:         m.PeopleServed,
		CostPerMeal:          m.CostPerMeal,
		ProgramEfficiency:    m.ProgramEfficiency,
		Revenue:              m.Revenue,
		Expenses:             m.Expenses,
		Reserves:             m.Reserves,
		CashPosition:         m.CashPosition,
		CoverageGovernorates: m.CoverageGovernorates,
		ScenarioFactors:      snapshot.MapFromJSON(m.ScenarioFactors),
		ChartDeltas:          snapshot.MapFromJSON(m.ChartDeltas),
		GlobalIndicators:     snapshot.MapFromJSON(m.GlobalIndicators),
	})
}

// MetricsRow builds a row from a snapshot.
func MetricsRow(s snapshot.Snapshot) ExecutiveMetrics {
	return ExecutiveMetrics{
		ID:                   s.ID,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
		MealsDelivered:       s.MealsDelivered,
		PeopleServed:         s.PeopleServed,
		CostPerMeal:          s.CostPerMeal,
		ProgramEfficiency:    s.ProgramEfficiency,
		Revenue:              s.Revenue,
		Expenses:             s.Expenses,
		Reserves:             s.Reserves,
		CashPosition:         s.CashPosition,
		CoverageGovernorates: s.CoverageGovernorates,
		ScenarioFactors:      datatypes.JSONMap(snapshot.MapToJSON(s.ScenarioFactors)),
		ChartDeltas:          datatypes.JSONMap(snapshot.MapToJSON(s.ChartDeltas)),
		GlobalIndicators:     datatypes.JSONMap(snapshot.MapToJSON(s.GlobalIndicators)),
	}
}

// AuditLog records one mutating action with before/after payloads.
type AuditLog struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time `gorm:"index"`

	// Actor is the username (or "service:<key name>") that made the change.
	Actor    string `gorm:"size:128;index"`
	Action   string `gorm:"size:32;not null"`
	Table    string `gorm:"column:table_name;size:64;not null;index"`
	RecordID string `gorm:"size:64"`

	OldData datatypes.JSON `gorm:"type:json"`
	NewData datatypes.JSON `gorm:"type:json"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Scenario is a saved set of scenario factors.
type Scenario struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"size:1024"`

	Factors datatypes.JSONMap `gorm:"type:json"`
	// Results caches the last projection computed for these factors.
	Results datatypes.JSONMap `gorm:"type:json"`

	CreatedBy string `gorm:"size:128"`
	IsActive  bool   `gorm:"default:true"`
}

func (Scenario) TableName() string { return "scenarios" }
