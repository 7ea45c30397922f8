// Package snapshot defines the executive metrics snapshot shared by the
// metrics store, the change feed, the admin editor and the dashboard.
package snapshot

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnknownField is returned when a caller names a scalar field that the
// snapshot does not carry.
var ErrUnknownField = errors.New("unknown snapshot field")

// Snapshot is one row of aggregate metrics plus its open adjustment maps.
// The maps have no fixed schema; known keys are filled with defaults by
// Normalize but unknown keys are kept as-is.
type Snapshot struct {
	ID        uint      `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MealsDelivered       int64   `json:"meals_delivered"`
	PeopleServed         int64   `json:"people_served"`
	CostPerMeal          float64 `json:"cost_per_meal"`
	ProgramEfficiency    float64 `json:"program_efficiency"`
	Revenue              float64 `json:"revenue"`
	Expenses             float64 `json:"expenses"`
	Reserves             float64 `json:"reserves"`
	CashPosition         float64 `json:"cash_position"`
	CoverageGovernorates int64   `json:"coverage_governorates"`

	ScenarioFactors  map[string]float64 `json:"scenario_factors"`
	ChartDeltas      map[string]float64 `json:"chart_deltas"`
	GlobalIndicators map[string]float64 `json:"global_indicators"`
}

// Field describes one scalar measure of the snapshot.
type Field struct {
	Key     string
	Label   string
	Integer bool
}

// Fields lists the scalar measures in display order.
var Fields = []Field{
	{Key: "people_served", Label: "People Served", Integer: true},
	{Key: "meals_delivered", Label: "Meals Delivered", Integer: true},
	{Key: "cost_per_meal", Label: "Cost Per Meal (EGP)"},
	{Key: "program_efficiency", Label: "Program Efficiency (%)"},
	{Key: "revenue", Label: "Revenue (EGP)"},
	{Key: "expenses", Label: "Expenses (EGP)"},
	{Key: "reserves", Label: "Reserves (EGP)"},
	{Key: "cash_position", Label: "Cash Position (EGP)"},
	{Key: "coverage_governorates", Label: "Coverage (Governorates)", Integer: true},
}

// LookupField returns the descriptor for key.
func LookupField(key string) (Field, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Value returns the scalar named key as a float64.
func (s Snapshot) Value(key string) (float64, bool) {
	switch key {
	case "meals_delivered":
		return float64(s.MealsDelivered), true
	case "people_served":
		return float64(s.PeopleServed), true
	case "cost_per_meal":
		return s.CostPerMeal, true
	case "program_efficiency":
		return s.ProgramEfficiency, true
	case "revenue":
		return s.Revenue, true
	case "expenses":
		return s.Expenses, true
	case "reserves":
		return s.Reserves, true
	case "cash_position":
		return s.CashPosition, true
	case "coverage_governorates":
		return float64(s.CoverageGovernorates), true
	}
	return 0, false
}

// Clone returns a deep copy so subscribers never share map storage.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.ScenarioFactors = cloneMap(s.ScenarioFactors)
	out.ChartDeltas = cloneMap(s.ChartDeltas)
	out.GlobalIndicators = cloneMap(s.GlobalIndicators)
	return out
}

// Partial returns a partial that, applied to any snapshot, reproduces s
// (a whole-row replacement).
func (s Snapshot) Partial() Partial {
	id := s.ID
	p := Partial{
		MealsDelivered:       ptr(s.MealsDelivered),
		PeopleServed:         ptr(s.PeopleServed),
		CostPerMeal:          ptr(s.CostPerMeal),
		ProgramEfficiency:    ptr(s.ProgramEfficiency),
		Revenue:              ptr(s.Revenue),
		Expenses:             ptr(s.Expenses),
		Reserves:             ptr(s.Reserves),
		CashPosition:         ptr(s.CashPosition),
		CoverageGovernorates: ptr(s.CoverageGovernorates),
		ScenarioFactors:      cloneMap(s.ScenarioFactors),
		ChartDeltas:          cloneMap(s.ChartDeltas),
		GlobalIndicators:     cloneMap(s.GlobalIndicators),
	}
	if id != 0 {
		p.ID = &id
	}
	return p
}

// Default is the built-in snapshot used whenever the store has nothing to
// offer, so forms and dashboards are never empty.
func Default() Snapshot {
	return Normalize(Snapshot{
		PeopleServed:         4960000,
		MealsDelivered:       367490721,
		CostPerMeal:          6.36,
		ProgramEfficiency:    83,
		Revenue:              2200000000,
		Expenses:             2316000000,
		Reserves:             731200000,
		CashPosition:         459800000,
		CoverageGovernorates: 27,
	})
}

func toInt(f float64) int64 {
	return int64(math.Round(f))
}

func ptr[T any](v T) *T { return &v }

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (f Field) String() string {
	return fmt.Sprintf("%s (%s)", f.Label, f.Key)
}
