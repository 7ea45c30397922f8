package snapshot

import (
	"encoding/json"
	"fmt"
)

// Partial is an edit against a snapshot. Nil scalars are left untouched;
// map entries are merged key by key onto whatever was there before.
type Partial struct {
	ID *uint `json:"id,omitempty"`

	MealsDelivered       *int64   `json:"meals_delivered,omitempty"`
	PeopleServed         *int64   `json:"people_served,omitempty"`
	CostPerMeal          *float64 `json:"cost_per_meal,omitempty"`
	ProgramEfficiency    *float64 `json:"program_efficiency,omitempty"`
	Revenue              *float64 `json:"revenue,omitempty"`
	Expenses             *float64 `json:"expenses,omitempty"`
	Reserves             *float64 `json:"reserves,omitempty"`
	CashPosition         *float64 `json:"cash_position,omitempty"`
	CoverageGovernorates *int64   `json:"coverage_governorates,omitempty"`

	ScenarioFactors  map[string]float64 `json:"scenario_factors,omitempty"`
	ChartDeltas      map[string]float64 `json:"chart_deltas,omitempty"`
	GlobalIndicators map[string]float64 `json:"global_indicators,omitempty"`
}

// IsEmpty reports whether the partial changes nothing.
func (p Partial) IsEmpty() bool {
	return p.MealsDelivered == nil && p.PeopleServed == nil && p.CostPerMeal == nil &&
		p.ProgramEfficiency == nil && p.Revenue == nil && p.Expenses == nil &&
		p.Reserves == nil && p.CashPosition == nil && p.CoverageGovernorates == nil &&
		len(p.ScenarioFactors) == 0 && len(p.ChartDeltas) == 0 && len(p.GlobalIndicators) == 0
}

// Set assigns the scalar named key. Integer fields are rounded.
func (p *Partial) Set(key string, v float64) error {
	switch key {
	case "meals_delivered":
		p.MealsDelivered = ptr(toInt(v))
	case "people_served":
		p.PeopleServed = ptr(toInt(v))
	case "cost_per_meal":
		p.CostPerMeal = ptr(v)
	case "program_efficiency":
		p.ProgramEfficiency = ptr(v)
	case "revenue":
		p.Revenue = ptr(v)
	case "expenses":
		p.Expenses = ptr(v)
	case "reserves":
		p.Reserves = ptr(v)
	case "cash_position":
		p.CashPosition = ptr(v)
	case "coverage_governorates":
		p.CoverageGovernorates = ptr(toInt(v))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return nil
}

// ApplyTo returns base with the partial merged on top. base is not
// modified.
func (p Partial) ApplyTo(base Snapshot) Snapshot {
	out := base.Clone()
	if p.ID != nil {
		out.ID = *p.ID
	}
	if p.MealsDelivered != nil {
		out.MealsDelivered = *p.MealsDelivered
	}
	if p.PeopleServed != nil {
		out.PeopleServed = *p.PeopleServed
	}
	if p.CostPerMeal != nil {
		out.CostPerMeal = *p.CostPerMeal
	}
	if p.ProgramEfficiency != nil {
		out.ProgramEfficiency = *p.ProgramEfficiency
	}
	if p.Revenue != nil {
		out.Revenue = *p.Revenue
	}
	if p.Expenses != nil {
		out.Expenses = *p.Expenses
	}
	if p.Reserves != nil {
		out.Reserves = *p.Reserves
	}
	if p.CashPosition != nil {
		out.CashPosition = *p.CashPosition
	}
	if p.CoverageGovernorates != nil {
		out.CoverageGovernorates = *p.CoverageGovernorates
	}
	out.ScenarioFactors = mergeMap(out.ScenarioFactors, p.ScenarioFactors)
	out.ChartDeltas = mergeMap(out.ChartDeltas, p.ChartDeltas)
	out.GlobalIndicators = mergeMap(out.GlobalIndicators, p.GlobalIndicators)
	return out
}

func mergeMap(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]float64, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// DecodePartial parses a JSON edit. Values are coerced with ToNumber so
// numeric strings and booleans are accepted; nulls are treated as absent.
// The camelCase section names used by older clients (scenarioFactors,
// chartData, globalIndicators and top-level chart delta keys such as
// revenueChange) are accepted as aliases.
func DecodePartial(raw []byte) (Partial, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return Partial{}, err
	}
	return PartialFromMap(body)
}

// PartialFromMap builds a partial from an already decoded JSON object.
func PartialFromMap(body map[string]any) (Partial, error) {
	var p Partial
	if v, ok := body["id"]; ok && v != nil {
		if n, ok := number(v); ok && n > 0 {
			id := uint(n)
			p.ID = &id
		}
	}
	for _, f := range Fields {
		v, ok := body[f.Key]
		if !ok || v == nil {
			continue
		}
		n, ok := number(v)
		if !ok {
			return Partial{}, fmt.Errorf("field %s: not a number", f.Key)
		}
		_ = p.Set(f.Key, n)
	}

	p.ScenarioFactors = sectionFrom(body, "scenario_factors", "scenarioFactors")
	p.ChartDeltas = sectionFrom(body, "chart_deltas", "chartData")
	p.GlobalIndicators = sectionFrom(body, "global_indicators", "globalIndicators")

	for _, k := range ChartDeltaKeys {
		if v, ok := body[k]; ok && v != nil {
			if n, ok := number(v); ok {
				if p.ChartDeltas == nil {
					p.ChartDeltas = map[string]float64{}
				}
				p.ChartDeltas[k] = n
			}
		}
	}
	return p, nil
}

func sectionFrom(body map[string]any, keys ...string) map[string]float64 {
	var out map[string]float64
	for _, key := range keys {
		raw, ok := body[key].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range raw {
			n, ok := number(v)
			if !ok {
				continue
			}
			if out == nil {
				out = make(map[string]float64, len(raw))
			}
			out[k] = n
		}
	}
	return out
}
