package snapshot

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ScenarioFactorKeys are the adjustment factors the dashboard knows about.
var ScenarioFactorKeys = []string{
	"economicGrowth",
	"inflationRate",
	"donorSentiment",
	"operationalEfficiency",
	"foodPrices",
	"unemploymentRate",
	"corporateCSR",
	"governmentSupport",
	"exchangeRateEGP",
	"logisticsCostIndex",
	"regionalShock",
}

// ChartDeltaKeys are the trend annotations shown next to metric cards.
var ChartDeltaKeys = []string{
	"revenueChange",
	"demandChange",
	"costChange",
	"efficiencyChange",
	"reserveChange",
	"cashChange",
	"mealsChange",
}

// GlobalIndicatorDefaults holds the baseline macro indicators.
var GlobalIndicatorDefaults = map[string]float64{
	"egyptInflation":      35.7,
	"egyptCurrency":       47.5,
	"egyptFoodInsecurity": 17.2,
	"globalInflation":     6.8,
	"globalFoodPrices":    23.4,
	"emergingMarketRisk":  72.3,
}

// GlobalIndicatorKeys lists GlobalIndicatorDefaults in display order.
var GlobalIndicatorKeys = []string{
	"egyptInflation",
	"egyptCurrency",
	"egyptFoodInsecurity",
	"globalInflation",
	"globalFoodPrices",
	"emergingMarketRisk",
}

// Normalize fills every known map key that is missing. Existing values and
// unknown keys are left alone.
func Normalize(s Snapshot) Snapshot {
	out := s.Clone()
	if out.ScenarioFactors == nil {
		out.ScenarioFactors = make(map[string]float64, len(ScenarioFactorKeys))
	}
	for _, k := range ScenarioFactorKeys {
		if _, ok := out.ScenarioFactors[k]; !ok {
			out.ScenarioFactors[k] = 0
		}
	}
	if out.ChartDeltas == nil {
		out.ChartDeltas = make(map[string]float64, len(ChartDeltaKeys))
	}
	for _, k := range ChartDeltaKeys {
		if _, ok := out.ChartDeltas[k]; !ok {
			out.ChartDeltas[k] = 0
		}
	}
	if out.GlobalIndicators == nil {
		out.GlobalIndicators = make(map[string]float64, len(GlobalIndicatorDefaults))
	}
	for k, v := range GlobalIndicatorDefaults {
		if _, ok := out.GlobalIndicators[k]; !ok {
			out.GlobalIndicators[k] = v
		}
	}
	return out
}

// ToNumber coerces a loosely typed JSON value to a finite float64, falling
// back when the value is missing or not numeric.
func ToNumber(v any, fallback float64) float64 {
	if n, ok := number(v); ok {
		return n
	}
	return fallback
}

// MapFromJSON converts a stored JSON object into a numeric map, dropping
// values that cannot be coerced.
func MapFromJSON(m map[string]any) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if n, ok := number(v); ok {
			out[k] = n
		}
	}
	return out
}

// MapToJSON is the inverse of MapFromJSON.
func MapToJSON(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
