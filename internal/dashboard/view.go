package dashboard

import (
	"sort"
	"strconv"
	"time"

	"execdash/internal/format"
	"execdash/internal/scenario"
	"execdash/internal/snapshot"
)

// Card is one metric tile. TestID is stable across releases so UI tests
// and scrapers can find a value without matching on its text.
type Card struct {
	TestID  string       `json:"test_id"`
	Label   string       `json:"label"`
	Value   float64      `json:"value"`
	Display string       `json:"display"`
	Full    string       `json:"full"`
	Delta   float64      `json:"delta"`
	Trend   format.Trend `json:"trend"`
	Arrow   string       `json:"arrow"`
}

// Indicator is one row of the global signals panel.
type Indicator struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// View is everything the dashboard shows, derived from one snapshot.
type View struct {
	Cards      []Card              `json:"cards"`
	Indicators []Indicator         `json:"indicators"`
	Factors    scenario.Factors    `json:"factors"`
	Projection scenario.Projection `json:"projection"`
	SnapshotID uint                `json:"snapshot_id"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Card returns the card with the given test id.
func (v View) Card(testID string) (Card, bool) {
	for _, c := range v.Cards {
		if c.TestID == testID {
			return c, true
		}
	}
	return Card{}, false
}

const totalGovernorates = 27

type cardSpec struct {
	testID   string
	label    string
	value    func(snapshot.Snapshot) float64
	display  func(float64) string
	deltaKey string
}

func currency(v float64) string { return format.Currency(v, true) }
func percent(v float64) string  { return format.Percentage(v, 1) }

var cardSpecs = []cardSpec{
	{"people-served-value", "Lives Impacted", func(s snapshot.Snapshot) float64 { return float64(s.PeopleServed) }, format.Number, "demandChange"},
	{"meals-delivered-value", "Meals Delivered", func(s snapshot.Snapshot) float64 { return float64(s.MealsDelivered) }, format.Number, "mealsChange"},
	{"cost-per-meal-value", "Cost Per Meal", func(s snapshot.Snapshot) float64 { return s.CostPerMeal }, currency, "costChange"},
	{"program-efficiency-value", "Program Efficiency", func(s snapshot.Snapshot) float64 { return s.ProgramEfficiency }, percent, "efficiencyChange"},
	{"revenue-value", "Revenue", func(s snapshot.Snapshot) float64 { return s.Revenue }, currency, "revenueChange"},
	{"expenses-value", "Expenses", func(s snapshot.Snapshot) float64 { return s.Expenses }, currency, ""},
	{"reserves-value", "Reserves", func(s snapshot.Snapshot) float64 { return s.Reserves }, currency, "reserveChange"},
	{"cash-position-value", "Cash Position", func(s snapshot.Snapshot) float64 { return s.CashPosition }, currency, "cashChange"},
	{"coverage-value", "Coverage", func(s snapshot.Snapshot) float64 { return float64(s.CoverageGovernorates) }, coverage, ""},
	{"operating-margin-value", "Operating Margin", operatingMargin, percent, ""},
}

var indicatorLabels = map[string]string{
	"egyptInflation":      "Egypt Inflation",
	"egyptCurrency":       "EGP per USD",
	"egyptFoodInsecurity": "Egypt Food Insecurity",
	"globalInflation":     "Global Inflation",
	"globalFoodPrices":    "Global Food Prices",
	"emergingMarketRisk":  "Emerging Market Risk",
}

// BuildView derives the full view from s. It has no state: every call
// starts from scratch.
func BuildView(s snapshot.Snapshot) View {
	s = snapshot.Normalize(s)

	v := View{
		Cards:      make([]Card, 0, len(cardSpecs)),
		SnapshotID: s.ID,
		UpdatedAt:  s.UpdatedAt,
	}
	for _, spec := range cardSpecs {
		val := spec.value(s)
		delta := s.ChartDeltas[spec.deltaKey]
		trend := format.TrendOf(delta)
		v.Cards = append(v.Cards, Card{
			TestID:  spec.testID,
			Label:   spec.label,
			Value:   val,
			Display: spec.display(val),
			Full:    format.Simple(val),
			Delta:   delta,
			Trend:   trend,
			Arrow:   trend.Arrow(),
		})
	}

	for _, key := range indicatorKeys(s.GlobalIndicators) {
		val := s.GlobalIndicators[key]
		label, ok := indicatorLabels[key]
		if !ok {
			label = key
		}
		display := format.Percentage(val, 1)
		if key == "egyptCurrency" {
			display = strconv.FormatFloat(val, 'f', 2, 64)
		}
		v.Indicators = append(v.Indicators, Indicator{Key: key, Label: label, Value: val, Display: display})
	}

	v.Factors = scenario.FactorsFromMap(s.ScenarioFactors)
	v.Projection = scenario.Project(s, v.Factors)
	return v
}

// known keys in display order, then the rest sorted
func indicatorKeys(m map[string]float64) []string {
	keys := append([]string(nil), snapshot.GlobalIndicatorKeys...)
	var extra []string
	for k := range m {
		if _, known := snapshot.GlobalIndicatorDefaults[k]; !known {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func coverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64) + "/" + strconv.Itoa(totalGovernorates)
}

func operatingMargin(s snapshot.Snapshot) float64 {
	if s.Revenue == 0 {
		return 0
	}
	return (s.Revenue - s.Expenses) / s.Revenue * 100
}
