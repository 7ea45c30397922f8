// Package scenario projects the executive metrics under a set of
// macro-economic adjustment factors and stores named factor sets.
package scenario

import (
	"math"

	"execdash/internal/snapshot"
)

// Factors are the adjustment inputs, each a signed step on the dashboard
// slider (0 means "as today").
type Factors struct {
	EconomicGrowth        float64 `json:"economicGrowth"`
	InflationRate         float64 `json:"inflationRate"`
	DonorSentiment        float64 `json:"donorSentiment"`
	OperationalEfficiency float64 `json:"operationalEfficiency"`
	FoodPrices            float64 `json:"foodPrices"`
	UnemploymentRate      float64 `json:"unemploymentRate"`
	CorporateCSR          float64 `json:"corporateCSR"`
	GovernmentSupport     float64 `json:"governmentSupport"`
	ExchangeRateEGP       float64 `json:"exchangeRateEGP"`
	LogisticsCostIndex    float64 `json:"logisticsCostIndex"`
	RegionalShock         float64 `json:"regionalShock"`
}

// FactorsFromMap reads the known keys of m; missing keys are zero.
func FactorsFromMap(m map[string]float64) Factors {
	return Factors{
		EconomicGrowth:        m["economicGrowth"],
		InflationRate:         m["inflationRate"],
		DonorSentiment:        m["donorSentiment"],
		OperationalEfficiency: m["operationalEfficiency"],
		FoodPrices:            m["foodPrices"],
		UnemploymentRate:      m["unemploymentRate"],
		CorporateCSR:          m["corporateCSR"],
		GovernmentSupport:     m["governmentSupport"],
		ExchangeRateEGP:       m["exchangeRateEGP"],
		LogisticsCostIndex:    m["logisticsCostIndex"],
		RegionalShock:         m["regionalShock"],
	}
}

// Map returns f keyed the way snapshot.ScenarioFactorKeys names them.
func (f Factors) Map() map[string]float64 {
	return map[string]float64{
		"economicGrowth":        f.EconomicGrowth,
		"inflationRate":         f.InflationRate,
		"donorSentiment":        f.DonorSentiment,
		"operationalEfficiency": f.OperationalEfficiency,
		"foodPrices":            f.FoodPrices,
		"unemploymentRate":      f.UnemploymentRate,
		"corporateCSR":          f.CorporateCSR,
		"governmentSupport":     f.GovernmentSupport,
		"exchangeRateEGP":       f.ExchangeRateEGP,
		"logisticsCostIndex":    f.LogisticsCostIndex,
		"regionalShock":         f.RegionalShock,
	}
}

// Projection is the projected state plus the changes against the base.
// Changes are percentages except EfficiencyChange, which is in points.
type Projection struct {
	MealsDelivered    int64   `json:"meals_delivered"`
	PeopleServed      int64   `json:"people_served"`
	CostPerMeal       float64 `json:"cost_per_meal"`
	ProgramEfficiency float64 `json:"program_efficiency"`
	Revenue           float64 `json:"revenue"`
	Expenses          float64 `json:"expenses"`
	Reserves          float64 `json:"reserves"`
	CashPosition      float64 `json:"cash_position"`

	RevenueChange    float64 `json:"revenueChange"`
	DemandChange     float64 `json:"demandChange"`
	CostChange       float64 `json:"costChange"`
	EfficiencyChange float64 `json:"efficiencyChange"`
	ReserveChange    float64 `json:"reserveChange"`
	CashChange       float64 `json:"cashChange"`
	MealsChange      float64 `json:"mealsChange"`
}

const (
	minEfficiency = 60
	maxEfficiency = 95
)

// Project runs the econometric model over base. Every factor feeds every
// output through a shared cross-correlation term; program efficiency is
// clamped to [60, 95] and meals are capped by what revenue plus 30% of
// reserves can pay for.
func Project(base snapshot.Snapshot, f Factors) Projection {
	economic := 1 + f.EconomicGrowth*0.05
	inflation := 1 + f.InflationRate*0.04
	unemployment := 1 + f.UnemploymentRate*0.025
	donor := 1 + f.DonorSentiment*0.06
	csr := 1 + f.CorporateCSR*0.04
	efficiency := 1 + f.OperationalEfficiency*0.03
	foodCost := 1 + f.FoodPrices*0.05
	logistics := 1 + f.LogisticsCostIndex*0.015
	gov := 1 + f.GovernmentSupport*0.03
	fx := 1 + f.ExchangeRateEGP*-0.008
	shock := 1 + f.RegionalShock*0.25

	cross := 1 + f.EconomicGrowth*0.015 +
		f.InflationRate*0.008 +
		f.UnemploymentRate*0.012 +
		f.DonorSentiment*0.01 +
		f.CorporateCSR*0.008 +
		f.OperationalEfficiency*0.012 +
		f.FoodPrices*0.006 +
		f.LogisticsCostIndex*0.004 +
		f.GovernmentSupport*0.008 +
		f.ExchangeRateEGP*0.003 +
		f.RegionalShock*0.02

	revenue := base.Revenue * economic * donor * csr * gov * fx * cross *
		(2 - unemployment*0.7) *
		(1 + f.FoodPrices*0.01) *
		(1 + f.OperationalEfficiency*0.01) *
		(1 + f.LogisticsCostIndex*0.005) *
		shock

	expenses := base.Expenses * inflation * foodCost * logistics * cross *
		(2 - efficiency) *
		(1 + f.UnemploymentRate*0.01) *
		(1 + f.DonorSentiment*0.005) *
		(1 + f.CorporateCSR*0.003) *
		(1 + f.GovernmentSupport*0.002) *
		(1 + f.ExchangeRateEGP*0.01) *
		shock

	efficiencyBonus := math.Min(f.OperationalEfficiency*2, 20)
	demandIncrease := math.Max(f.UnemploymentRate*1.5, 0)

	people := math.Round(float64(base.PeopleServed) *
		(1 + demandIncrease*0.01) * economic * donor * cross * shock *
		(1 + f.GovernmentSupport*0.01) *
		(1 + f.CorporateCSR*0.005) *
		(1 + f.OperationalEfficiency*0.008) *
		(1 + f.FoodPrices*0.003) *
		(1 + f.LogisticsCostIndex*0.002) *
		(1 + f.ExchangeRateEGP*0.001) *
		(1 + f.InflationRate*0.002))

	costPerMeal := base.CostPerMeal * inflation * foodCost * logistics * cross *
		(2 - efficiency) *
		(1 + f.ExchangeRateEGP*0.002) *
		(1 + f.RegionalShock*0.05) *
		(1 + f.UnemploymentRate*0.003) *
		(1 + f.DonorSentiment*0.001) *
		(1 + f.CorporateCSR*0.001) *
		(1 + f.GovernmentSupport*0.001) *
		(1 + f.EconomicGrowth*0.002)

	meals := math.Round(float64(base.MealsDelivered) *
		(1 + demandIncrease*0.01) * economic * donor * efficiency * cross * shock *
		(1 + f.GovernmentSupport*0.01) *
		(1 + f.CorporateCSR*0.005) *
		(1 + f.FoodPrices*0.003) *
		(1 + f.LogisticsCostIndex*0.002) *
		(1 + f.ExchangeRateEGP*0.001) *
		(1 + f.InflationRate*0.002) *
		(1 + f.UnemploymentRate*0.008))
	if costPerMeal > 0 {
		funded := math.Round((revenue + base.Reserves*0.3) / costPerMeal)
		meals = math.Min(meals, funded)
	}

	programEfficiency := base.ProgramEfficiency + efficiencyBonus -
		f.InflationRate*0.5 +
		f.OperationalEfficiency*0.8 +
		f.GovernmentSupport*0.3 +
		f.DonorSentiment*0.1 +
		f.CorporateCSR*0.2 +
		f.EconomicGrowth*0.1 +
		f.FoodPrices*0.05 -
		f.LogisticsCostIndex*0.1 -
		f.UnemploymentRate*0.2 -
		f.RegionalShock*2 -
		f.ExchangeRateEGP*0.1
	programEfficiency = math.Min(math.Max(programEfficiency, minEfficiency), maxEfficiency)

	net := revenue - expenses
	reserveAdj := 1 + f.GovernmentSupport*0.02 +
		f.DonorSentiment*0.01 +
		f.CorporateCSR*0.015 +
		f.EconomicGrowth*0.008 +
		f.OperationalEfficiency*0.005 +
		f.FoodPrices*0.002 -
		f.LogisticsCostIndex*0.003 -
		f.UnemploymentRate*0.004 -
		f.RegionalShock*0.1 -
		f.ExchangeRateEGP*0.05 -
		f.InflationRate*0.01
	reserves := math.Max(base.Reserves+net*0.3*reserveAdj, base.Reserves*0.5)

	cashAdj := 1 + f.OperationalEfficiency*0.01 +
		f.GovernmentSupport*0.01 +
		f.DonorSentiment*0.005 +
		f.CorporateCSR*0.008 +
		f.EconomicGrowth*0.004 +
		f.FoodPrices*0.001 -
		f.LogisticsCostIndex*0.002 -
		f.UnemploymentRate*0.002 -
		f.RegionalShock*0.05 -
		f.ExchangeRateEGP*0.02 -
		f.InflationRate*0.005
	cash := math.Max(base.CashPosition+net*0.15*cashAdj, base.CashPosition*0.3)

	return Projection{
		MealsDelivered:    int64(meals),
		PeopleServed:      int64(people),
		CostPerMeal:       costPerMeal,
		ProgramEfficiency: programEfficiency,
		Revenue:           revenue,
		Expenses:          expenses,
		Reserves:          reserves,
		CashPosition:      cash,

		RevenueChange:    pctChange(revenue, base.Revenue),
		DemandChange:     pctChange(people, float64(base.PeopleServed)),
		CostChange:       pctChange(costPerMeal, base.CostPerMeal),
		EfficiencyChange: programEfficiency - base.ProgramEfficiency,
		ReserveChange:    pctChange(reserves, base.Reserves),
		CashChange:       pctChange(cash, base.CashPosition),
		MealsChange:      pctChange(meals, float64(base.MealsDelivered)),
	}
}

// Deltas returns the changes keyed like snapshot.ChartDeltaKeys.
func (p Projection) Deltas() map[string]float64 {
	return map[string]float64{
		"revenueChange":    p.RevenueChange,
		"demandChange":     p.DemandChange,
		"costChange":       p.CostChange,
		"efficiencyChange": p.EfficiencyChange,
		"reserveChange":    p.ReserveChange,
		"cashChange":       p.CashChange,
		"mealsChange":      p.MealsChange,
	}
}

// zero base yields 0 rather than Inf/NaN
func pctChange(next, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (next - base) / base * 100
}
