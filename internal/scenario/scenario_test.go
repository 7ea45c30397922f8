package scenario_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbpkg "execdash/internal/db"
	"execdash/internal/scenario"
	"execdash/internal/snapshot"
	"execdash/internal/store"
	"execdash/internal/testutil"
)

func TestProject_NeutralFactors(t *testing.T) {
	base := snapshot.Default()
	p := scenario.Project(base, scenario.Factors{})

	assert.Equal(t, base.PeopleServed, p.PeopleServed)
	assert.Equal(t, base.MealsDelivered, p.MealsDelivered)
	assert.InDelta(t, base.CostPerMeal, p.CostPerMeal, 1e-9)
	assert.InDelta(t, base.Expenses, p.Expenses, 1e-3)
	assert.Equal(t, base.ProgramEfficiency, p.ProgramEfficiency)
	// The unemployment term leaves revenue at 1.3x the base at rest.
	assert.InDelta(t, base.Revenue*1.3, p.Revenue, 1)
	assert.InDelta(t, 30, p.RevenueChange, 1e-9)
	assert.Zero(t, p.DemandChange)
	assert.Zero(t, p.EfficiencyChange)
}

func TestProject_EfficiencyIsClamped(t *testing.T) {
	base := snapshot.Default()

	high := scenario.Project(base, scenario.Factors{OperationalEfficiency: 10, GovernmentSupport: 10})
	assert.Equal(t, float64(95), high.ProgramEfficiency)

	low := scenario.Project(base, scenario.Factors{RegionalShock: 20})
	assert.Equal(t, float64(60), low.ProgramEfficiency)
}

func TestProject_MealsCappedByFunding(t *testing.T) {
	base := snapshot.Default()
	base.Revenue = 1000
	base.Reserves = 0

	p := scenario.Project(base, scenario.Factors{})
	// (1000 * 1.3) / 6.36
	assert.Equal(t, int64(204), p.MealsDelivered)
	assert.Less(t, p.MealsChange, float64(0))
}

func TestProject_ZeroBaseHasNoInfiniteChange(t *testing.T) {
	p := scenario.Project(snapshot.Snapshot{}, scenario.Factors{EconomicGrowth: 2})
	for k, v := range p.Deltas() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), k)
	}
	assert.Zero(t, p.RevenueChange)
}

func TestProject_ShockRaisesDemandAndCost(t *testing.T) {
	base := snapshot.Default()
	calm := scenario.Project(base, scenario.Factors{})
	shock := scenario.Project(base, scenario.Factors{RegionalShock: 1})

	assert.Greater(t, shock.PeopleServed, calm.PeopleServed)
	assert.Greater(t, shock.CostPerMeal, calm.CostPerMeal)
}

func TestFactorsMapRoundTrip(t *testing.T) {
	f := scenario.Factors{EconomicGrowth: 1, RegionalShock: -2, ExchangeRateEGP: 3}
	m := f.Map()
	assert.Len(t, m, len(snapshot.ScenarioFactorKeys))
	for _, k := range snapshot.ScenarioFactorKeys {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, f, scenario.FactorsFromMap(m))
}

func TestStore_CRUDWritesAudit(t *testing.T) {
	db := testutil.NewDB(t)
	st := scenario.NewStore(db, nil)
	ctx := store.WithActor(context.Background(), "planner")
	base := snapshot.Default()

	_, err := st.Create(ctx, scenario.Input{Name: "  "}, base)
	assert.True(t, errors.Is(err, scenario.ErrInvalid))

	created, err := st.Create(ctx, scenario.Input{
		Name:    "Recession",
		Factors: scenario.Factors{EconomicGrowth: -2, UnemploymentRate: 3},
	}, base)
	require.NoError(t, err)
	assert.Equal(t, "planner", created.CreatedBy)
	assert.True(t, created.IsActive)
	assert.Contains(t, created.Results, "revenue")

	got, err := st.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(-2), scenario.StoredFactors(got).EconomicGrowth)

	inactive := false
	updated, err := st.Update(ctx, created.ID, scenario.Input{
		Name:     "Deep recession",
		Factors:  scenario.Factors{EconomicGrowth: -4},
		IsActive: &inactive,
	}, base)
	require.NoError(t, err)
	assert.Equal(t, "Deep recession", updated.Name)
	assert.False(t, updated.IsActive)

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, st.Delete(ctx, created.ID))
	_, err = st.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, scenario.ErrNotFound))
	assert.True(t, errors.Is(st.Delete(ctx, created.ID), scenario.ErrNotFound))

	logs, err := dbpkg.ListAuditLogs(db, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	actions := []string{logs[0].Action, logs[1].Action, logs[2].Action}
	assert.ElementsMatch(t, []string{"INSERT", "UPDATE", "DELETE"}, actions)
	for _, l := range logs {
		assert.Equal(t, "scenarios", l.Table)
		assert.Equal(t, "planner", l.Actor)
	}
}

func TestStore_CreateInactive(t *testing.T) {
	st := scenario.NewStore(testutil.NewDB(t), nil)
	off := false
	row, err := st.Create(context.Background(), scenario.Input{Name: "Draft", IsActive: &off}, snapshot.Default())
	require.NoError(t, err)

	got, err := st.Get(context.Background(), row.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
