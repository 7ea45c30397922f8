package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsPopulated(t *testing.T) {
	d := Default()
	assert.Equal(t, int64(4960000), d.PeopleServed)
	assert.Equal(t, int64(367490721), d.MealsDelivered)
	assert.Equal(t, 6.36, d.CostPerMeal)
	assert.Equal(t, int64(27), d.CoverageGovernorates)
	assert.Len(t, d.ScenarioFactors, len(ScenarioFactorKeys))
	assert.Len(t, d.ChartDeltas, len(ChartDeltaKeys))
	assert.Equal(t, 35.7, d.GlobalIndicators["egyptInflation"])
}

func TestApplyToKeepsUntouchedFields(t *testing.T) {
	base := Snapshot{PeopleServed: 1, MealsDelivered: 2}
	edit := Partial{MealsDelivered: ptr(int64(99))}

	got := edit.ApplyTo(base)
	assert.Equal(t, int64(1), got.PeopleServed)
	assert.Equal(t, int64(99), got.MealsDelivered)
	assert.Equal(t, int64(2), base.MealsDelivered, "base must not be modified")
}

func TestApplyToMergesMapsKeyByKey(t *testing.T) {
	base := Snapshot{ScenarioFactors: map[string]float64{"economicGrowth": 2, "custom": 7}}
	edit := Partial{ScenarioFactors: map[string]float64{"inflationRate": 4}}

	got := edit.ApplyTo(base)
	assert.Equal(t, map[string]float64{"economicGrowth": 2, "custom": 7, "inflationRate": 4}, got.ScenarioFactors)
	assert.NotContains(t, base.ScenarioFactors, "inflationRate")
}

func TestPartialRoundTripReplacesWholeRow(t *testing.T) {
	s := Default()
	s.ID = 12
	got := s.Partial().ApplyTo(Snapshot{})
	assert.Equal(t, s, got)
}

func TestSetRejectsUnknownField(t *testing.T) {
	var p Partial
	err := p.Set("volunteers", 3)
	require.ErrorIs(t, err, ErrUnknownField)
	assert.True(t, p.IsEmpty())
}

func TestSetRoundsIntegerFields(t *testing.T) {
	var p Partial
	require.NoError(t, p.Set("people_served", 10.6))
	assert.Equal(t, int64(11), *p.PeopleServed)
}

func TestDecodePartialCoercesAndAliases(t *testing.T) {
	raw := []byte(`{
		"people_served": "7777777",
		"meals_delivered": null,
		"cost_per_meal": 5.5,
		"scenarioFactors": {"economicGrowth": "3", "inflationRate": true},
		"chartData": {"revenueChange": 2},
		"mealsChange": -1.5,
		"global_indicators": {"globalInflation": 4.2, "bogus": "x"}
	}`)

	p, err := DecodePartial(raw)
	require.NoError(t, err)
	require.NotNil(t, p.PeopleServed)
	assert.Equal(t, int64(7777777), *p.PeopleServed)
	assert.Nil(t, p.MealsDelivered)
	assert.Equal(t, 5.5, *p.CostPerMeal)
	assert.Equal(t, map[string]float64{"economicGrowth": 3, "inflationRate": 1}, p.ScenarioFactors)
	assert.Equal(t, map[string]float64{"revenueChange": 2, "mealsChange": -1.5}, p.ChartDeltas)
	assert.Equal(t, map[string]float64{"globalInflation": 4.2}, p.GlobalIndicators)
}

func TestDecodePartialRejectsNonNumericScalar(t *testing.T) {
	_, err := DecodePartial([]byte(`{"revenue": "lots"}`))
	assert.Error(t, err)
}

func TestToNumber(t *testing.T) {
	assert.Equal(t, 3.5, ToNumber(3.5, 0))
	assert.Equal(t, 12.0, ToNumber(" 12 ", 0))
	assert.Equal(t, 1.0, ToNumber(true, 0))
	assert.Equal(t, 9.0, ToNumber(nil, 9))
	assert.Equal(t, 9.0, ToNumber("abc", 9))
	assert.Equal(t, 9.0, ToNumber([]int{1}, 9))
}

func TestNormalizeKeepsUnknownKeys(t *testing.T) {
	s := Normalize(Snapshot{GlobalIndicators: map[string]float64{"egyptInflation": 30, "oilPrice": 80}})
	assert.Equal(t, 30.0, s.GlobalIndicators["egyptInflation"])
	assert.Equal(t, 80.0, s.GlobalIndicators["oilPrice"])
	assert.Equal(t, 6.8, s.GlobalIndicators["globalInflation"])
}

func TestCloneDoesNotShareMaps(t *testing.T) {
	s := Default()
	c := s.Clone()
	c.ChartDeltas["revenueChange"] = 50
	assert.Equal(t, 0.0, s.ChartDeltas["revenueChange"])
}
