package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"clearsky/internal/types"
)

var evalNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func dueAlert(cond types.AlertCondition) *types.WeatherAlert {
	return &types.WeatherAlert{
		ID:             "alr_eval",
		Title:          "test",
		AlertType:      cond.AlertType(),
		Condition:      cond,
		Location:       types.NewAlertLocation(40.4, -3.7, "Madrid", "Spain"),
		TargetDateTime: evalNow.Add(-time.Minute),
		Status:         types.StatusActive,
		IsRepeating:    true,
		RepeatInterval: types.RepeatDaily,
	}
}

func snapshot() *types.WeatherSnapshot {
	uv := 6
	rain := 2.5
	return &types.WeatherSnapshot{
		Temperature: 21.5,
		Humidity:    65,
		WindSpeed:   18.0,
		Pressure:    1013.0,
		Visibility:  10.0,
		UVIndex:     &uv,
		Condition:   "Light Rainy Showers",
		Description: "light rain",
		Rain:        &rain,
		ObservedAt:  evalNow,
	}
}

func TestEvaluator_Operators(t *testing.T) {
	e := NewEvaluator()
	snap := snapshot()

	cases := []struct {
		name string
		cond types.AlertCondition
		want bool
	}{
		{"temp greater than", types.TemperatureCondition(types.OpGreaterThan, 20.0, types.UnitCelsius), true},
		{"temp greater than not met", types.TemperatureCondition(types.OpGreaterThan, 25.0, types.UnitCelsius), false},
		{"temp less than", types.TemperatureCondition(types.OpLessThan, 25.0, types.UnitCelsius), true},
		{"temp equal literal", types.TemperatureCondition(types.OpEqual, 21.5, types.UnitCelsius), true},
		{"temp equal near miss", types.TemperatureCondition(types.OpEqual, 21.500001, types.UnitCelsius), false},
		{"temp gte boundary", types.TemperatureCondition(types.OpGreaterThanEq, 21.5, types.UnitCelsius), true},
		{"temp lte boundary", types.TemperatureCondition(types.OpLessThanEq, 21.5, types.UnitCelsius), true},
		{"humidity", types.MetricCondition(types.KindHumidity, types.OpGreaterThanEq, 65), true},
		{"wind", types.MetricCondition(types.KindWind, types.OpGreaterThan, 20.0), false},
		{"pressure", types.MetricCondition(types.KindPressure, types.OpLessThanEq, 1013.0), true},
		{"visibility", types.MetricCondition(types.KindVisibility, types.OpGreaterThan, 5.0), true},
		{"uv", types.MetricCondition(types.KindUVIndex, types.OpGreaterThan, 5), true},
		{"rain present", types.MetricCondition(types.KindRain, types.OpGreaterThan, 1.0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.ShouldTrigger(dueAlert(tc.cond), snap, evalNow)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluator_MissingOptionalFieldsEvaluateAsZero(t *testing.T) {
	e := NewEvaluator()
	snap := snapshot()
	snap.Rain = nil
	snap.Snow = nil
	snap.UVIndex = nil

	assert.False(t, e.ShouldTrigger(dueAlert(types.MetricCondition(types.KindRain, types.OpGreaterThan, 0.0)), snap, evalNow))
	assert.True(t, e.ShouldTrigger(dueAlert(types.MetricCondition(types.KindSnow, types.OpEqual, 0.0)), snap, evalNow))
	assert.True(t, e.ShouldTrigger(dueAlert(types.MetricCondition(types.KindUVIndex, types.OpLessThan, 3)), snap, evalNow))
}

func TestEvaluator_WeatherSubstringMatch(t *testing.T) {
	e := NewEvaluator()
	snap := snapshot()

	// "Light Rainy Showers" contains "Rainy" case-insensitively.
	assert.True(t, e.ShouldTrigger(dueAlert(types.WeatherTypeCondition(types.WeatherRain)), snap, evalNow))
	assert.False(t, e.ShouldTrigger(dueAlert(types.WeatherTypeCondition(types.WeatherSnow)), snap, evalNow))

	snap.Condition = "THUNDERSTORM WITH HAIL"
	assert.True(t, e.ShouldTrigger(dueAlert(types.WeatherTypeCondition(types.WeatherThunderstorm)), snap, evalNow))
}

func TestEvaluator_DueGateBeforeCondition(t *testing.T) {
	e := NewEvaluator()
	snap := snapshot()
	cond := types.TemperatureCondition(types.OpGreaterThan, 0.0, types.UnitCelsius)

	// Condition matches, but the alert is not due yet.
	future := dueAlert(cond)
	future.TargetDateTime = evalNow.Add(time.Hour)
	assert.False(t, e.ShouldTrigger(future, snap, evalNow))

	inactive := dueAlert(cond)
	inactive.Status = types.StatusInactive
	assert.False(t, e.ShouldTrigger(inactive, snap, evalNow))

	expired := dueAlert(cond)
	past := evalNow.Add(-time.Hour)
	expired.ExpiryDateTime = &past
	assert.False(t, e.ShouldTrigger(expired, snap, evalNow))

	// One-shot alert past its target is expired, not due.
	oneShot := dueAlert(cond)
	oneShot.IsRepeating = false
	oneShot.RepeatInterval = ""
	assert.False(t, e.ShouldTrigger(oneShot, snap, evalNow))
}

func TestEvaluator_UnknownOperatorNeverFires(t *testing.T) {
	e := NewEvaluator()
	cond := types.AlertCondition{Kind: types.KindWind, Operator: "SOMETIMES", Threshold: 0}
	assert.False(t, e.Matches(cond, snapshot()))
}
