// Package alerts implements the alert domain services: the pure condition
// evaluation engine, the alert service facade with live subscriptions, and
// the compressed archive exporter.
package alerts

import (
	"strings"
	"time"

	"clearsky/internal/types"
)

// Evaluator decides whether alerts should fire against weather observations.
// It is stateless and safe for concurrent use.
type Evaluator struct{}

// NewEvaluator creates a new Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// ShouldTrigger reports whether the alert fires for the given snapshot at
// the given instant. The due-ness gate (ACTIVE, not expired, target time
// arrived) applies before any condition is inspected, so a stale or
// inactive alert never fires regardless of the weather.
func (e *Evaluator) ShouldTrigger(alert *types.WeatherAlert, snap *types.WeatherSnapshot, now time.Time) bool {
	if !alert.IsDue(now) {
		return false
	}
	return e.Matches(alert.Condition, snap)
}

// Matches evaluates the condition against the snapshot without the due-ness
// gate. Optional snapshot fields (rain, snow, uv index) evaluate as zero
// when the provider omits them.
func (e *Evaluator) Matches(cond types.AlertCondition, snap *types.WeatherSnapshot) bool {
	switch cond.Kind {
	case types.KindTemperature:
		return compare(cond.Operator, snap.Temperature, cond.Threshold)
	case types.KindRain:
		return compare(cond.Operator, deref(snap.Rain), cond.Threshold)
	case types.KindSnow:
		return compare(cond.Operator, deref(snap.Snow), cond.Threshold)
	case types.KindWind:
		return compare(cond.Operator, snap.WindSpeed, cond.Threshold)
	case types.KindHumidity:
		return compare(cond.Operator, float64(snap.Humidity), cond.Threshold)
	case types.KindWeather:
		return matchesWeather(cond.Weather, snap.Condition)
	case types.KindUVIndex:
		return compare(cond.Operator, float64(derefInt(snap.UVIndex)), cond.Threshold)
	case types.KindPressure:
		return compare(cond.Operator, snap.Pressure, cond.Threshold)
	case types.KindVisibility:
		return compare(cond.Operator, snap.Visibility, cond.Threshold)
	default:
		return false
	}
}

// compare applies the operator to observed vs threshold. Equality is a
// literal float comparison, matching the persisted contract.
func compare(op types.ComparisonOperator, observed, threshold float64) bool {
	switch op {
	case types.OpGreaterThan:
		return observed > threshold
	case types.OpLessThan:
		return observed < threshold
	case types.OpGreaterThanEq:
		return observed >= threshold
	case types.OpLessThanEq:
		return observed <= threshold
	case types.OpEqual:
		return observed == threshold
	default:
		return false
	}
}

// matchesWeather checks the snapshot's condition label against the weather
// type's display name with a case-insensitive substring match, so provider
// labels like "light rainy showers" match WeatherRain ("Rainy").
func matchesWeather(want types.WeatherType, observed string) bool {
	return strings.Contains(strings.ToLower(observed), strings.ToLower(want.DisplayName()))
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
