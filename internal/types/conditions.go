package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"math"
)

// ConditionKind discriminates the condition variants in serialized form.
// The string values are a persisted wire format; changing them breaks
// previously stored alerts.
type ConditionKind string

const (
	KindTemperature ConditionKind = "temperature"
	KindRain        ConditionKind = "rain"
	KindSnow        ConditionKind = "snow"
	KindWind        ConditionKind = "wind"
	KindHumidity    ConditionKind = "humidity"
	KindWeather     ConditionKind = "weather"
	KindUVIndex     ConditionKind = "uv"
	KindPressure    ConditionKind = "pressure"
	KindVisibility  ConditionKind = "visibility"
)

// AlertCondition is the tagged union of trigger conditions. Exactly one
// variant is active, selected by Kind:
//
//   - temperature: Operator, Threshold, Unit
//   - rain, snow, wind, pressure, visibility: Operator, Threshold
//   - humidity, uv: Operator, Threshold (serialized as an integer)
//   - weather: Weather only
//
// Fields not belonging to the active variant are zero and ignored. The
// threshold serializes under the "value" wire key; the field is named
// Threshold so the Valuer method for JSONB writes can keep its
// interface-mandated name.
type AlertCondition struct {
	Kind      ConditionKind
	Operator  ComparisonOperator
	Threshold float64
	Unit      TemperatureUnit
	Weather   WeatherType
}

// Compile-time interface assertions, as in jsonb.go.
var (
	_ sql.Scanner      = (*AlertCondition)(nil)
	_ driver.Valuer    = AlertCondition{}
	_ json.Marshaler   = AlertCondition{}
	_ json.Unmarshaler = (*AlertCondition)(nil)
)

// DefaultCondition is the fallback used when stored condition data cannot
// be decoded. Corrupted rows degrade to a usable alert instead of failing
// the read.
func DefaultCondition() AlertCondition {
	return AlertCondition{
		Kind:      KindTemperature,
		Operator:  OpGreaterThan,
		Threshold: 25.0,
		Unit:      UnitCelsius,
	}
}

// TemperatureCondition builds a temperature condition.
func TemperatureCondition(op ComparisonOperator, value float64, unit TemperatureUnit) AlertCondition {
	if unit == "" {
		unit = UnitCelsius
	}
	return AlertCondition{Kind: KindTemperature, Operator: op, Threshold: value, Unit: unit}
}

// MetricCondition builds an operator/value condition for the non-temperature
// numeric kinds (rain, snow, wind, humidity, uv, pressure, visibility).
func MetricCondition(kind ConditionKind, op ComparisonOperator, value float64) AlertCondition {
	return AlertCondition{Kind: kind, Operator: op, Threshold: value}
}

// WeatherTypeCondition builds a weather-category condition.
func WeatherTypeCondition(w WeatherType) AlertCondition {
	return AlertCondition{Kind: KindWeather, Weather: w}
}

// AlertType maps the condition variant to its alert classification.
func (c AlertCondition) AlertType() AlertType {
	switch c.Kind {
	case KindRain:
		return AlertRain
	case KindSnow:
		return AlertSnow
	case KindWind:
		return AlertWind
	case KindHumidity:
		return AlertHumidity
	case KindWeather:
		return AlertWeatherCondition
	case KindUVIndex:
		return AlertUVIndex
	case KindPressure:
		return AlertPressure
	case KindVisibility:
		return AlertVisibility
	default:
		return AlertTemperature
	}
}

// conditionWire is the serialized shape shared by all variants.
type conditionWire struct {
	Type        ConditionKind      `json:"type"`
	Operator    ComparisonOperator `json:"operator,omitempty"`
	Value       *json.Number       `json:"value,omitempty"`
	Unit        TemperatureUnit    `json:"unit,omitempty"`
	WeatherType WeatherType        `json:"weatherType,omitempty"`
}

// MarshalJSON emits the tagged wire format. Humidity and UV values are
// whole numbers and serialize without a fractional part.
func (c AlertCondition) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": c.Kind}
	switch c.Kind {
	case KindWeather:
		out["weatherType"] = c.Weather
	case KindHumidity, KindUVIndex:
		out["operator"] = c.Operator
		out["value"] = int(c.Threshold)
	case KindTemperature:
		out["operator"] = c.Operator
		out["value"] = c.Threshold
		out["unit"] = c.Unit
	default:
		out["operator"] = c.Operator
		out["value"] = c.Threshold
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged wire format. It also accepts two legacy
// shapes written before the type tag existed: a bare weatherType object, and
// a bare operator/value object (whole-number values were humidity alerts,
// fractional ones temperature in Celsius). Undecodable input yields
// DefaultCondition rather than an error so that one corrupted condition
// cannot poison a whole query.
func (c *AlertCondition) UnmarshalJSON(data []byte) error {
	var wire conditionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		*c = DefaultCondition()
		return nil
	}

	if wire.Type != "" {
		if decoded, ok := fromWire(wire); ok {
			*c = decoded
			return nil
		}
		*c = DefaultCondition()
		return nil
	}

	// Legacy: weatherType alone identifies a weather condition.
	if wire.WeatherType != "" {
		if !wire.WeatherType.Valid() {
			*c = DefaultCondition()
			return nil
		}
		*c = WeatherTypeCondition(wire.WeatherType)
		return nil
	}

	// Legacy: operator/value pair without a tag.
	if wire.Operator != "" && wire.Value != nil {
		if !wire.Operator.Valid() {
			*c = DefaultCondition()
			return nil
		}
		v, err := wire.Value.Float64()
		if err != nil {
			*c = TemperatureCondition(wire.Operator, 25.0, UnitCelsius)
			return nil
		}
		if v == math.Trunc(v) {
			*c = MetricCondition(KindHumidity, wire.Operator, v)
		} else {
			*c = TemperatureCondition(wire.Operator, v, UnitCelsius)
		}
		return nil
	}

	*c = DefaultCondition()
	return nil
}

// fromWire validates a tagged wire payload into a condition.
func fromWire(wire conditionWire) (AlertCondition, bool) {
	switch wire.Type {
	case KindWeather:
		if !wire.WeatherType.Valid() {
			return AlertCondition{}, false
		}
		return WeatherTypeCondition(wire.WeatherType), true
	case KindTemperature:
		v, ok := wireValue(wire)
		if !ok {
			return AlertCondition{}, false
		}
		unit := wire.Unit
		if unit == "" {
			unit = UnitCelsius
		}
		if unit != UnitCelsius && unit != UnitFahrenheit && unit != UnitKelvin {
			return AlertCondition{}, false
		}
		return TemperatureCondition(wire.Operator, v, unit), true
	case KindRain, KindSnow, KindWind, KindHumidity, KindUVIndex, KindPressure, KindVisibility:
		v, ok := wireValue(wire)
		if !ok {
			return AlertCondition{}, false
		}
		if wire.Type == KindHumidity || wire.Type == KindUVIndex {
			v = math.Trunc(v)
		}
		return MetricCondition(wire.Type, wire.Operator, v), true
	default:
		return AlertCondition{}, false
	}
}

func wireValue(wire conditionWire) (float64, bool) {
	if !wire.Operator.Valid() || wire.Value == nil {
		return 0, false
	}
	v, err := wire.Value.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
// Nil and unreadable values decode to DefaultCondition.
func (c *AlertCondition) Scan(value interface{}) error {
	if value == nil {
		*c = DefaultCondition()
		return nil
	}
	if err := scanJSONB(c, value); err != nil {
		*c = DefaultCondition()
	}
	return nil
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (c AlertCondition) Value() (driver.Value, error) {
	return valueJSONB(c)
}
