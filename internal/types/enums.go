package types

// AlertStatus represents the lifecycle state of a WeatherAlert.
type AlertStatus string

const (
	StatusActive    AlertStatus = "ACTIVE"
	StatusInactive  AlertStatus = "INACTIVE"
	StatusTriggered AlertStatus = "TRIGGERED"
	StatusExpired   AlertStatus = "EXPIRED"
	StatusCancelled AlertStatus = "CANCELLED"
)

// AllStatuses enumerates every valid alert status. Used by validators and
// the API layer to check query parameters.
var AllStatuses = []AlertStatus{
	StatusActive,
	StatusInactive,
	StatusTriggered,
	StatusExpired,
	StatusCancelled,
}

// Valid reports whether the status is one of the known lifecycle states.
func (s AlertStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// AlertType classifies an alert by the weather metric its condition checks.
// The type must agree with the condition variant by caller convention; the
// store does not cross-validate the pair.
type AlertType string

const (
	AlertTemperature      AlertType = "TEMPERATURE"
	AlertRain             AlertType = "RAIN"
	AlertSnow             AlertType = "SNOW"
	AlertWind             AlertType = "WIND"
	AlertHumidity         AlertType = "HUMIDITY"
	AlertWeatherCondition AlertType = "WEATHER_CONDITION"
	AlertUVIndex          AlertType = "UV_INDEX"
	AlertPressure         AlertType = "PRESSURE"
	AlertVisibility       AlertType = "VISIBILITY"
)

// ComparisonOperator defines the comparison applied between a snapshot value
// and a condition threshold. Equality on floating-point values is literal.
type ComparisonOperator string

const (
	OpGreaterThan   ComparisonOperator = "GREATER_THAN"
	OpLessThan      ComparisonOperator = "LESS_THAN"
	OpGreaterThanEq ComparisonOperator = "GREATER_THAN_OR_EQUAL"
	OpLessThanEq    ComparisonOperator = "LESS_THAN_OR_EQUAL"
	OpEqual         ComparisonOperator = "EQUAL"
)

// Symbol returns the operator's display symbol for notification text.
func (o ComparisonOperator) Symbol() string {
	switch o {
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpGreaterThanEq:
		return ">="
	case OpLessThanEq:
		return "<="
	case OpEqual:
		return "="
	default:
		return "?"
	}
}

// Valid reports whether the operator is one of the five supported comparisons.
func (o ComparisonOperator) Valid() bool {
	switch o {
	case OpGreaterThan, OpLessThan, OpGreaterThanEq, OpLessThanEq, OpEqual:
		return true
	}
	return false
}

// TemperatureUnit identifies the physical unit of a temperature threshold.
type TemperatureUnit string

const (
	UnitCelsius    TemperatureUnit = "CELSIUS"
	UnitFahrenheit TemperatureUnit = "FAHRENHEIT"
	UnitKelvin     TemperatureUnit = "KELVIN"
)

// Symbol returns the unit's display symbol.
func (u TemperatureUnit) Symbol() string {
	switch u {
	case UnitFahrenheit:
		return "°F"
	case UnitKelvin:
		return "K"
	default:
		return "°C"
	}
}

// WeatherType identifies a broad weather category for condition matching.
// Matching against a snapshot's condition label is a case-insensitive
// substring check on the display name, not exact equality.
type WeatherType string

const (
	WeatherClear        WeatherType = "CLEAR"
	WeatherClouds       WeatherType = "CLOUDS"
	WeatherRain         WeatherType = "RAIN"
	WeatherSnow         WeatherType = "SNOW"
	WeatherThunderstorm WeatherType = "THUNDERSTORM"
	WeatherDrizzle      WeatherType = "DRIZZLE"
	WeatherMist         WeatherType = "MIST"
	WeatherExtreme      WeatherType = "EXTREME"
)

// DisplayName returns the label used for substring matching and notification
// text. These values are load-bearing: persisted alerts rely on them matching
// provider condition labels loosely.
func (w WeatherType) DisplayName() string {
	switch w {
	case WeatherClear:
		return "Clear"
	case WeatherClouds:
		return "Cloudy"
	case WeatherRain:
		return "Rainy"
	case WeatherSnow:
		return "Snowy"
	case WeatherThunderstorm:
		return "Thunderstorm"
	case WeatherDrizzle:
		return "Drizzle"
	case WeatherMist:
		return "Misty"
	case WeatherExtreme:
		return "Extreme"
	default:
		return string(w)
	}
}

// Valid reports whether the weather type is a known category.
func (w WeatherType) Valid() bool {
	switch w {
	case WeatherClear, WeatherClouds, WeatherRain, WeatherSnow,
		WeatherThunderstorm, WeatherDrizzle, WeatherMist, WeatherExtreme:
		return true
	}
	return false
}

// RepeatInterval defines how far a repeating alert's target time advances
// after it triggers. Intervals are fixed day counts, not calendar-aware.
type RepeatInterval string

const (
	RepeatDaily   RepeatInterval = "DAILY"
	RepeatWeekly  RepeatInterval = "WEEKLY"
	RepeatMonthly RepeatInterval = "MONTHLY"
	RepeatYearly  RepeatInterval = "YEARLY"
)

// DaysToAdd returns the number of days the target time advances per repeat.
func (r RepeatInterval) DaysToAdd() int {
	switch r {
	case RepeatDaily:
		return 1
	case RepeatWeekly:
		return 7
	case RepeatMonthly:
		return 30
	case RepeatYearly:
		return 365
	default:
		return 0
	}
}

// Valid reports whether the interval is a known repeat policy.
func (r RepeatInterval) Valid() bool {
	return r.DaysToAdd() > 0
}

// NotifyChannel determines notification priority and delivery behavior.
// Temperature and weather-condition alerts route to the urgent channel;
// all other alert types route to normal.
type NotifyChannel string

const (
	ChannelUrgent NotifyChannel = "urgent"
	ChannelNormal NotifyChannel = "normal"
	ChannelInfo   NotifyChannel = "info"
)
