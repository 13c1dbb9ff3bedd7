package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeCondition(t *testing.T, raw string) AlertCondition {
	t.Helper()
	var c AlertCondition
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	return c
}

func TestAlertCondition_RoundTrip_AllKinds(t *testing.T) {
	cases := []AlertCondition{
		TemperatureCondition(OpGreaterThan, 30.5, UnitCelsius),
		TemperatureCondition(OpLessThan, 10.0, UnitFahrenheit),
		MetricCondition(KindRain, OpGreaterThanEq, 5.0),
		MetricCondition(KindSnow, OpGreaterThan, 1.5),
		MetricCondition(KindWind, OpGreaterThan, 40.0),
		MetricCondition(KindHumidity, OpGreaterThanEq, 80),
		WeatherTypeCondition(WeatherThunderstorm),
		MetricCondition(KindUVIndex, OpGreaterThan, 7),
		MetricCondition(KindPressure, OpLessThan, 990.0),
		MetricCondition(KindVisibility, OpLessThanEq, 2.0),
	}

	for _, original := range cases {
		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("%s: Marshal error: %v", original.Kind, err)
		}
		var decoded AlertCondition
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("%s: Unmarshal error: %v", original.Kind, err)
		}
		if decoded != original {
			t.Errorf("%s: round trip mismatch: got %+v want %+v", original.Kind, decoded, original)
		}
	}
}

func TestAlertCondition_Marshal_IntegerValues(t *testing.T) {
	data, err := json.Marshal(MetricCondition(KindHumidity, OpGreaterThan, 80))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"value":80`) || strings.Contains(string(data), "80.") {
		t.Errorf("humidity value should serialize as integer, got %s", data)
	}

	data, err = json.Marshal(MetricCondition(KindUVIndex, OpEqual, 7))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.Contains(string(data), `"value":7`) {
		t.Errorf("uv value should serialize as integer, got %s", data)
	}
}

func TestAlertCondition_Unmarshal_TemperatureDefaultUnit(t *testing.T) {
	c := decodeCondition(t, `{"type":"temperature","operator":"LESS_THAN","value":5.5}`)
	want := TemperatureCondition(OpLessThan, 5.5, UnitCelsius)
	if c != want {
		t.Errorf("got %+v want %+v", c, want)
	}
}

func TestAlertCondition_Unmarshal_LegacyWeatherType(t *testing.T) {
	c := decodeCondition(t, `{"weatherType":"SNOW"}`)
	if c.Kind != KindWeather || c.Weather != WeatherSnow {
		t.Errorf("legacy weatherType should decode as weather condition, got %+v", c)
	}
}

func TestAlertCondition_Unmarshal_LegacyIntegerIsHumidity(t *testing.T) {
	// Whole-number legacy values were humidity thresholds, even when written
	// with a trailing ".0".
	for _, raw := range []string{
		`{"operator":"GREATER_THAN","value":30}`,
		`{"operator":"GREATER_THAN","value":30.0}`,
	} {
		c := decodeCondition(t, raw)
		if c.Kind != KindHumidity || c.Threshold != 30 || c.Operator != OpGreaterThan {
			t.Errorf("%s: expected humidity 30, got %+v", raw, c)
		}
	}
}

func TestAlertCondition_Unmarshal_LegacyFractionalIsTemperature(t *testing.T) {
	c := decodeCondition(t, `{"operator":"LESS_THAN","value":22.5}`)
	want := TemperatureCondition(OpLessThan, 22.5, UnitCelsius)
	if c != want {
		t.Errorf("got %+v want %+v", c, want)
	}
}

func TestAlertCondition_Unmarshal_FallbackNeverErrors(t *testing.T) {
	def := DefaultCondition()
	for _, raw := range []string{
		`{}`,
		`{"type":"sandstorm","operator":"GREATER_THAN","value":1}`,
		`{"type":"temperature","operator":"BIGGER","value":1}`,
		`{"type":"weather","weatherType":"VOLCANO"}`,
		`{"weatherType":"VOLCANO"}`,
		`{"operator":"SOMETIMES","value":3}`,
		`"not an object"`,
		`[1,2,3]`,
	} {
		c := decodeCondition(t, raw)
		if c != def {
			t.Errorf("%s: expected default fallback condition, got %+v", raw, c)
		}
	}
}

func TestAlertCondition_Scan_CorruptedData(t *testing.T) {
	var c AlertCondition
	if err := c.Scan([]byte(`{{{ not json`)); err != nil {
		t.Fatalf("Scan must not error on corrupted data: %v", err)
	}
	if c != DefaultCondition() {
		t.Errorf("expected default fallback, got %+v", c)
	}

	var nilScan AlertCondition
	if err := nilScan.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if nilScan != DefaultCondition() {
		t.Errorf("expected default fallback for nil, got %+v", nilScan)
	}
}

func TestAlertCondition_ScanValue_RoundTrip(t *testing.T) {
	original := WeatherTypeCondition(WeatherDrizzle)
	dv, err := original.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	var scanned AlertCondition
	if err := scanned.Scan(dv); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if scanned != original {
		t.Errorf("round trip mismatch: got %+v want %+v", scanned, original)
	}
}

func TestAlertCondition_AlertType(t *testing.T) {
	cases := map[ConditionKind]AlertType{
		KindTemperature: AlertTemperature,
		KindRain:        AlertRain,
		KindSnow:        AlertSnow,
		KindWind:        AlertWind,
		KindHumidity:    AlertHumidity,
		KindWeather:     AlertWeatherCondition,
		KindUVIndex:     AlertUVIndex,
		KindPressure:    AlertPressure,
		KindVisibility:  AlertVisibility,
	}
	for kind, want := range cases {
		if got := (AlertCondition{Kind: kind}).AlertType(); got != want {
			t.Errorf("%s: got %s want %s", kind, got, want)
		}
	}
}
