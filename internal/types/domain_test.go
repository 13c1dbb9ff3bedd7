package types

import (
	"testing"
	"time"
)

func baseAlert(target time.Time) *WeatherAlert {
	return &WeatherAlert{
		ID:             "alr_test",
		Title:          "Morning frost",
		AlertType:      AlertTemperature,
		Condition:      TemperatureCondition(OpLessThan, 0.5, UnitCelsius),
		Location:       NewAlertLocation(59.33, 18.06, "Stockholm", "Sweden"),
		TargetDateTime: target,
		Status:         StatusActive,
	}
}

func TestWeatherAlert_IsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	a := baseAlert(future)
	if a.IsExpired(now) {
		t.Error("future one-shot alert should not be expired")
	}

	a = baseAlert(past)
	if !a.IsExpired(now) {
		t.Error("past one-shot alert should be expired")
	}

	a = baseAlert(past)
	a.IsRepeating = true
	a.RepeatInterval = RepeatDaily
	if a.IsExpired(now) {
		t.Error("repeating alert without expiry should never expire")
	}

	a.ExpiryDateTime = &past
	if !a.IsExpired(now) {
		t.Error("expiry in the past should expire even a repeating alert")
	}

	a.ExpiryDateTime = &future
	if a.IsExpired(now) {
		t.Error("future expiry should not expire a repeating alert")
	}
}

func TestWeatherAlert_IsDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)

	a := baseAlert(future)
	if a.IsDue(now) {
		t.Error("alert before its target time should not be due")
	}

	// Boundary: target exactly at now counts as due.
	a = baseAlert(now)
	a.IsRepeating = true
	a.RepeatInterval = RepeatDaily
	if !a.IsDue(now) {
		t.Error("alert at its exact target time should be due")
	}

	a.Status = StatusInactive
	if a.IsDue(now) {
		t.Error("inactive alert should not be due")
	}

	a.Status = StatusTriggered
	if a.IsDue(now) {
		t.Error("triggered alert should not be due")
	}

	// A one-shot alert past its target is expired, hence not due.
	a = baseAlert(now.Add(-time.Minute))
	if a.IsDue(now) {
		t.Error("expired one-shot alert should not be due")
	}
}

func TestRepeatInterval_DaysToAdd(t *testing.T) {
	cases := map[RepeatInterval]int{
		RepeatDaily:   1,
		RepeatWeekly:  7,
		RepeatMonthly: 30,
		RepeatYearly:  365,
	}
	for interval, want := range cases {
		if got := interval.DaysToAdd(); got != want {
			t.Errorf("%s: got %d want %d", interval, got, want)
		}
	}
	if RepeatInterval("HOURLY").Valid() {
		t.Error("unknown interval should not be valid")
	}
}

func TestAlertLocation_Display(t *testing.T) {
	loc := NewAlertLocation(48.85, 2.35, "Paris", "France")
	if loc.Display() != "Paris, France" {
		t.Errorf("unexpected display name: %q", loc.Display())
	}

	loc.DisplayName = "Home"
	if loc.Display() != "Home" {
		t.Errorf("explicit display name should win: %q", loc.Display())
	}

	// Unset display name derives on read.
	bare := AlertLocation{CityName: "Oslo", CountryName: "Norway"}
	if bare.Display() != "Oslo, Norway" {
		t.Errorf("derived display name mismatch: %q", bare.Display())
	}
}

func TestWeatherType_DisplayName(t *testing.T) {
	cases := map[WeatherType]string{
		WeatherClear:        "Clear",
		WeatherClouds:       "Cloudy",
		WeatherRain:         "Rainy",
		WeatherSnow:         "Snowy",
		WeatherThunderstorm: "Thunderstorm",
		WeatherDrizzle:      "Drizzle",
		WeatherMist:         "Misty",
		WeatherExtreme:      "Extreme",
	}
	for wt, want := range cases {
		if got := wt.DisplayName(); got != want {
			t.Errorf("%s: got %q want %q", wt, got, want)
		}
	}
}
