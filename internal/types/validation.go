package types

import (
	"strings"
	"time"
)

// Validation constraint constants.
const (
	MinLat         = -90.0
	MaxLat         = 90.0
	MinLon         = -180.0
	MaxLon         = 180.0
	MaxTitleLength = 200
	MaxBatchSize   = 100
)

// ValidateAlert checks the structural invariants of an alert before it is
// persisted. Returns an AppError describing the first violation found.
func ValidateAlert(a *WeatherAlert) error {
	if strings.TrimSpace(a.Title) == "" {
		return NewAppError(ErrCodeValidationMissingField, "title is required", nil)
	}
	if len(a.Title) > MaxTitleLength {
		return NewAppErrorWithDetails(ErrCodeValidationMissingField, "title too long", nil,
			map[string]any{"max_length": MaxTitleLength})
	}
	if a.Location.Latitude < MinLat || a.Location.Latitude > MaxLat {
		return NewAppError(ErrCodeValidationInvalidLat, "latitude out of range", nil)
	}
	if a.Location.Longitude < MinLon || a.Location.Longitude > MaxLon {
		return NewAppError(ErrCodeValidationInvalidLon, "longitude out of range", nil)
	}
	if a.TargetDateTime.IsZero() {
		return NewAppError(ErrCodeValidationMissingField, "targetDateTime is required", nil)
	}
	if a.Status != "" && !a.Status.Valid() {
		return NewAppErrorWithDetails(ErrCodeValidationInvalidStatus, "unknown alert status", nil,
			map[string]any{"status": a.Status})
	}
	if err := validateCondition(a.Condition); err != nil {
		return err
	}
	if a.ExpiryDateTime != nil && a.ExpiryDateTime.Before(a.TargetDateTime) {
		return NewAppError(ErrCodeValidationInvalidExpiry, "expiryDateTime must not precede targetDateTime", nil)
	}
	if a.IsRepeating && !a.RepeatInterval.Valid() {
		return NewAppError(ErrCodeValidationInvalidRepeat, "repeating alert requires a repeat interval", nil)
	}
	return nil
}

// ValidateNewAlert checks the invariants of an alert being created. On top
// of the structural checks it rejects a target time that is not in the
// future. Updates go through ValidateAlert instead: an existing alert may
// legitimately carry a past target, for example after it has triggered.
func ValidateNewAlert(a *WeatherAlert, now time.Time) error {
	if err := ValidateAlert(a); err != nil {
		return err
	}
	if !a.TargetDateTime.After(now) {
		return NewAppErrorWithDetails(ErrCodeValidationPastTarget,
			"targetDateTime must be in the future", nil,
			map[string]any{"target": a.TargetDateTime.Format(time.RFC3339)})
	}
	return nil
}

func validateCondition(c AlertCondition) error {
	switch c.Kind {
	case KindWeather:
		if !c.Weather.Valid() {
			return NewAppErrorWithDetails(ErrCodeValidationInvalidCond, "unknown weather type", nil,
				map[string]any{"weatherType": c.Weather})
		}
	case KindTemperature, KindRain, KindSnow, KindWind, KindHumidity,
		KindUVIndex, KindPressure, KindVisibility:
		if !c.Operator.Valid() {
			return NewAppErrorWithDetails(ErrCodeValidationInvalidCond, "unknown comparison operator", nil,
				map[string]any{"operator": c.Operator})
		}
	default:
		return NewAppErrorWithDetails(ErrCodeValidationInvalidCond, "unknown condition kind", nil,
			map[string]any{"kind": c.Kind})
	}
	return nil
}
