package types

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// AlertLocation is the geographic anchor for an alert. Weather snapshots
// are fetched for these coordinates; the names are display metadata.
type AlertLocation struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CityName    string  `json:"cityName"`
	CountryName string  `json:"countryName"`
	DisplayName string  `json:"displayName,omitempty"`
}

var (
	_ sql.Scanner   = (*AlertLocation)(nil)
	_ driver.Valuer = AlertLocation{}
)

// NewAlertLocation builds a location with the derived display name.
func NewAlertLocation(lat, lon float64, city, country string) AlertLocation {
	loc := AlertLocation{
		Latitude:    lat,
		Longitude:   lon,
		CityName:    city,
		CountryName: country,
	}
	loc.DisplayName = loc.defaultDisplayName()
	return loc
}

func (l AlertLocation) defaultDisplayName() string {
	return fmt.Sprintf("%s, %s", l.CityName, l.CountryName)
}

// Display returns the display name, deriving it when unset.
func (l AlertLocation) Display() string {
	if l.DisplayName != "" {
		return l.DisplayName
	}
	return l.defaultDisplayName()
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (l *AlertLocation) Scan(value interface{}) error {
	return scanJSONB(l, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (l AlertLocation) Value() (driver.Value, error) {
	return valueJSONB(l)
}

// WeatherAlert is the aggregate root. Condition and Location persist as
// JSONB; everything else maps to plain columns.
type WeatherAlert struct {
	ID                  string         `json:"id" db:"id"`
	Title               string         `json:"title" db:"title"`
	Description         string         `json:"description" db:"description"`
	AlertType           AlertType      `json:"alertType" db:"alert_type"`
	Condition           AlertCondition `json:"condition" db:"condition"`
	Location            AlertLocation  `json:"location" db:"location"`
	TargetDateTime      time.Time      `json:"targetDateTime" db:"target_datetime"`
	ExpiryDateTime      *time.Time     `json:"expiryDateTime,omitempty" db:"expiry_datetime"`
	Status              AlertStatus    `json:"status" db:"status"`
	IsRepeating         bool           `json:"isRepeating" db:"is_repeating"`
	RepeatInterval      RepeatInterval `json:"repeatInterval,omitempty" db:"repeat_interval"`
	CreatedAt           time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time      `json:"updatedAt" db:"updated_at"`
	LastTriggeredAt     *time.Time     `json:"lastTriggeredAt,omitempty" db:"last_triggered_at"`
	NotificationEnabled bool           `json:"isNotificationEnabled" db:"notification_enabled"`
	NotificationSound   bool           `json:"notificationSound" db:"notification_sound"`
	NotificationVibrate bool           `json:"notificationVibration" db:"notification_vibrate"`
	CustomMessage       string         `json:"customMessage,omitempty" db:"custom_message"`
}

// IsExpired reports whether the alert has passed its useful life at the
// given instant. An alert is expired when its expiry time has passed, or
// when it is non-repeating and its target time has passed.
func (a *WeatherAlert) IsExpired(now time.Time) bool {
	if a.ExpiryDateTime != nil && a.ExpiryDateTime.Before(now) {
		return true
	}
	return !a.IsRepeating && a.TargetDateTime.Before(now)
}

// IsDue reports whether the alert is eligible for condition evaluation:
// ACTIVE, not expired, and its target time has arrived.
func (a *WeatherAlert) IsDue(now time.Time) bool {
	return a.Status == StatusActive &&
		!a.IsExpired(now) &&
		!a.TargetDateTime.After(now)
}

// WeatherSnapshot is a point-in-time observation for a location, the input
// to condition evaluation. Rain, Snow, and UVIndex may be absent from the
// provider; missing values evaluate as zero.
type WeatherSnapshot struct {
	Temperature float64  `json:"temperature"`
	Humidity    int      `json:"humidity"`
	WindSpeed   float64  `json:"windSpeed"`
	Pressure    float64  `json:"pressure"`
	Visibility  float64  `json:"visibility"`
	UVIndex     *int     `json:"uvIndex,omitempty"`
	Condition   string   `json:"weatherCondition"`
	Description string   `json:"description"`
	Rain        *float64 `json:"rain,omitempty"`
	Snow        *float64 `json:"snow,omitempty"`
	ObservedAt  time.Time `json:"observedAt"`
}

// AlertNotification is the payload handed to notification sinks when an
// alert fires.
type AlertNotification struct {
	AlertID     string          `json:"alertId"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	TriggeredAt time.Time       `json:"triggeredAt"`
	Snapshot    WeatherSnapshot `json:"weatherData"`
	Location    AlertLocation   `json:"location"`
	Channel     NotifyChannel   `json:"channel"`
	Sound       bool            `json:"sound"`
	Vibration   bool            `json:"vibration"`
}

// CheckResult summarizes a single scheduler run for logging and metrics.
type CheckResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Due        int       `json:"due"`
	Triggered  int       `json:"triggered"`
	Failed     int       `json:"failed"`
	Expired    int       `json:"expired"`
}
