// Package config defines the service configuration structure. Configuration
// is loaded once at process startup and is immutable thereafter, following
// 12-Factor principles: values come from the OS environment, with a .env
// file as a development convenience. Any missing required value or invalid
// format fails startup immediately.
package config

import (
	"time"

	"clearsky/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used in configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"clearsky"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`

	Server   ServerConfig
	Database DatabaseConfig
	Weather  WeatherConfig
	Cache    CacheConfig
	Notify   NotifyConfig
	Check    CheckConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds the upstream weather provider settings.
type WeatherConfig struct {
	APIURL    string        `envconfig:"WEATHER_API_URL" default:"https://api.openweathermap.org/data/2.5/weather" validate:"required,url"`
	APIKey    SecretString  `envconfig:"WEATHER_API_KEY" validate:"required"`
	Timeout   time.Duration `envconfig:"WEATHER_TIMEOUT" default:"30s"`
	UserAgent string        `envconfig:"WEATHER_USER_AGENT" default:"clearsky/1.0"`
	// Retry tuning for the resilient HTTP client.
	MaxRetries int           `envconfig:"WEATHER_MAX_RETRIES" default:"3"`
	MinWait    time.Duration `envconfig:"WEATHER_RETRY_MIN_WAIT" default:"500ms"`
	MaxWait    time.Duration `envconfig:"WEATHER_RETRY_MAX_WAIT" default:"10s"`
}

// CacheConfig holds snapshot cache settings. An empty Addrs disables the
// memcached layer; snapshots are then only deduplicated within a check run.
type CacheConfig struct {
	Addrs   string        `envconfig:"MEMCACHED_ADDRS"`
	Timeout time.Duration `envconfig:"MEMCACHED_TIMEOUT" default:"500ms"`
	TTL     time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"5m"`
}

// NotifyConfig holds outbound notification delivery settings. An empty
// WebhookURL falls back to the in-memory sink.
type NotifyConfig struct {
	WebhookURL string        `envconfig:"NOTIFY_WEBHOOK_URL" validate:"omitempty,url"`
	UserAgent  string        `envconfig:"NOTIFY_USER_AGENT" default:"clearsky-notify/1.0"`
	Timeout    time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
}

// CheckConfig holds the periodic alert check schedule.
type CheckConfig struct {
	Period       time.Duration `envconfig:"CHECK_PERIOD" default:"15m"`
	Jitter       time.Duration `envconfig:"CHECK_JITTER" default:"5m"`
	AlertTimeout time.Duration `envconfig:"CHECK_ALERT_TIMEOUT" default:"30s"`
}
