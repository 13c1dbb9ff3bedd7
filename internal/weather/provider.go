package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clearsky/internal/types"
)

// Provider supplies current-conditions snapshots for a location.
type Provider interface {
	Snapshot(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error)
	SnapshotByCity(ctx context.Context, city string) (*types.WeatherSnapshot, error)
}

// openWeatherResponse mirrors the OpenWeather current-weather payload,
// limited to the fields the evaluator consumes.
type openWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility float64 `json:"visibility"` // meters
	Rain       struct {
		OneHour *float64 `json:"1h"`
	} `json:"rain"`
	Snow struct {
		OneHour *float64 `json:"1h"`
	} `json:"snow"`
	Name string `json:"name"`
}

// OpenWeatherProvider fetches snapshots from an OpenWeather-compatible
// current-weather endpoint through the resilient BaseClient.
type OpenWeatherProvider struct {
	base    *BaseClient
	apiURL  string
	apiKey  string
	timeout time.Duration
	logger  *slog.Logger
}

// OpenWeatherConfig holds the configuration for creating an
// OpenWeatherProvider.
type OpenWeatherConfig struct {
	Base   *BaseClient
	APIURL string
	APIKey string
	// Timeout bounds each snapshot fetch so one slow upstream call cannot
	// stall a whole check run.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewOpenWeatherProvider creates a provider with the given configuration.
func NewOpenWeatherProvider(cfg OpenWeatherConfig) *OpenWeatherProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenWeatherProvider{
		base:    cfg.Base,
		apiURL:  strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		logger:  logger,
	}
}

// Snapshot fetches current conditions for the given coordinates.
func (p *OpenWeatherProvider) Snapshot(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.4f", lat))
	params.Set("lon", fmt.Sprintf("%.4f", lon))
	return p.fetch(ctx, params)
}

// SnapshotByCity fetches current conditions by city name.
func (p *OpenWeatherProvider) SnapshotByCity(ctx context.Context, city string) (*types.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("q", city)
	return p.fetch(ctx, params)
}

func (p *OpenWeatherProvider) fetch(ctx context.Context, params url.Values) (*types.WeatherSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params.Set("appid", p.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeather,
			"weather provider returned an error status", nil,
			map[string]any{"status": resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to read weather response", err)
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to parse weather response", err)
	}

	return mapResponse(apiResp), nil
}

// mapResponse converts the wire payload into a snapshot. Visibility arrives
// in meters and is stored in kilometers. The UV index is not part of the
// current-weather payload and stays absent.
func mapResponse(apiResp openWeatherResponse) *types.WeatherSnapshot {
	condition := ""
	description := ""
	if len(apiResp.Weather) > 0 {
		condition = apiResp.Weather[0].Main
		description = apiResp.Weather[0].Description
	}

	return &types.WeatherSnapshot{
		Temperature: apiResp.Main.Temp,
		Humidity:    apiResp.Main.Humidity,
		WindSpeed:   apiResp.Wind.Speed,
		Pressure:    apiResp.Main.Pressure,
		Visibility:  apiResp.Visibility / 1000.0,
		Condition:   condition,
		Description: description,
		Rain:        apiResp.Rain.OneHour,
		Snow:        apiResp.Snow.OneHour,
		ObservedAt:  time.Now().UTC(),
	}
}
