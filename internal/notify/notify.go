// Package notify turns triggered alerts into notification payloads and
// delivers them through one or more sinks. Delivery failures on one sink
// never block the others.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clearsky/internal/types"
)

// Sink delivers notification payloads to a destination. Implementations
// must be safe for concurrent use.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *types.AlertNotification) error
	Cancel(ctx context.Context, alertID string) error
}

// Notifier builds notification payloads from triggered alerts and fans
// them out to the configured sinks.
type Notifier struct {
	sinks  []Sink
	logger *slog.Logger
}

// NotifierConfig holds the configuration for creating a Notifier.
type NotifierConfig struct {
	Sinks  []Sink
	Logger *slog.Logger
}

// NewNotifier creates a Notifier with the given configuration.
func NewNotifier(cfg NotifierConfig) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sinks:  cfg.Sinks,
		logger: logger,
	}
}

// Notify builds the notification for a triggered alert and delivers it to
// every sink. Alerts with notifications disabled are skipped. Notify
// returns an error only when every sink fails; partial failures are logged
// and the remaining sinks still receive the payload.
func (n *Notifier) Notify(ctx context.Context, alert *types.WeatherAlert, snap *types.WeatherSnapshot, triggeredAt time.Time) error {
	if !alert.NotificationEnabled {
		n.logger.InfoContext(ctx, "notifications disabled for alert, skipping",
			"alert_id", alert.ID,
		)
		return nil
	}

	payload := n.Build(alert, snap, triggeredAt)

	var failed int
	for _, sink := range n.sinks {
		if err := sink.Deliver(ctx, payload); err != nil {
			failed++
			n.logger.ErrorContext(ctx, "notification delivery failed",
				"alert_id", alert.ID,
				"sink", sink.Name(),
				"error", err,
			)
			continue
		}
		n.logger.InfoContext(ctx, "notification delivered",
			"alert_id", alert.ID,
			"sink", sink.Name(),
			"channel", string(payload.Channel),
		)
	}

	if len(n.sinks) > 0 && failed == len(n.sinks) {
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamNotify,
			"all notification sinks failed", nil,
			map[string]any{"alert_id": alert.ID, "sinks": len(n.sinks)})
	}
	return nil
}

// Cancel withdraws any outstanding notification for the alert from every
// sink. Failures are logged and do not stop the fan-out.
func (n *Notifier) Cancel(ctx context.Context, alertID string) {
	for _, sink := range n.sinks {
		if err := sink.Cancel(ctx, alertID); err != nil {
			n.logger.ErrorContext(ctx, "notification cancel failed",
				"alert_id", alertID,
				"sink", sink.Name(),
				"error", err,
			)
		}
	}
}

// CancelAll withdraws outstanding notifications for every given alert.
func (n *Notifier) CancelAll(ctx context.Context, alertIDs []string) {
	for _, id := range alertIDs {
		n.Cancel(ctx, id)
	}
}

// Build assembles the notification payload for a triggered alert. The
// alert ID doubles as the notification key so a re-triggered repeating
// alert replaces its previous notification instead of stacking.
func (n *Notifier) Build(alert *types.WeatherAlert, snap *types.WeatherSnapshot, triggeredAt time.Time) *types.AlertNotification {
	title := alert.Title
	if title == "" {
		title = "Weather alert for " + alert.Location.Display()
	}

	message := alert.CustomMessage
	if message == "" {
		message = formatMessage(alert.Condition, snap)
	}

	return &types.AlertNotification{
		AlertID:     alert.ID,
		Title:       title,
		Message:     message,
		TriggeredAt: triggeredAt,
		Snapshot:    *snap,
		Location:    alert.Location,
		Channel:     channelFor(alert.AlertType),
		Sound:       alert.NotificationSound,
		Vibration:   alert.NotificationVibrate,
	}
}

// channelFor routes temperature and weather-condition alerts to the urgent
// channel; all other metrics use the normal channel.
func channelFor(t types.AlertType) types.NotifyChannel {
	switch t {
	case types.AlertTemperature, types.AlertWeatherCondition:
		return types.ChannelUrgent
	default:
		return types.ChannelNormal
	}
}

// formatMessage renders a human-readable summary of why the alert fired,
// pairing the observed value with the configured threshold.
func formatMessage(cond types.AlertCondition, snap *types.WeatherSnapshot) string {
	switch cond.Kind {
	case types.KindTemperature:
		unit := cond.Unit.Symbol()
		return fmt.Sprintf("Temperature is %.1f%s (%s %.1f%s)",
			snap.Temperature, unit, cond.Operator.Symbol(), cond.Threshold, unit)
	case types.KindRain:
		return fmt.Sprintf("Rainfall is %.1f mm (%s %.1f mm)",
			deref(snap.Rain), cond.Operator.Symbol(), cond.Threshold)
	case types.KindSnow:
		return fmt.Sprintf("Snowfall is %.1f mm (%s %.1f mm)",
			deref(snap.Snow), cond.Operator.Symbol(), cond.Threshold)
	case types.KindWind:
		return fmt.Sprintf("Wind speed is %.1f m/s (%s %.1f m/s)",
			snap.WindSpeed, cond.Operator.Symbol(), cond.Threshold)
	case types.KindHumidity:
		return fmt.Sprintf("Humidity is %d%% (%s %d%%)",
			snap.Humidity, cond.Operator.Symbol(), int(cond.Threshold))
	case types.KindUVIndex:
		return fmt.Sprintf("UV index is %d (%s %d)",
			derefInt(snap.UVIndex), cond.Operator.Symbol(), int(cond.Threshold))
	case types.KindPressure:
		return fmt.Sprintf("Pressure is %.1f hPa (%s %.1f hPa)",
			snap.Pressure, cond.Operator.Symbol(), cond.Threshold)
	case types.KindVisibility:
		return fmt.Sprintf("Visibility is %.1f km (%s %.1f km)",
			snap.Visibility, cond.Operator.Symbol(), cond.Threshold)
	case types.KindWeather:
		if snap.Description != "" {
			return fmt.Sprintf("%s conditions detected (%s)",
				cond.Weather.DisplayName(), snap.Description)
		}
		return fmt.Sprintf("%s conditions detected", cond.Weather.DisplayName())
	default:
		return "Weather alert condition met"
	}
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
