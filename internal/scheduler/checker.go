// Package scheduler implements the periodic alert check: the Checker runs a
// single pass over due alerts, and the Runner drives named tasks on a
// recurring schedule with jitter and retry backoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clearsky/internal/types"
)

// AlertService abstracts the alert operations a check run needs.
type AlertService interface {
	Due(ctx context.Context, now time.Time) ([]*types.WeatherAlert, error)
	MarkTriggered(ctx context.Context, id string, triggeredAt time.Time) error
	Reschedule(ctx context.Context, id string, nextTarget time.Time) error
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// SnapshotProvider supplies the weather observation for an alert's location.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error)
}

// Evaluator decides whether a due alert's condition holds for a snapshot.
type Evaluator interface {
	ShouldTrigger(alert *types.WeatherAlert, snap *types.WeatherSnapshot, now time.Time) bool
}

// Notifier delivers notifications for triggered alerts.
type Notifier interface {
	Notify(ctx context.Context, alert *types.WeatherAlert, snap *types.WeatherSnapshot, triggeredAt time.Time) error
}

// CheckerMetrics records check run outcomes. See observability.Metrics.
type CheckerMetrics interface {
	ObserveCheckRun(result types.CheckResult, err error)
	ObserveEvaluation(triggered bool)
	ObserveProviderError()
}

// Checker executes one alert check pass: list due alerts, fetch a snapshot
// per location, evaluate, trigger and notify, then reschedule or retire.
type Checker struct {
	alerts       AlertService
	provider     SnapshotProvider
	evaluator    Evaluator
	notifier     Notifier
	metrics      CheckerMetrics
	alertTimeout time.Duration
	logger       *slog.Logger
}

// CheckerConfig holds the configuration for creating a Checker.
type CheckerConfig struct {
	Alerts    AlertService
	Provider  SnapshotProvider
	Evaluator Evaluator
	Notifier  Notifier
	Metrics   CheckerMetrics
	// AlertTimeout bounds the snapshot fetch and evaluation for a single
	// alert so one slow location cannot consume the whole run.
	AlertTimeout time.Duration
	Logger       *slog.Logger
}

// NewChecker creates a Checker with the given configuration.
func NewChecker(cfg CheckerConfig) *Checker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.AlertTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Checker{
		alerts:       cfg.Alerts,
		provider:     cfg.Provider,
		evaluator:    cfg.Evaluator,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		alertTimeout: timeout,
		logger:       logger,
	}
}

// Run executes one check pass at the given instant. Per-alert failures are
// logged and counted without aborting the pass. A failure to list due
// alerts aborts the run with a retryable error so the Runner backs off and
// tries again.
func (c *Checker) Run(ctx context.Context, now time.Time) (types.CheckResult, error) {
	result := types.CheckResult{StartedAt: now}

	due, err := c.alerts.Due(ctx, now)
	if err != nil {
		result.FinishedAt = time.Now().UTC()
		runErr := types.NewAppError(types.ErrCodeTaskRetryable, "failed to list due alerts", err)
		c.observe(result, runErr)
		return result, runErr
	}
	result.Due = len(due)

	// Snapshots are cached per coordinate pair within the pass, on top of
	// whatever caching the provider itself does.
	snapshots := make(map[string]*types.WeatherSnapshot)

	for _, alert := range due {
		if ctx.Err() != nil {
			result.FinishedAt = time.Now().UTC()
			runErr := types.NewAppError(types.ErrCodeTaskRetryable, "check run cancelled", ctx.Err())
			c.observe(result, runErr)
			return result, runErr
		}
		triggered, err := c.checkAlert(ctx, alert, now, snapshots)
		if err != nil {
			result.Failed++
			continue
		}
		if triggered {
			result.Triggered++
		}
	}

	expired, err := c.alerts.CleanupExpired(ctx, now)
	if err != nil {
		c.logger.ErrorContext(ctx, "expired alert cleanup failed", "error", err)
	} else {
		result.Expired = int(expired)
	}

	result.FinishedAt = time.Now().UTC()
	c.logger.InfoContext(ctx, "check run complete",
		"due", result.Due,
		"triggered", result.Triggered,
		"failed", result.Failed,
		"expired", result.Expired,
		"duration", result.FinishedAt.Sub(result.StartedAt).String(),
	)
	c.observe(result, nil)
	return result, nil
}

func (c *Checker) observe(result types.CheckResult, err error) {
	if c.metrics != nil {
		c.metrics.ObserveCheckRun(result, err)
	}
}

// checkAlert evaluates a single due alert. It returns whether the alert
// triggered; the error is already logged and only signals the caller to
// count the failure.
func (c *Checker) checkAlert(ctx context.Context, alert *types.WeatherAlert, now time.Time, snapshots map[string]*types.WeatherSnapshot) (bool, error) {
	snap, err := c.snapshotFor(ctx, alert, snapshots)
	if err != nil {
		if c.metrics != nil {
			c.metrics.ObserveProviderError()
		}
		c.logger.ErrorContext(ctx, "snapshot fetch failed",
			"alert_id", alert.ID,
			"location", alert.Location.Display(),
			"error", err,
		)
		return false, err
	}

	triggered := c.evaluator.ShouldTrigger(alert, snap, now)
	if c.metrics != nil {
		c.metrics.ObserveEvaluation(triggered)
	}
	if !triggered {
		return false, nil
	}

	if err := c.alerts.MarkTriggered(ctx, alert.ID, now); err != nil {
		c.logger.ErrorContext(ctx, "failed to mark alert triggered",
			"alert_id", alert.ID,
			"error", err,
		)
		return false, err
	}

	if err := c.notifier.Notify(ctx, alert, snap, now); err != nil {
		// The trigger is already recorded; a notification failure does not
		// roll it back.
		c.logger.ErrorContext(ctx, "notification failed for triggered alert",
			"alert_id", alert.ID,
			"error", err,
		)
	}

	if alert.IsRepeating {
		next := alert.TargetDateTime.AddDate(0, 0, alert.RepeatInterval.DaysToAdd())
		if err := c.alerts.Reschedule(ctx, alert.ID, next); err != nil {
			c.logger.ErrorContext(ctx, "failed to reschedule repeating alert",
				"alert_id", alert.ID,
				"next_target", next.Format(time.RFC3339),
				"error", err,
			)
		}
	}

	c.logger.InfoContext(ctx, "alert triggered",
		"alert_id", alert.ID,
		"alert_type", string(alert.AlertType),
		"location", alert.Location.Display(),
	)
	return true, nil
}

// snapshotFor returns the snapshot for the alert's coordinates, reusing a
// snapshot already fetched for the same location in this pass.
func (c *Checker) snapshotFor(ctx context.Context, alert *types.WeatherAlert, snapshots map[string]*types.WeatherSnapshot) (*types.WeatherSnapshot, error) {
	key := fmt.Sprintf("%.4f,%.4f", alert.Location.Latitude, alert.Location.Longitude)
	if snap, ok := snapshots[key]; ok {
		return snap, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.alertTimeout)
	defer cancel()

	snap, err := c.provider.Snapshot(fetchCtx, alert.Location.Latitude, alert.Location.Longitude)
	if err != nil {
		return nil, err
	}
	snapshots[key] = snap
	return snap, nil
}

// IsRetryable reports whether a check run error warrants a backed-off
// retry rather than waiting for the next scheduled pass.
func IsRetryable(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == types.ErrCodeTaskRetryable
	}
	return false
}
