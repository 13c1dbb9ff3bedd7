package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"clearsky/internal/types"
)

// AlertRepository provides data access for the weather_alerts table.
//
// Condition and location persist as JSONB through their Scan/Value
// implementations; a corrupted condition degrades to the default fallback
// at scan time instead of failing the read.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates a new AlertRepository backed by the given
// database connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

// alertColumns defines the standard set of columns selected for alert queries.
const alertColumns = `a.id, a.title, a.description, a.alert_type,
	a.condition, a.location,
	a.target_datetime, a.expiry_datetime, a.status,
	a.is_repeating, a.repeat_interval,
	a.created_at, a.updated_at, a.last_triggered_at,
	a.notification_enabled, a.notification_sound, a.notification_vibrate,
	a.custom_message`

// scanAlert scans a single alert row. The columns must match the order
// defined in alertColumns. Works for both pgx.Row and pgx.Rows.
func scanAlert(row pgx.Row) (*types.WeatherAlert, error) {
	var a types.WeatherAlert
	var (
		repeatInterval *string
		customMessage  *string
	)

	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&a.AlertType,
		&a.Condition,
		&a.Location,
		&a.TargetDateTime,
		&a.ExpiryDateTime,
		&a.Status,
		&a.IsRepeating,
		&repeatInterval,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LastTriggeredAt,
		&a.NotificationEnabled,
		&a.NotificationSound,
		&a.NotificationVibrate,
		&customMessage,
	)
	if err != nil {
		return nil, err
	}

	if repeatInterval != nil {
		a.RepeatInterval = types.RepeatInterval(*repeatInterval)
	}
	if customMessage != nil {
		a.CustomMessage = *customMessage
	}

	return &a, nil
}

// Create inserts a new alert record. The caller must set the ID (prefixed
// UUID, e.g. "alr_...") and required fields before calling. An existing row
// with the same ID is replaced.
func (r *AlertRepository) Create(ctx context.Context, a *types.WeatherAlert) error {
	_, err := r.db.Exec(ctx, insertAlertSQL, insertAlertArgs(a)...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create alert", err)
	}
	return nil
}

const insertAlertSQL = `INSERT INTO weather_alerts (
		id, title, description, alert_type,
		condition, location,
		target_datetime, expiry_datetime, status,
		is_repeating, repeat_interval,
		created_at, updated_at, last_triggered_at,
		notification_enabled, notification_sound, notification_vibrate,
		custom_message
	) VALUES (
		$1, $2, $3, $4,
		$5, $6,
		$7, $8, $9,
		$10, $11,
		COALESCE($12, NOW()), COALESCE($13, NOW()), $14,
		$15, $16, $17,
		$18
	)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		alert_type = EXCLUDED.alert_type,
		condition = EXCLUDED.condition,
		location = EXCLUDED.location,
		target_datetime = EXCLUDED.target_datetime,
		expiry_datetime = EXCLUDED.expiry_datetime,
		status = EXCLUDED.status,
		is_repeating = EXCLUDED.is_repeating,
		repeat_interval = EXCLUDED.repeat_interval,
		updated_at = NOW(),
		last_triggered_at = EXCLUDED.last_triggered_at,
		notification_enabled = EXCLUDED.notification_enabled,
		notification_sound = EXCLUDED.notification_sound,
		notification_vibrate = EXCLUDED.notification_vibrate,
		custom_message = EXCLUDED.custom_message`

func insertAlertArgs(a *types.WeatherAlert) []any {
	return []any{
		a.ID,
		a.Title,
		a.Description,
		a.AlertType,
		a.Condition,
		a.Location,
		a.TargetDateTime,
		a.ExpiryDateTime,
		a.Status,
		a.IsRepeating,
		nilIfEmpty(string(a.RepeatInterval)),
		nilIfZeroTime(a.CreatedAt),
		nilIfZeroTime(a.UpdatedAt),
		a.LastTriggeredAt,
		a.NotificationEnabled,
		a.NotificationSound,
		a.NotificationVibrate,
		nilIfEmpty(a.CustomMessage),
	}
}

// CreateBatch inserts multiple alerts one statement at a time, collecting
// per-index failures so one bad row does not reject the whole batch.
// Returns the indices that succeeded and a map of index -> error for those
// that failed.
func (r *AlertRepository) CreateBatch(ctx context.Context, alerts []*types.WeatherAlert) ([]int, map[int]error, error) {
	if len(alerts) == 0 {
		return nil, nil, nil
	}
	if len(alerts) > types.MaxBatchSize {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationBatchSize,
			"batch size exceeded", nil, map[string]any{"max": types.MaxBatchSize, "got": len(alerts)})
	}

	var created []int
	failed := make(map[int]error)
	for i, a := range alerts {
		if err := r.Create(ctx, a); err != nil {
			failed[i] = err
			continue
		}
		created = append(created, i)
	}
	if len(failed) == 0 {
		failed = nil
	}
	return created, failed, nil
}

// GetByID retrieves an alert by its ID. Returns (nil, nil) when no alert
// exists; absence is not an error at this layer.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*types.WeatherAlert, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM weather_alerts a WHERE a.id = $1`, id)

	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve alert", err)
	}
	return a, nil
}

// Update replaces the mutable fields of an existing alert. The updated_at
// timestamp is set by the database. Returns ErrCodeNotFoundAlert when the
// row does not exist.
func (r *AlertRepository) Update(ctx context.Context, a *types.WeatherAlert) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE weather_alerts SET
			title = $1,
			description = $2,
			alert_type = $3,
			condition = $4,
			location = $5,
			target_datetime = $6,
			expiry_datetime = $7,
			status = $8,
			is_repeating = $9,
			repeat_interval = $10,
			last_triggered_at = $11,
			notification_enabled = $12,
			notification_sound = $13,
			notification_vibrate = $14,
			custom_message = $15,
			updated_at = NOW()
		 WHERE id = $16`,
		a.Title,
		a.Description,
		a.AlertType,
		a.Condition,
		a.Location,
		a.TargetDateTime,
		a.ExpiryDateTime,
		a.Status,
		a.IsRepeating,
		nilIfEmpty(string(a.RepeatInterval)),
		a.LastTriggeredAt,
		a.NotificationEnabled,
		a.NotificationSound,
		a.NotificationVibrate,
		nilIfEmpty(a.CustomMessage),
		a.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update alert", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	return nil
}

// Delete removes an alert by ID. Deleting an absent alert is a no-op, not
// an error.
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM weather_alerts WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete alert", err)
	}
	return nil
}

// DeleteAll removes every alert. Returns the number of rows removed.
func (r *AlertRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM weather_alerts`)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete all alerts", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByStatus removes every alert in the given status. Returns the number
// of rows removed.
func (r *AlertRepository) DeleteByStatus(ctx context.Context, status types.AlertStatus) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM weather_alerts WHERE status = $1`, status)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete alerts by status", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes alerts whose expiry time has passed and that were
// not already marked EXPIRED. Returns the number of rows removed.
func (r *AlertRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM weather_alerts
		 WHERE expiry_datetime IS NOT NULL
		   AND expiry_datetime < $1
		   AND status != $2`,
		now, types.StatusExpired)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired alerts", err)
	}
	return tag.RowsAffected(), nil
}

// queryAlerts runs a SELECT built from alertColumns and scans all rows.
func (r *AlertRepository) queryAlerts(ctx context.Context, query string, args ...any) ([]*types.WeatherAlert, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query alerts", err)
	}
	defer rows.Close()

	var results []*types.WeatherAlert
	for rows.Next() {
		a, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert row", scanErr)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating alert rows", err)
	}
	return results, nil
}

// All retrieves every alert ordered by target time, soonest first.
func (r *AlertRepository) All(ctx context.Context) ([]*types.WeatherAlert, error) {
	return r.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM weather_alerts a ORDER BY a.target_datetime ASC`)
}

// ByStatus retrieves alerts in the given status ordered by target time.
func (r *AlertRepository) ByStatus(ctx context.Context, status types.AlertStatus) ([]*types.WeatherAlert, error) {
	return r.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM weather_alerts a
		 WHERE a.status = $1 ORDER BY a.target_datetime ASC`, status)
}

// ByType retrieves alerts of the given type ordered by target time.
func (r *AlertRepository) ByType(ctx context.Context, alertType types.AlertType) ([]*types.WeatherAlert, error) {
	return r.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM weather_alerts a
		 WHERE a.alert_type = $1 ORDER BY a.target_datetime ASC`, alertType)
}

// Due retrieves ACTIVE alerts whose target time has arrived. The expiry gate
// is applied in memory by the caller via IsDue; the query intentionally
// matches only on status and target time.
func (r *AlertRepository) Due(ctx context.Context, now time.Time) ([]*types.WeatherAlert, error) {
	return r.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM weather_alerts a
		 WHERE a.status = $1 AND a.target_datetime <= $2
		 ORDER BY a.target_datetime ASC`,
		types.StatusActive, now)
}

// Expired retrieves alerts whose expiry time has passed and that were not
// already marked EXPIRED.
func (r *AlertRepository) Expired(ctx context.Context, now time.Time) ([]*types.WeatherAlert, error) {
	return r.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM weather_alerts a
		 WHERE a.expiry_datetime IS NOT NULL
		   AND a.expiry_datetime < $1
		   AND a.status != $2
		 ORDER BY a.target_datetime ASC`,
		now, types.StatusExpired)
}

// UpdateStatus sets the status of a single alert.
func (r *AlertRepository) UpdateStatus(ctx context.Context, id string, status types.AlertStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE weather_alerts SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update alert status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	return nil
}

// MarkTriggered moves an alert to TRIGGERED and records the trigger time as
// a single statement, so status and last_triggered_at can never diverge.
func (r *AlertRepository) MarkTriggered(ctx context.Context, id string, triggeredAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE weather_alerts SET
			status = $1,
			last_triggered_at = $2,
			updated_at = NOW()
		 WHERE id = $3`,
		types.StatusTriggered, triggeredAt, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark alert triggered", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	return nil
}

// UpdateLastTriggeredAt records a trigger time without changing status.
func (r *AlertRepository) UpdateLastTriggeredAt(ctx context.Context, id string, triggeredAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE weather_alerts SET last_triggered_at = $1, updated_at = NOW() WHERE id = $2`,
		triggeredAt, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update last triggered at", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	return nil
}

// Reschedule advances a repeating alert to its next occurrence and returns
// it to ACTIVE in a single statement.
func (r *AlertRepository) Reschedule(ctx context.Context, id string, nextTarget time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE weather_alerts SET
			target_datetime = $1,
			status = $2,
			updated_at = NOW()
		 WHERE id = $3`,
		nextTarget, types.StatusActive, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reschedule alert", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAlert, "alert not found", nil)
	}
	return nil
}

// CountByStatus returns the number of alerts in the given status.
func (r *AlertRepository) CountByStatus(ctx context.Context, status types.AlertStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM weather_alerts WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to count %s alerts", strings.ToLower(string(status))), err)
	}
	return count, nil
}

// nilIfEmpty converts an empty string to nil for nullable text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime converts a zero time to nil so COALESCE can default to NOW().
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
