package db

import (
	"context"

	"clearsky/internal/types"
)

// schemaSQL bootstraps the weather_alerts table. Idempotent so the daemon
// can run it unconditionally at startup.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS weather_alerts (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	alert_type           TEXT NOT NULL,
	condition            JSONB NOT NULL,
	location             JSONB NOT NULL,
	target_datetime      TIMESTAMPTZ NOT NULL,
	expiry_datetime      TIMESTAMPTZ,
	status               TEXT NOT NULL DEFAULT 'ACTIVE',
	is_repeating         BOOLEAN NOT NULL DEFAULT FALSE,
	repeat_interval      TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_triggered_at    TIMESTAMPTZ,
	notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	notification_sound   BOOLEAN NOT NULL DEFAULT TRUE,
	notification_vibrate BOOLEAN NOT NULL DEFAULT TRUE,
	custom_message       TEXT
);

CREATE INDEX IF NOT EXISTS idx_weather_alerts_status_target
	ON weather_alerts (status, target_datetime);

CREATE INDEX IF NOT EXISTS idx_weather_alerts_expiry
	ON weather_alerts (expiry_datetime)
	WHERE expiry_datetime IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_weather_alerts_type
	ON weather_alerts (alert_type);
`

// EnsureSchema creates the alert table and its indexes when missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to bootstrap schema", err)
	}
	return nil
}
