package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// users / alerts / pump_events / emergency_contacts / insulin_configs 由外部服务维护，
// 这里使用 IF NOT EXISTS 建表，便于嵌入式部署和集成测试。
// escalation_configs / escalation_events 归本服务所有。
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id    TEXT PRIMARY KEY,
		email TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pump_events (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		event_type      TEXT NOT NULL CHECK (event_type IN ('basal','bolus','correction','suspend','resume')),
		event_timestamp TIMESTAMPTZ NOT NULL,
		units           DOUBLE PRECISION,
		iob_at_event    DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pump_events_user_ts ON pump_events(user_id, event_timestamp)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		severity      TEXT NOT NULL CHECK (severity IN ('info','warning','urgent','emergency')),
		created_at    TIMESTAMPTZ NOT NULL,
		expires_at    TIMESTAMPTZ NOT NULL,
		acknowledged  BOOLEAN NOT NULL DEFAULT FALSE,
		message       TEXT NOT NULL DEFAULT '',
		current_value DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_user_pending ON alerts(user_id, acknowledged, expires_at)`,
	`CREATE TABLE IF NOT EXISTS emergency_contacts (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name              TEXT NOT NULL DEFAULT '',
		telegram_username TEXT NOT NULL,
		priority          TEXT NOT NULL CHECK (priority IN ('primary','secondary')),
		position          INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS insulin_configs (
		user_id   TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		dia_hours DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS escalation_configs (
		user_id                       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		reminder_delay_minutes        INTEGER NOT NULL DEFAULT 5,
		primary_contact_delay_minutes INTEGER NOT NULL DEFAULT 10,
		all_contacts_delay_minutes    INTEGER NOT NULL DEFAULT 20,
		created_at                    TIMESTAMPTZ NOT NULL,
		updated_at                    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS escalation_events (
		id                  TEXT PRIMARY KEY,
		alert_id            TEXT NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
		user_id             TEXT NOT NULL,
		tier                TEXT NOT NULL CHECK (tier IN ('reminder','primary_contact','all_contacts')),
		triggered_at        TIMESTAMPTZ NOT NULL,
		message_content     TEXT NOT NULL,
		notification_status TEXT NOT NULL CHECK (notification_status IN ('pending','sent','failed')),
		contacts_notified   JSONB NOT NULL DEFAULT '[]',
		CONSTRAINT uq_escalation_events_alert_tier UNIQUE (alert_id, tier)
	)`,
	`CREATE TABLE IF NOT EXISTS patient_telegram_chats (
		user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		chat_id    TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id    TEXT PRIMARY KEY,
		email TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pump_events (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		event_type      TEXT NOT NULL,
		event_timestamp DATETIME NOT NULL,
		units           REAL,
		iob_at_event    REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pump_events_user_ts ON pump_events(user_id, event_timestamp)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		severity      TEXT NOT NULL,
		created_at    DATETIME NOT NULL,
		expires_at    DATETIME NOT NULL,
		acknowledged  BOOLEAN NOT NULL DEFAULT 0,
		message       TEXT NOT NULL DEFAULT '',
		current_value REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS emergency_contacts (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name              TEXT NOT NULL DEFAULT '',
		telegram_username TEXT NOT NULL,
		priority          TEXT NOT NULL,
		position          INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS insulin_configs (
		user_id   TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		dia_hours REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS escalation_configs (
		user_id                       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		reminder_delay_minutes        INTEGER NOT NULL DEFAULT 5,
		primary_contact_delay_minutes INTEGER NOT NULL DEFAULT 10,
		all_contacts_delay_minutes    INTEGER NOT NULL DEFAULT 20,
		created_at                    DATETIME NOT NULL,
		updated_at                    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS escalation_events (
		id                  TEXT PRIMARY KEY,
		alert_id            TEXT NOT NULL REFERENCES alerts(id) ON DELETE CASCADE,
		user_id             TEXT NOT NULL,
		tier                TEXT NOT NULL,
		triggered_at        DATETIME NOT NULL,
		message_content     TEXT NOT NULL,
		notification_status TEXT NOT NULL,
		contacts_notified   TEXT NOT NULL DEFAULT '[]',
		UNIQUE (alert_id, tier)
	)`,
	`CREATE TABLE IF NOT EXISTS patient_telegram_chats (
		user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		chat_id    TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// Migrate 建表（幂等）
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts := postgresSchema
	if dialect == DialectSQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
