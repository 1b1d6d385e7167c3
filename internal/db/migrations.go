package db

import "database/sql"

// Migrate applies the schema. Every statement is idempotent so it is safe to
// run on each start.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT    NOT NULL UNIQUE,
    password_hash TEXT    NOT NULL DEFAULT '',
    name          TEXT    NOT NULL DEFAULT '',
    bot_id        TEXT    NOT NULL DEFAULT '',
    bot_token     TEXT    NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tracking_links (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id       INTEGER NOT NULL,
    campaign_id   TEXT    NOT NULL,
    campaign_name TEXT    NOT NULL DEFAULT '',
    tracking_url  TEXT    NOT NULL,
    bot_id        TEXT    NOT NULL,
    token         TEXT    NOT NULL UNIQUE,
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tracking_links_user ON tracking_links(user_id, created_at);

CREATE TABLE IF NOT EXISTS tracking_events (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    event_uid         TEXT    NOT NULL UNIQUE,
    tracking_link_id  INTEGER NOT NULL,
    user_id           INTEGER NOT NULL,
    event_type        TEXT    NOT NULL,
    campaign_id       TEXT    NOT NULL,
    sale_value_cents  INTEGER,
    utmify_status     TEXT    NOT NULL DEFAULT 'pending',
    utmify_response   TEXT    NOT NULL DEFAULT '',
    delivery_attempts INTEGER NOT NULL DEFAULT 0,
    next_attempt_at   DATETIME NOT NULL,
    ip_address        TEXT    NOT NULL DEFAULT '',
    user_agent        TEXT    NOT NULL DEFAULT '',
    referer           TEXT    NOT NULL DEFAULT '',
    browser           TEXT    NOT NULL DEFAULT '',
    os                TEXT    NOT NULL DEFAULT '',
    device_type       TEXT    NOT NULL DEFAULT '',
    country           TEXT    NOT NULL DEFAULT '',
    is_suspicious     INTEGER NOT NULL DEFAULT 0,
    created_at        DATETIME NOT NULL,
    FOREIGN KEY (tracking_link_id) REFERENCES tracking_links(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tracking_events_report ON tracking_events(user_id, campaign_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tracking_events_link ON tracking_events(tracking_link_id);
CREATE INDEX IF NOT EXISTS idx_tracking_events_due ON tracking_events(utmify_status, next_attempt_at)
    WHERE utmify_status != 'success';

CREATE TABLE IF NOT EXISTS reports (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id            INTEGER NOT NULL,
    campaign_id        TEXT    NOT NULL,
    period_start       TEXT    NOT NULL,
    period_end         TEXT    NOT NULL,
    total_events       INTEGER NOT NULL DEFAULT 0,
    total_sales        INTEGER NOT NULL DEFAULT 0,
    total_value_cents  INTEGER NOT NULL DEFAULT 0,
    conversion_rate_bp INTEGER NOT NULL DEFAULT 0,
    created_at         DATETIME NOT NULL,
    updated_at         DATETIME NOT NULL,
    UNIQUE(user_id, campaign_id, period_start, period_end),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
`
