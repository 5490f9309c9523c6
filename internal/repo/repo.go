// Package repo persists the monitoring core's entities to SQLite,
// implementing the small per-subsystem repository interfaces declared
// by internal/sensor, internal/alert, internal/area and internal/keypad.
package repo

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sensor_state (
	sensor_id INTEGER PRIMARY KEY,
	alert     INTEGER NOT NULL,
	error     INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS area_state (
	area_id INTEGER PRIMARY KEY,
	state   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS arm (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	type      TEXT NOT NULL,
	time      TEXT NOT NULL,
	user_id   INTEGER,
	keypad_id INTEGER
);

CREATE TABLE IF NOT EXISTS disarm (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	arm_id    INTEGER NOT NULL,
	time      TEXT NOT NULL,
	user_id   INTEGER,
	keypad_id INTEGER,
	alert_id  INTEGER
);

CREATE TABLE IF NOT EXISTS alert (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	arm_id     INTEGER,
	start_time TEXT NOT NULL,
	end_time   TEXT,
	disarm_id  INTEGER
);

CREATE TABLE IF NOT EXISTS alert_sensor (
	alert_id  INTEGER NOT NULL,
	channel   INTEGER NOT NULL,
	name      TEXT NOT NULL,
	type      INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	end_time   TEXT,
	delay      INTEGER NOT NULL,
	silent     INTEGER,
	suppression TEXT,
	PRIMARY KEY (alert_id, channel, start_time)
);

CREATE TABLE IF NOT EXISTS card (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	deleted          INTEGER NOT NULL DEFAULT 0,
	enabled          INTEGER NOT NULL DEFAULT 1,
	owner_id         INTEGER NOT NULL,
	card_number_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	deleted                  INTEGER NOT NULL DEFAULT 0,
	name                     TEXT NOT NULL,
	access_code_hash         TEXT NOT NULL,
	pin_hash                 TEXT,
	card_registration_expiry TEXT
);

CREATE TABLE IF NOT EXISTS option (
	section TEXT NOT NULL,
	name    TEXT NOT NULL,
	value   TEXT NOT NULL,
	PRIMARY KEY (section, name)
);
`

// Store owns the SQLite connection pool and the schema, shared by the
// per-subsystem repository adapters in this package.
type Store struct {
	db *sql.DB
}

// Open opens (and creates, if missing) the SQLite database at dsn and
// applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repo: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sensors returns a sensor.StateRepo backed by this store.
func (s *Store) Sensors() *SensorRepo { return &SensorRepo{db: s.db} }

// Alerts returns an alert.Repo backed by this store.
func (s *Store) Alerts() *AlertRepo { return &AlertRepo{db: s.db} }

// Areas returns an area.Repo backed by this store.
func (s *Store) Areas() *AreaRepo { return &AreaRepo{db: s.db} }

// Users returns a keypad.UserRepo backed by this store.
func (s *Store) Users() *UserRepo { return &UserRepo{db: s.db} }

// Options returns an OptionRepo backed by this store.
func (s *Store) Options() *OptionRepo { return &OptionRepo{db: s.db} }
