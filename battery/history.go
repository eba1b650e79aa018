package battery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS battery_history (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	level     REAL NOT NULL,
	voltage   REAL NOT NULL,
	current   REAL NOT NULL,
	power     REAL NOT NULL,
	charging  INTEGER NOT NULL DEFAULT 0,
	read_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_battery_history_read_at ON battery_history(read_at);
`

// HistoryStore persists battery readings in a sqlite database.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistoryStore opens (or creates) the database and ensures the schema
// is at the current version. An outdated schema is dropped and recreated;
// telemetry history is disposable.
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapIOFailure(err, "battery", "OpenHistoryStore", "open database")
	}

	ver, err := currentSchemaVersion(db)
	if err != nil {
		_ = db.Close()
		return nil, errors.WrapIOFailure(err, "battery", "OpenHistoryStore", "check schema version")
	}

	if ver < schemaVersion {
		if err := migrateSchema(db); err != nil {
			_ = db.Close()
			return nil, errors.WrapIOFailure(err, "battery", "OpenHistoryStore", "migrate schema")
		}
	}

	return &HistoryStore{db: db}, nil
}

// currentSchemaVersion returns the version from schema_meta, or 0 when the
// table does not exist yet.
func currentSchemaVersion(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_meta'
	`).Scan(&count)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	var ver int
	err = db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&ver)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return ver, err
}

func migrateSchema(db *sql.DB) error {
	drops := []string{
		"DROP TABLE IF EXISTS battery_history",
		"DROP TABLE IF EXISTS schema_meta",
	}
	for _, stmt := range drops {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}

	if _, err := db.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}

	return nil
}

// Insert records one reading.
func (s *HistoryStore) Insert(ctx context.Context, t hardware.BatteryTelemetry) error {
	charging := 0
	if t.Charging {
		charging = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO battery_history (level, voltage, current, power, charging, read_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.Level, t.Voltage, t.Current, t.Power, charging, t.ReadAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.WrapIOFailure(err, "battery", "Insert", "insert reading")
	}
	return nil
}

// Recent returns up to limit readings, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]hardware.BatteryTelemetry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, voltage, current, power, charging, read_at
		FROM battery_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.WrapIOFailure(err, "battery", "Recent", "query readings")
	}
	defer rows.Close()

	var out []hardware.BatteryTelemetry
	for rows.Next() {
		var t hardware.BatteryTelemetry
		var charging int
		var readAt string
		if err := rows.Scan(&t.Level, &t.Voltage, &t.Current, &t.Power, &charging, &readAt); err != nil {
			return nil, errors.WrapIOFailure(err, "battery", "Recent", "scan reading")
		}
		t.Charging = charging != 0
		if ts, parseErr := time.Parse(time.RFC3339Nano, readAt); parseErr == nil {
			t.ReadAt = ts
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIOFailure(err, "battery", "Recent", "iterate readings")
	}
	return out, nil
}

// Prune deletes readings older than the cutoff and returns the count.
func (s *HistoryStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM battery_history WHERE read_at < ?
	`, olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, errors.WrapIOFailure(err, "battery", "Prune", "delete readings")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WrapIOFailure(err, "battery", "Prune", "count deletions")
	}
	return n, nil
}

// Close closes the database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
