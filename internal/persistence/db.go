// Package persistence records completed runs to SQLite: the run's
// parameters, one row per daily snapshot, and every applied intervention.
// Adapted from the teacher's world-state recorder; see design doc §11/§12.
package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/epidemic-sim/internal/engine"
)

// DB wraps a SQLite connection used to record simulation runs.
type DB struct {
	conn *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	seed       INTEGER NOT NULL,
	start_date TEXT NOT NULL,
	params     TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS daily_snapshots (
	run_id                  INTEGER NOT NULL REFERENCES runs(id),
	day                     INTEGER NOT NULL,
	by_age                  TEXT NOT NULL,
	available_hospital_beds INTEGER NOT NULL,
	available_icu_units     INTEGER NOT NULL,
	exposed_per_day         INTEGER NOT NULL,
	tests_run_per_day       INTEGER NOT NULL,
	r                       REAL NOT NULL,
	PRIMARY KEY (run_id, day)
);

CREATE TABLE IF NOT EXISTS events (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	day    INTEGER NOT NULL,
	name   TEXT NOT NULL,
	value  INTEGER NOT NULL
);
`

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("persistence: pinging %s: %w", path, err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("persistence: applying schema: %w", err)
	}
	return nil
}

// StartRun inserts a new run row and returns its id.
func (db *DB) StartRun(seed int64, startDate string, params any) (int64, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("persistence: marshaling run params: %w", err)
	}

	res, err := db.conn.Exec(
		`INSERT INTO runs (seed, start_date, params) VALUES (?, ?, ?)`,
		seed, startDate, string(paramsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("persistence: inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("persistence: reading new run id: %w", err)
	}
	return id, nil
}

// SaveSnapshot records one day's ModelState against runID.
func (db *DB) SaveSnapshot(runID int64, state engine.ModelState) error {
	byAge, err := json.Marshal(state.ByAge)
	if err != nil {
		return fmt.Errorf("persistence: marshaling snapshot by-age map: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO daily_snapshots
			(run_id, day, by_age, available_hospital_beds, available_icu_units, exposed_per_day, tests_run_per_day, r)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, state.Day, string(byAge), state.AvailableHospitalBeds, state.AvailableICUUnits,
		state.ExposedPerDay, state.TestsRunPerDay, state.R,
	)
	if err != nil {
		return fmt.Errorf("persistence: saving snapshot for day %d: %w", state.Day, err)
	}
	return nil
}

// SaveEvent records one applied intervention against runID.
func (db *DB) SaveEvent(runID int64, iv engine.Intervention) error {
	_, err := db.conn.Exec(
		`INSERT INTO events (run_id, day, name, value) VALUES (?, ?, ?, ?)`,
		runID, iv.Day, iv.Name, iv.Value,
	)
	if err != nil {
		return fmt.Errorf("persistence: saving event %q on day %d: %w", iv.Name, iv.Day, err)
	}
	return nil
}

// RecentSnapshots returns the most recent limit snapshots for runID, most
// recent first.
func (db *DB) RecentSnapshots(runID int64, limit int) ([]RawSnapshot, error) {
	var rows []RawSnapshot
	err := db.conn.Select(&rows,
		`SELECT day, by_age, available_hospital_beds, available_icu_units, exposed_per_day, tests_run_per_day, r
		 FROM daily_snapshots WHERE run_id = ? ORDER BY day DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("persistence: reading recent snapshots for run %d: %w", runID, err)
	}
	return rows, nil
}

// RawSnapshot is the row shape returned by RecentSnapshots, with the
// per-age breakdown left as unparsed JSON for the caller to decode on
// demand.
type RawSnapshot struct {
	Day                   int     `db:"day"`
	ByAge                 string  `db:"by_age"`
	AvailableHospitalBeds int     `db:"available_hospital_beds"`
	AvailableICUUnits     int     `db:"available_icu_units"`
	ExposedPerDay         int64   `db:"exposed_per_day"`
	TestsRunPerDay        int64   `db:"tests_run_per_day"`
	R                     float64 `db:"r"`
}
