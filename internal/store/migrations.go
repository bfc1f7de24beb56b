package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "basins: catalogue of named attractor basins",
		SQL: `
CREATE TABLE basins (
    name        TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT '',
    concepts    TEXT NOT NULL DEFAULT '[]',  -- JSON array of strings
    strength    REAL NOT NULL DEFAULT 1.0 CHECK (strength >= 0),
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "route_decisions: audit log of routing outcomes",
		SQL: `
CREATE TABLE route_decisions (
    id               TEXT PRIMARY KEY,
    basin            TEXT NOT NULL,
    hopfield_score   REAL NOT NULL,
    oracle_score     REAL,
    blended_score    REAL NOT NULL,
    zone             TEXT NOT NULL CHECK (zone IN ('confident', 'ambiguous', 'no_pattern')),
    transition_basin TEXT,
    transition_score REAL,
    reason           TEXT NOT NULL DEFAULT '',
    created_at       INTEGER NOT NULL
);

CREATE INDEX idx_decisions_basin   ON route_decisions(basin);
CREATE INDEX idx_decisions_created ON route_decisions(created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "basin_vectors: cached seed-text embeddings",
		SQL: `
CREATE TABLE basin_vectors (
    basin      TEXT PRIMARY KEY,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (basin) REFERENCES basins(name) ON DELETE CASCADE
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
