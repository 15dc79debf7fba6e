package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one forward step of the staging schema. Steps are applied
// in order inside a transaction and are never edited once released.
type migration func(tx *sql.Tx) error

var migrations = []migration{
	// 1: staged enrollment images, one row per preview reference.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS staged_image (
			ref TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_staged_image_owner ON staged_image(owner);
		`)
		return err
	},
	// 2: purge scans by age.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_staged_image_created ON staged_image(created_at)`)
		return err
	},
}

// LatestSchemaVersion is the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return len(migrations)
}

// InitDB prepares a staging database for use.
// PRE: db is a valid database connection
// POST: WAL mode enabled, schema at LatestSchemaVersion
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return MigrateDB(db)
}

// SchemaVersion returns the applied schema version, 0 for an untracked database.
func SchemaVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_version: %w", err)
	}
	var v sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB applies every migration newer than the database's version.
// PRE: db is a valid database connection
// POST: schema_version holds LatestSchemaVersion; a failed step is rolled back
// INVARIANT: running MigrateDB twice is a no-op the second time
func MigrateDB(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	for v := current + 1; v <= len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if err := migrations[v-1](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		slog.Info("storage_event", "event", "migration_applied", "version", v)
	}
	return nil
}
