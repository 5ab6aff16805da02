package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is a single schema step. Migrations run in order inside a
// transaction; schema_version records the last applied step.
type migration struct {
	version int
	apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, apply: migrateBaseline},
	{version: 2, apply: migrateUploadTable},
}

// LatestSchemaVersion returns the highest known migration version.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// InitDB initializes connection-level pragmas.
// PRE: db is a valid database connection
// POST: WAL mode and foreign key enforcement enabled
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return nil
}

// MigrateDB applies all outstanding migrations.
// PRE: db is a valid database connection
// POST: Schema is at LatestSchemaVersion; safe to re-run
func MigrateDB(db *sql.DB, path string) error {
	if err := InitDB(db); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d version reset failed: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d version write failed: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit failed: %w", m.version, err)
		}
		slog.Info("db_migrated", "version", m.version, "path", path)
	}
	return nil
}

// SchemaVersion returns the currently applied schema version (0 when
// no migration has run yet).
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// migrateBaseline creates the portal's core tables: the profile rows
// (the system's source of truth for authorization) and the identity
// gateway's credential rows. Profiles are keyed by identity id once
// linked; PENDING rows created before any credential exists carry an
// empty id and are found by email.
func migrateBaseline(tx *sql.Tx) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profile (
		id TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_profile_id ON profile(id) WHERE id != '';

	CREATE TABLE IF NOT EXISTS credential (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("failed to create baseline schema: %w", err)
	}
	return nil
}

// migrateUploadTable records object-store uploads so listings survive
// restarts even though the bytes live in the bucket.
func migrateUploadTable(tx *sql.Tx) error {
	schema := `
	CREATE TABLE IF NOT EXISTS upload (
		id TEXT PRIMARY KEY,
		uploader_id TEXT NOT NULL,
		object_key TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		public_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	`
	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("failed to create upload table: %w", err)
	}
	return nil
}
