package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the vault schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a vault schema migration. Apply runs against the
// combined connection (data.db as main, unlock.db attached as unlock) and
// must be idempotent: external migration scripts may already have brought
// the layout up to date.
type Migration struct {
	Version string
	Apply   func(ctx context.Context, db *sql.DB) error
}

// AllMigrations contains all schema migrations in order
var AllMigrations = []Migration{
	{Version: "1.0.0", Apply: migrateV1BaseLayout},
	{Version: "1.1.0", Apply: migrateV11GroupTaxonomy},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Credential table
CREATE TABLE IF NOT EXISTS data (
    id INTEGER PRIMARY KEY,
    site varchar(100) NOT NULL,
    username varchar(100) NOT NULL,
    password BLOB NOT NULL,
    group_name varchar(100),
    date_added TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    date_modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Groups table
CREATE TABLE IF NOT EXISTS groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name varchar(100) UNIQUE NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_data_group ON data(group_name);

-- Master-authentication record (singleton row)
CREATE TABLE IF NOT EXISTS unlock.master (
    key varchar(255),
    enc_key varchar(255)
);

-- Vault-wide preferences
CREATE TABLE IF NOT EXISTS unlock.settings (
    key varchar(100) PRIMARY KEY,
    value varchar(255)
);
`

// migrateV1BaseLayout creates the canonical tables. Every statement is
// IF NOT EXISTS, so running against a vault created by an older release
// (or by an external migration script) is a no-op for existing tables.
func migrateV1BaseLayout(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, migrationV1Up)
	return err
}

// migrateV11GroupTaxonomy upgrades vaults that predate the group
// taxonomy: adds the group/date columns to the credential table,
// registers groups referenced by legacy rows, and normalizes the
// reserved "All" name back to NULL.
func migrateV11GroupTaxonomy(ctx context.Context, db *sql.DB) error {
	// SQLite cannot ADD COLUMN with a non-constant default, so the date
	// columns are added bare and backfilled below.
	for _, col := range []struct{ name, ddl string }{
		{"group_name", "ALTER TABLE data ADD COLUMN group_name varchar(100)"},
		{"date_added", "ALTER TABLE data ADD COLUMN date_added TIMESTAMP"},
		{"date_modified", "ALTER TABLE data ADD COLUMN date_modified TIMESTAMP"},
	} {
		exists, err := columnExists(ctx, db, "data", col.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	_, err := db.ExecContext(ctx, `
		UPDATE data SET date_added = CURRENT_TIMESTAMP WHERE date_added IS NULL;
		UPDATE data SET date_modified = CURRENT_TIMESTAMP WHERE date_modified IS NULL;
	`)
	if err != nil {
		return fmt.Errorf("failed to backfill dates: %w", err)
	}

	// "All" is a virtual filter, never a stored group.
	if _, err := db.ExecContext(ctx, "UPDATE data SET group_name = NULL WHERE group_name = ?", AllGroups); err != nil {
		return fmt.Errorf("failed to normalize reserved group: %w", err)
	}

	// Register groups that only exist as references on legacy rows.
	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO groups (name)
		SELECT DISTINCT group_name FROM data
		WHERE group_name IS NOT NULL AND group_name != ''
	`)
	if err != nil {
		return fmt.Errorf("failed to backfill groups: %w", err)
	}
	return nil
}

// columnExists reports whether a table already has the named column
func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if err := migration.Apply(ctx, db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		// Record migration
		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}
