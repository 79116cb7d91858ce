package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when a group name collides with an existing group
	ErrDuplicateName = errors.New("name already exists")
	// ErrVaultInUse is returned when another process holds the vault directory
	ErrVaultInUse = errors.New("vault is in use by another process")
)

// File names inside the vault directory. The two-database layout is part
// of the persisted contract: external migration scripts operate on it
// directly.
const (
	DataDBFile   = "data.db"
	UnlockDBFile = "unlock.db"
	LockFile     = "vault.lock"
)

// SQLiteStore implements the Store interface using SQLite.
//
// data.db is the main database (credential and group tables); unlock.db
// is attached under the "unlock" schema (master record and settings).
// Attaching keeps the on-disk layout identical to older releases while
// letting multi-table mutations, rotation in particular, run in one
// transaction.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open creates a new SQLite store rooted at dir, creating the directory
// and databases on first run and migrating the schema when needed. The
// vault directory is guarded by a file lock; a second process opening the
// same vault fails with ErrVaultInUse.
func Open(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire vault lock: %w", err)
	}
	if !locked {
		return nil, ErrVaultInUse
	}

	db, err := openDatabase(filepath.Join(dir, DataDBFile))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("ATTACH DATABASE ? AS unlock", filepath.Join(dir, UnlockDBFile)); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to attach unlock database: %w", err)
	}

	s := &SQLiteStore{db: db, lock: lock}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := s.backfillDefaultSettings(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to backfill settings: %w", err)
	}

	return s, nil
}

// backfillDefaultSettings inserts any recognized setting missing from the
// settings table, so vaults created by older versions pick up new keys.
func (s *SQLiteStore) backfillDefaultSettings(ctx context.Context) error {
	for key, value := range DefaultSettings {
		_, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO unlock.settings (key, value) VALUES (?, ?)", key, value)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection and releases the vault lock
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}
	return err
}

// Master record operations

// ReadMaster returns the singleton master record, or ErrNotFound if the
// vault has not been initialized yet.
func (s *SQLiteStore) ReadMaster(ctx context.Context) (*MasterRecord, error) {
	var record MasterRecord
	err := s.db.QueryRowContext(ctx, "SELECT key, enc_key FROM unlock.master").
		Scan(&record.PassphraseHash, &record.EnvelopeKey)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read master record: %w", err)
	}
	return &record, nil
}

// WriteMaster overwrites the singleton master record
func (s *SQLiteStore) WriteMaster(ctx context.Context, record *MasterRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM unlock.master"); err != nil {
		return fmt.Errorf("failed to clear master record: %w", err)
	}
	_, err = tx.ExecContext(ctx, "INSERT INTO unlock.master (key, enc_key) VALUES (?, ?)",
		record.PassphraseHash, record.EnvelopeKey)
	if err != nil {
		return fmt.Errorf("failed to write master record: %w", err)
	}
	return tx.Commit()
}

// Credential operations

const credentialColumns = "id, site, username, password, group_name, date_added, date_modified"

// InsertCredential stores a new credential and assigns its id and
// timestamps.
func (s *SQLiteStore) InsertCredential(ctx context.Context, cred *Credential) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO data (site, username, password, group_name, date_added, date_modified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cred.Site, cred.Username, cred.EncryptedPassword, normalizeGroup(cred.GroupName), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	cred.ID = id
	cred.DateAdded = now
	cred.DateModified = now
	return nil
}

// UpdateCredential rewrites an existing credential and bumps its modified
// time. Returns ErrNotFound if the id doesn't exist.
func (s *SQLiteStore) UpdateCredential(ctx context.Context, cred *Credential) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE data SET site = ?, username = ?, password = ?, group_name = ?, date_modified = ?
		WHERE id = ?`,
		cred.Site, cred.Username, cred.EncryptedPassword, normalizeGroup(cred.GroupName), now, cred.ID)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	cred.DateModified = now
	return nil
}

// DeleteCredential removes a credential by id. Deleting a nonexistent id
// is not an error.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM data WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// GetCredential returns one credential by id
func (s *SQLiteStore) GetCredential(ctx context.Context, id int64) (*Credential, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM data WHERE id = ?", id)
	cred, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}

// ListCredentials returns credentials ordered by ascending id,
// restricted to the given group unless the filter is AllGroups.
func (s *SQLiteStore) ListCredentials(ctx context.Context, groupFilter string) ([]*Credential, error) {
	query := "SELECT " + credentialColumns + " FROM data ORDER BY id"
	args := []interface{}{}
	if groupFilter != AllGroups {
		query = "SELECT " + credentialColumns + " FROM data WHERE group_name = ? ORDER BY id"
		args = append(args, groupFilter)
	}
	return s.queryCredentials(ctx, query, args...)
}

// SearchCredentials returns credentials whose site or username contains
// term (case-insensitive), scoped by groupFilter as in ListCredentials.
// An empty term matches everything.
func (s *SQLiteStore) SearchCredentials(ctx context.Context, term, groupFilter string) ([]*Credential, error) {
	pattern := "%" + term + "%"
	if groupFilter == AllGroups {
		return s.queryCredentials(ctx,
			"SELECT "+credentialColumns+" FROM data WHERE site LIKE ? OR username LIKE ? ORDER BY id",
			pattern, pattern)
	}
	return s.queryCredentials(ctx,
		"SELECT "+credentialColumns+" FROM data WHERE (site LIKE ? OR username LIKE ?) AND group_name = ? ORDER BY id",
		pattern, pattern, groupFilter)
}

// ReencryptAll swaps every credential ciphertext and the master record in
// a single transaction. Either every row and the master record are
// replaced, or nothing is.
func (s *SQLiteStore) ReencryptAll(ctx context.Context, record *MasterRecord, passwords map[int64][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for id, ciphertext := range passwords {
		result, err := tx.ExecContext(ctx, "UPDATE data SET password = ? WHERE id = ?", ciphertext, id)
		if err != nil {
			return fmt.Errorf("failed to re-encrypt credential %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("failed to re-encrypt credential %d: %w", id, ErrNotFound)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM unlock.master"); err != nil {
		return fmt.Errorf("failed to clear master record: %w", err)
	}
	_, err = tx.ExecContext(ctx, "INSERT INTO unlock.master (key, enc_key) VALUES (?, ?)",
		record.PassphraseHash, record.EnvelopeKey)
	if err != nil {
		return fmt.Errorf("failed to write master record: %w", err)
	}

	return tx.Commit()
}

// Group operations

// AddGroup creates a new group. Returns ErrDuplicateName if the name is
// already taken.
func (s *SQLiteStore) AddGroup(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := groupExists(ctx, tx, name)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateName
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO groups (name) VALUES (?)", name); err != nil {
		return fmt.Errorf("failed to add group: %w", err)
	}
	return tx.Commit()
}

// DeleteGroup removes a group and nulls the group reference on every
// credential that pointed at it. The credentials themselves survive.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM groups WHERE name = ?", name); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE data SET group_name = NULL WHERE group_name = ?", name); err != nil {
		return fmt.Errorf("failed to clear group references: %w", err)
	}
	return tx.Commit()
}

// RenameGroup renames a group and cascades the new name onto every
// referencing credential. Returns ErrDuplicateName if newName already
// names a different group.
func (s *SQLiteStore) RenameGroup(ctx context.Context, oldName, newName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if oldName != newName {
		exists, err := groupExists(ctx, tx, newName)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateName
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE groups SET name = ? WHERE name = ?", newName, oldName); err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE data SET group_name = ? WHERE group_name = ?", newName, oldName); err != nil {
		return fmt.Errorf("failed to cascade group rename: %w", err)
	}
	return tx.Commit()
}

// ListGroups returns all stored group names sorted ascending. The
// virtual AllGroups entry is not stored and not included.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM groups ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	groups := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		groups = append(groups, name)
	}
	return groups, rows.Err()
}

// Setting operations

// GetSetting returns the stored value for key, or defaultValue if the
// key is absent.
func (s *SQLiteStore) GetSetting(ctx context.Context, key, defaultValue string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM unlock.settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return defaultValue, nil
	}
	if err != nil {
		return defaultValue, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value, replacing any existing value
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO unlock.settings (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Helpers

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row scanner) (*Credential, error) {
	var cred Credential
	var group sql.NullString
	err := row.Scan(&cred.ID, &cred.Site, &cred.Username, &cred.EncryptedPassword,
		&group, &cred.DateAdded, &cred.DateModified)
	if err != nil {
		return nil, err
	}
	if group.Valid {
		cred.GroupName = &group.String
	}
	return &cred, nil
}

func (s *SQLiteStore) queryCredentials(ctx context.Context, query string, args ...interface{}) ([]*Credential, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	creds := make([]*Credential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func groupExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}
	return true, nil
}

// normalizeGroup maps an empty group name to NULL so "no group" has one
// canonical representation.
func normalizeGroup(group *string) interface{} {
	if group == nil || *group == "" {
		return nil
	}
	return *group
}
