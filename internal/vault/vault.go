package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/vaultkeep/internal/crypto"
	"github.com/dshills/vaultkeep/internal/storage"
)

// MinPassphraseLength is the shortest master passphrase accepted
const MinPassphraseLength = 4

var (
	// ErrNotUnlocked is returned for any credential or group operation
	// attempted while the vault is not unlocked.
	ErrNotUnlocked = errors.New("vault is not unlocked")
	// ErrNotInitialized is returned when unlocking a vault that has no master record yet
	ErrNotInitialized = errors.New("vault is not initialized")
	// ErrAlreadyInitialized is returned when initializing a vault twice
	ErrAlreadyInitialized = errors.New("vault is already initialized")
	// ErrInvalidPassphrase is returned when the passphrase doesn't match the stored digest
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	// ErrValidation is returned for bad caller input (empty required
	// field, short passphrase, reserved group name).
	ErrValidation = errors.New("validation failed")
)

// State is the vault lifecycle state
type State int

const (
	// StateUninitialized means no master record exists yet; only Initialize is possible
	StateUninitialized State = iota
	// StateLocked means the master record exists but the envelope key is not in memory
	StateLocked
	// StateUnlocked means the envelope key is loaded and credential operations are available
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Manager orchestrates vault operations: unlock, credential CRUD, the
// group taxonomy, and master-passphrase rotation. It is the only owner
// of the decrypted envelope key, which exists in memory exactly for the
// lifetime of the Unlocked state.
//
// All operations are serialized through one mutex, so rotation is
// naturally exclusive with credential mutations, and a lock transition
// never interleaves with an in-flight operation.
type Manager struct {
	store storage.Store

	mu           sync.Mutex
	state        State
	envelopeKey  []byte
	lastActivity time.Time

	// autoLockPoll is the idle-monitor tick interval; tests shorten it.
	autoLockPoll time.Duration
}

// New creates a Manager over an opened store. The initial state is
// Locked when a master record exists, Uninitialized otherwise.
func New(ctx context.Context, store storage.Store) (*Manager, error) {
	m := &Manager{
		store:        store,
		state:        StateUninitialized,
		autoLockPoll: defaultAutoLockPoll,
	}

	_, err := store.ReadMaster(ctx)
	switch {
	case err == nil:
		m.state = StateLocked
	case errors.Is(err, storage.ErrNotFound):
		// First run; Initialize creates the master record.
	default:
		return nil, fmt.Errorf("failed to read master record: %w", err)
	}
	return m, nil
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Initialized reports whether a master record exists
func (m *Manager) Initialized() bool {
	return m.State() != StateUninitialized
}

// Initialize performs first-run setup: it validates the chosen
// passphrase, writes the master record (passphrase digest plus a fresh
// envelope key), and moves the vault to Locked.
func (m *Manager) Initialize(ctx context.Context, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUninitialized {
		return ErrAlreadyInitialized
	}

	passphrase, err := validatePassphrase(passphrase)
	if err != nil {
		return err
	}

	hash, err := crypto.HashPassphrase(passphrase)
	if err != nil {
		return err
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	record := &storage.MasterRecord{PassphraseHash: hash, EnvelopeKey: key}
	if err := m.store.WriteMaster(ctx, record); err != nil {
		return err
	}

	m.state = StateLocked
	return nil
}

// Unlock verifies the passphrase against the stored digest and, on
// success, loads the envelope key into memory. A wrong passphrase
// returns ErrInvalidPassphrase.
func (m *Manager) Unlock(ctx context.Context, passphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateUninitialized {
		return ErrNotInitialized
	}

	record, err := m.store.ReadMaster(ctx)
	if err != nil {
		return fmt.Errorf("failed to read master record: %w", err)
	}

	if !crypto.VerifyPassphrase(passphrase, record.PassphraseHash) {
		return ErrInvalidPassphrase
	}

	m.envelopeKey = record.EnvelopeKey
	m.state = StateUnlocked
	m.lastActivity = time.Now()
	return nil
}

// VerifyMasterPassphrase reports whether the passphrase matches the
// stored digest without changing state.
func (m *Manager) VerifyMasterPassphrase(ctx context.Context, passphrase string) (bool, error) {
	record, err := m.store.ReadMaster(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, ErrNotInitialized
	}
	if err != nil {
		return false, fmt.Errorf("failed to read master record: %w", err)
	}
	return crypto.VerifyPassphrase(passphrase, record.PassphraseHash), nil
}

// Lock discards the in-memory envelope key and returns to Locked. It
// never touches the store, so an operation already in flight completes
// against data it already read.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLocked()
}

// lockLocked clears the key and flips state. Caller holds m.mu.
func (m *Manager) lockLocked() {
	if m.state != StateUnlocked {
		return
	}
	for i := range m.envelopeKey {
		m.envelopeKey[i] = 0
	}
	m.envelopeKey = nil
	m.state = StateLocked
}

// requireUnlocked returns ErrNotUnlocked unless the vault is unlocked.
// Caller holds m.mu.
func (m *Manager) requireUnlocked() error {
	if m.state != StateUnlocked {
		return ErrNotUnlocked
	}
	return nil
}

// AddCredential encrypts the password under the envelope key and stores
// a new credential, auto-creating the group on first use. Returns the
// new credential id.
func (m *Manager) AddCredential(ctx context.Context, site, username, password, group string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return 0, err
	}
	if err := validateCredential(site, password); err != nil {
		return 0, err
	}

	groupRef, err := m.ensureGroup(ctx, group)
	if err != nil {
		return 0, err
	}

	sealed, err := crypto.Encrypt([]byte(password), m.envelopeKey)
	if err != nil {
		return 0, err
	}

	cred := &storage.Credential{
		Site:              site,
		Username:          username,
		EncryptedPassword: sealed,
		GroupName:         groupRef,
	}
	if err := m.store.InsertCredential(ctx, cred); err != nil {
		return 0, err
	}
	return cred.ID, nil
}

// UpdateCredential re-validates, re-encrypts, and rewrites an existing
// credential. Returns storage.ErrNotFound if the id doesn't exist.
func (m *Manager) UpdateCredential(ctx context.Context, id int64, site, username, password, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return err
	}
	if err := validateCredential(site, password); err != nil {
		return err
	}

	groupRef, err := m.ensureGroup(ctx, group)
	if err != nil {
		return err
	}

	sealed, err := crypto.Encrypt([]byte(password), m.envelopeKey)
	if err != nil {
		return err
	}

	return m.store.UpdateCredential(ctx, &storage.Credential{
		ID:                id,
		Site:              site,
		Username:          username,
		EncryptedPassword: sealed,
		GroupName:         groupRef,
	})
}

// DeleteCredential removes a credential. Deleting a nonexistent id is a
// no-op, not an error.
func (m *Manager) DeleteCredential(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return err
	}
	return m.store.DeleteCredential(ctx, id)
}

// GetCredential returns one credential record. The password stays
// encrypted; use GetPlaintextPassword to decrypt.
func (m *Manager) GetCredential(ctx context.Context, id int64) (*storage.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return nil, err
	}
	return m.store.GetCredential(ctx, id)
}

// GetPlaintextPassword decrypts a credential's password on demand. The
// plaintext is not cached.
func (m *Manager) GetPlaintextPassword(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return "", err
	}

	cred, err := m.store.GetCredential(ctx, id)
	if err != nil {
		return "", err
	}
	plain, err := crypto.Decrypt(cred.EncryptedPassword, m.envelopeKey)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// ListCredentials returns credentials ordered by id. An empty or "All"
// filter returns everything; any other value restricts to that group.
func (m *Manager) ListCredentials(ctx context.Context, groupFilter string) ([]*storage.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return nil, err
	}
	return m.store.ListCredentials(ctx, normalizeFilter(groupFilter))
}

// SearchCredentials returns credentials whose site or username contains
// term, case-insensitively, scoped by groupFilter like ListCredentials.
// An empty term is equivalent to ListCredentials.
func (m *Manager) SearchCredentials(ctx context.Context, term, groupFilter string) ([]*storage.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return nil, err
	}
	return m.store.SearchCredentials(ctx, term, normalizeFilter(groupFilter))
}

// AddGroup creates a named group. The name is trimmed; empty names and
// any casing of the reserved "All" are rejected with ErrValidation. A
// name that already exists reports false without an error.
func (m *Manager) AddGroup(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return false, err
	}

	name = strings.TrimSpace(name)
	if err := validateGroupName(name); err != nil {
		return false, err
	}

	err := m.store.AddGroup(ctx, name)
	if errors.Is(err, storage.ErrDuplicateName) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteGroup removes a group and detaches every credential that
// referenced it. The credentials themselves are kept.
func (m *Manager) DeleteGroup(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return err
	}
	return m.store.DeleteGroup(ctx, name)
}

// RenameGroup renames a group and cascades the new name onto all
// referencing credentials. An empty new name behaves as DeleteGroup. A
// collision with an existing group returns storage.ErrDuplicateName.
func (m *Manager) RenameGroup(ctx context.Context, oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return err
	}

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return m.store.DeleteGroup(ctx, oldName)
	}
	if err := validateGroupName(newName); err != nil {
		return err
	}
	return m.store.RenameGroup(ctx, oldName, newName)
}

// ListGroups returns the group filter values: the virtual "All" first,
// then the stored groups sorted by name.
func (m *Manager) ListGroups(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return nil, err
	}

	groups, err := m.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string{storage.AllGroups}, groups...), nil
}

// Setting returns a vault preference, falling back to defaultValue when
// the key is absent. Settings are not security-sensitive and are
// readable in any state.
func (m *Manager) Setting(ctx context.Context, key, defaultValue string) (string, error) {
	return m.store.GetSetting(ctx, key, defaultValue)
}

// SetSetting stores a vault preference
func (m *Manager) SetSetting(ctx context.Context, key, value string) error {
	return m.store.SetSetting(ctx, key, value)
}

// ensureGroup normalizes a group reference for a credential write:
// empty or reserved names mean "no group"; anything else is registered
// in the group index on first use. Caller holds m.mu.
func (m *Manager) ensureGroup(ctx context.Context, group string) (*string, error) {
	group = strings.TrimSpace(group)
	if group == "" || strings.EqualFold(group, storage.AllGroups) {
		return nil, nil
	}

	err := m.store.AddGroup(ctx, group)
	if err != nil && !errors.Is(err, storage.ErrDuplicateName) {
		return nil, err
	}
	return &group, nil
}

func normalizeFilter(groupFilter string) string {
	if groupFilter == "" {
		return storage.AllGroups
	}
	return groupFilter
}

func validateCredential(site, password string) error {
	if strings.TrimSpace(site) == "" {
		return fmt.Errorf("%w: site must not be empty", ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", ErrValidation)
	}
	return nil
}

func validateGroupName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: group name must not be empty", ErrValidation)
	}
	if strings.EqualFold(name, storage.AllGroups) {
		return fmt.Errorf("%w: %q is a reserved group name", ErrValidation, name)
	}
	return nil
}

func validatePassphrase(passphrase string) (string, error) {
	passphrase = strings.TrimSpace(passphrase)
	if len(passphrase) < MinPassphraseLength {
		return "", fmt.Errorf("%w: passphrase must be at least %d characters", ErrValidation, MinPassphraseLength)
	}
	return passphrase, nil
}
