package storage

import (
	"context"
	"time"
)

// AllGroups is the virtual group filter that matches every credential.
// It is never stored; ListGroups always reports it first.
const AllGroups = "All"

// Store defines the interface for persisting vault data
type Store interface {
	// Master record operations
	ReadMaster(ctx context.Context) (*MasterRecord, error)
	WriteMaster(ctx context.Context, record *MasterRecord) error

	// Credential operations
	InsertCredential(ctx context.Context, cred *Credential) error
	UpdateCredential(ctx context.Context, cred *Credential) error
	DeleteCredential(ctx context.Context, id int64) error
	GetCredential(ctx context.Context, id int64) (*Credential, error)
	ListCredentials(ctx context.Context, groupFilter string) ([]*Credential, error)
	SearchCredentials(ctx context.Context, term, groupFilter string) ([]*Credential, error)

	// ReencryptAll atomically replaces every credential ciphertext and the
	// master record in a single transaction. Used by master rotation.
	ReencryptAll(ctx context.Context, record *MasterRecord, passwords map[int64][]byte) error

	// Group operations
	AddGroup(ctx context.Context, name string) error
	DeleteGroup(ctx context.Context, name string) error
	RenameGroup(ctx context.Context, oldName, newName string) error
	ListGroups(ctx context.Context) ([]string, error)

	// Setting operations
	GetSetting(ctx context.Context, key, defaultValue string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Database operations
	Close() error
}

// MasterRecord is the singleton master-authentication record: the bcrypt
// passphrase digest and the envelope key used to seal credential
// passwords. It is created once at vault initialization and only ever
// replaced wholesale by rotation.
type MasterRecord struct {
	PassphraseHash []byte
	EnvelopeKey    []byte
}

// Credential represents one stored secret
type Credential struct {
	ID                int64
	Site              string
	Username          string
	EncryptedPassword []byte  // Ciphertext with prepended nonce and auth tag
	GroupName         *string // Nullable; nil means ungrouped
	DateAdded         time.Time
	DateModified      time.Time
}

// Group represents a named credential tag
type Group struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Recognized setting keys.
const (
	SettingAutoLockEnabled = "auto_lock_enabled"
	SettingAutoLockMinutes = "auto_lock_minutes"
	SettingTheme           = "theme"
)

// DefaultSettings maps every recognized setting key to its default value.
// Missing keys are backfilled at open so vaults created by older versions
// pick up new settings.
var DefaultSettings = map[string]string{
	SettingAutoLockEnabled: "1",
	SettingAutoLockMinutes: "5",
	SettingTheme:           "Light",
}
