package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vaultkeep/internal/crypto"
	"github.com/dshills/vaultkeep/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m, err := New(context.Background(), store)
	require.NoError(t, err)
	return m, store
}

func newUnlockedManager(t *testing.T) (*Manager, *storage.SQLiteStore) {
	t.Helper()
	m, store := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, "test123"))
	require.NoError(t, m.Unlock(ctx, "test123"))
	return m, store
}

func TestNew_FreshVaultIsUninitialized(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Equal(t, StateUninitialized, m.State())
	assert.False(t, m.Initialized())
}

func TestNew_ExistingVaultIsLocked(t *testing.T) {
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	m, err := New(ctx, store)
	require.NoError(t, err)
	require.NoError(t, m.Initialize(ctx, "test123"))

	// A second manager over the same store starts Locked.
	m2, err := New(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, m2.State())
	assert.True(t, m2.Initialized())
}

func TestInitialize(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Initialize(ctx, "test123"))
	assert.Equal(t, StateLocked, m.State())

	err := m.Initialize(ctx, "other999")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitialize_ShortPassphrase(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, passphrase := range []string{"", "abc", "   abc   "} {
		err := m.Initialize(ctx, passphrase)
		assert.ErrorIs(t, err, ErrValidation, "passphrase %q", passphrase)
	}
	assert.Equal(t, StateUninitialized, m.State())
}

func TestUnlock(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	err := m.Unlock(ctx, "test123")
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, m.Initialize(ctx, "test123"))

	err = m.Unlock(ctx, "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassphrase)
	assert.Equal(t, StateLocked, m.State())

	require.NoError(t, m.Unlock(ctx, "test123"))
	assert.Equal(t, StateUnlocked, m.State())
}

func TestLock(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	m.Lock()
	assert.Equal(t, StateLocked, m.State())

	// Locking twice is harmless.
	m.Lock()
	assert.Equal(t, StateLocked, m.State())

	_, err := m.ListCredentials(ctx, "All")
	assert.ErrorIs(t, err, ErrNotUnlocked)
}

func TestOperationsRequireUnlocked(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, "test123"))

	_, err := m.AddCredential(ctx, "example.com", "u", "p", "")
	assert.ErrorIs(t, err, ErrNotUnlocked)
	assert.ErrorIs(t, m.UpdateCredential(ctx, 1, "s", "u", "p", ""), ErrNotUnlocked)
	assert.ErrorIs(t, m.DeleteCredential(ctx, 1), ErrNotUnlocked)
	_, err = m.GetCredential(ctx, 1)
	assert.ErrorIs(t, err, ErrNotUnlocked)
	_, err = m.GetPlaintextPassword(ctx, 1)
	assert.ErrorIs(t, err, ErrNotUnlocked)
	_, err = m.SearchCredentials(ctx, "x", "All")
	assert.ErrorIs(t, err, ErrNotUnlocked)
	_, err = m.AddGroup(ctx, "Work")
	assert.ErrorIs(t, err, ErrNotUnlocked)
	assert.ErrorIs(t, m.DeleteGroup(ctx, "Work"), ErrNotUnlocked)
	assert.ErrorIs(t, m.RenameGroup(ctx, "Work", "Play"), ErrNotUnlocked)
	_, err = m.ListGroups(ctx)
	assert.ErrorIs(t, err, ErrNotUnlocked)
	assert.ErrorIs(t, m.ChangeMasterPassword(ctx, "newpass1"), ErrNotUnlocked)
}

func TestAddCredential(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "example.com", "user", "Secr3t!", "Personal")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	cred, err := m.GetCredential(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "example.com", cred.Site)
	assert.Equal(t, "user", cred.Username)
	require.NotNil(t, cred.GroupName)
	assert.Equal(t, "Personal", *cred.GroupName)

	// The stored password is ciphertext, not the plaintext.
	assert.NotEqual(t, []byte("Secr3t!"), cred.EncryptedPassword)

	// The group was auto-created.
	groups, err := m.ListGroups(ctx)
	require.NoError(t, err)
	assert.Contains(t, groups, "Personal")
}

func TestAddCredential_Validation(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	_, err := m.AddCredential(ctx, "", "user", "pass", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = m.AddCredential(ctx, "   ", "user", "pass", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = m.AddCredential(ctx, "example.com", "user", "", "")
	assert.ErrorIs(t, err, ErrValidation)

	// Empty username is legal.
	_, err = m.AddCredential(ctx, "example.com", "", "pass", "")
	assert.NoError(t, err)
}

func TestAddCredential_ReservedGroupMeansNone(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "example.com", "user", "pass", "All")
	require.NoError(t, err)

	cred, err := m.GetCredential(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, cred.GroupName)

	groups, err := m.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"All"}, groups)
}

func TestGetPlaintextPassword(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "example.com", "user", "Secr3t!", "")
	require.NoError(t, err)

	plain, err := m.GetPlaintextPassword(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Secr3t!", plain)

	_, err = m.GetPlaintextPassword(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetPlaintextPassword_CorruptCiphertext(t *testing.T) {
	m, store := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "example.com", "user", "Secr3t!", "")
	require.NoError(t, err)

	// Corrupt the stored blob underneath the manager.
	require.NoError(t, store.UpdateCredential(ctx, &storage.Credential{
		ID: id, Site: "example.com", Username: "user", EncryptedPassword: []byte("garbage"),
	}))

	_, err = m.GetPlaintextPassword(ctx, id)
	assert.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestUpdateCredential(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "old.com", "olduser", "oldpass", "")
	require.NoError(t, err)

	require.NoError(t, m.UpdateCredential(ctx, id, "new.com", "newuser", "newpass", "Work"))

	cred, err := m.GetCredential(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new.com", cred.Site)
	require.NotNil(t, cred.GroupName)
	assert.Equal(t, "Work", *cred.GroupName)

	plain, err := m.GetPlaintextPassword(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "newpass", plain)

	err = m.UpdateCredential(ctx, 9999, "x.com", "u", "p", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteCredential_Idempotent(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "example.com", "user", "pass", "")
	require.NoError(t, err)

	require.NoError(t, m.DeleteCredential(ctx, id))
	require.NoError(t, m.DeleteCredential(ctx, id))
	require.NoError(t, m.DeleteCredential(ctx, 9999))
}

func TestSearchCredentials_Scoping(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	_, err := m.AddCredential(ctx, "github.com", "a", "p1", "Work")
	require.NoError(t, err)
	_, err = m.AddCredential(ctx, "gitlab.com", "b", "p2", "Personal")
	require.NoError(t, err)

	results, err := m.SearchCredentials(ctx, "git", "Work")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "github.com", results[0].Site)

	results, err = m.SearchCredentials(ctx, "git", "All")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Empty term is equivalent to list.
	results, err = m.SearchCredentials(ctx, "", "All")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Empty filter means All.
	results, err = m.SearchCredentials(ctx, "git", "")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestAddGroup_ReservedNames(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	for _, name := range []string{"All", "all", "ALL", "  all  ", ""} {
		added, err := m.AddGroup(ctx, name)
		assert.ErrorIs(t, err, ErrValidation, "name %q", name)
		assert.False(t, added)
	}
}

func TestAddGroup_Duplicate(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	added, err := m.AddGroup(ctx, "Work")
	require.NoError(t, err)
	assert.True(t, added)

	// Duplicate is reported, not an error.
	added, err = m.AddGroup(ctx, "Work")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestListGroups_AllFirst(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	for _, name := range []string{"Zeta", "Alpha"} {
		_, err := m.AddGroup(ctx, name)
		require.NoError(t, err)
	}

	groups, err := m.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Alpha", "Zeta"}, groups)
}

func TestDeleteGroup_CredentialSurvives(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "github.com", "a", "p", "Work")
	require.NoError(t, err)

	require.NoError(t, m.DeleteGroup(ctx, "Work"))

	cred, err := m.GetCredential(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, cred.GroupName)
}

func TestRenameGroup_Cascades(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "example.com", "u", "p", "Old")
	require.NoError(t, err)

	require.NoError(t, m.RenameGroup(ctx, "Old", "New"))

	cred, err := m.GetCredential(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, cred.GroupName)
	assert.Equal(t, "New", *cred.GroupName)
}

func TestRenameGroup_EmptyNewNameDeletes(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	id, err := m.AddCredential(ctx, "example.com", "u", "p", "Old")
	require.NoError(t, err)

	require.NoError(t, m.RenameGroup(ctx, "Old", ""))

	cred, err := m.GetCredential(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, cred.GroupName)

	groups, err := m.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"All"}, groups)
}

func TestRenameGroup_Duplicate(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	_, err := m.AddGroup(ctx, "A")
	require.NoError(t, err)
	_, err = m.AddGroup(ctx, "B")
	require.NoError(t, err)

	err = m.RenameGroup(ctx, "A", "B")
	assert.ErrorIs(t, err, storage.ErrDuplicateName)
}

func TestVerifyMasterPassphrase(t *testing.T) {
	m, _ := newUnlockedManager(t)
	ctx := context.Background()

	ok, err := m.VerifyMasterPassphrase(ctx, "test123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.VerifyMasterPassphrase(ctx, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Settings work in any state.
	value, err := m.Setting(ctx, storage.SettingTheme, "")
	require.NoError(t, err)
	assert.Equal(t, "Light", value)

	require.NoError(t, m.SetSetting(ctx, storage.SettingTheme, "Dark"))
	value, err = m.Setting(ctx, storage.SettingTheme, "")
	require.NoError(t, err)
	assert.Equal(t, "Dark", value)
}
