package vault

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/vaultkeep/internal/crypto"
	"github.com/dshills/vaultkeep/internal/storage"
)

// ChangeMasterPassword rotates the master passphrase and envelope key:
// every credential is decrypted under the current key and re-encrypted
// under a fresh one, entirely in memory, and only then is the whole
// result committed in a single store transaction together with the new
// master record. If any credential fails to decrypt, nothing is written
// and the vault stays under the old key.
//
// The manager lock is held for the full sequence, so no credential
// mutation can interleave with an in-progress rotation. This is the one
// operation whose duration grows with the number of stored credentials.
func (m *Manager) ChangeMasterPassword(ctx context.Context, newPassphrase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireUnlocked(); err != nil {
		return err
	}

	newPassphrase, err := validatePassphrase(newPassphrase)
	if err != nil {
		return err
	}

	creds, err := m.store.ListCredentials(ctx, storage.AllGroups)
	if err != nil {
		return fmt.Errorf("failed to load credentials for rotation: %w", err)
	}

	newKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	// Stage all re-encrypted blobs in memory before touching the store.
	staged := make(map[int64][]byte, len(creds))
	var stagedMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, cred := range creds {
		g.Go(func() error {
			plain, err := crypto.Decrypt(cred.EncryptedPassword, m.envelopeKey)
			if err != nil {
				return fmt.Errorf("failed to decrypt credential %d: %w", cred.ID, err)
			}
			sealed, err := crypto.Encrypt(plain, newKey)
			if err != nil {
				return fmt.Errorf("failed to re-encrypt credential %d: %w", cred.ID, err)
			}
			stagedMu.Lock()
			staged[cred.ID] = sealed
			stagedMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rotation aborted: %w", err)
	}

	hash, err := crypto.HashPassphrase(newPassphrase)
	if err != nil {
		return err
	}

	record := &storage.MasterRecord{PassphraseHash: hash, EnvelopeKey: newKey}
	if err := m.store.ReencryptAll(ctx, record, staged); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}

	// Committed; swap the session key.
	for i := range m.envelopeKey {
		m.envelopeKey[i] = 0
	}
	m.envelopeKey = newKey
	return nil
}
