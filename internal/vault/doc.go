// Package vault implements the vault manager: the state machine that
// gates every credential operation behind a successful unlock.
//
// # Lifecycle
//
//	Uninitialized --Initialize--> Locked --Unlock--> Unlocked
//	                              Locked <--Lock---- Unlocked
//
// Initialize runs once at first use and writes the master record
// (passphrase digest plus envelope key). Unlock verifies the passphrase
// and loads the envelope key into memory; Lock discards it. Credential
// and group operations outside Unlocked fail with ErrNotUnlocked.
//
// The Manager is the sole owner of the in-memory envelope key. No other
// component may hold, persist, or export it.
//
// # Rotation
//
// ChangeMasterPassword re-encrypts every stored credential under a fresh
// envelope key and commits the result atomically with the new master
// record. See rotation.go for the staging discipline.
//
// # Auto-lock
//
// RunAutoLock polls the idle clock and forces a lock after the
// configured timeout. RegisterActivity resets the clock.
package vault
