// Package storage provides SQLite-based persistence for vault data.
//
// The storage layer manages:
//   - The singleton master-authentication record
//   - Encrypted credential records
//   - Named groups and their references
//   - Vault-wide settings
//
// # Database Layout
//
// A vault is a directory holding two SQLite files plus a lock file:
//
//	data.db    data (credentials), groups
//	unlock.db  master (passphrase hash + envelope key), settings
//	vault.lock flock guard against a second process
//
// unlock.db is attached to the data.db connection under the "unlock"
// schema, so mutations spanning both files (master rotation) commit in a
// single transaction. The on-disk layout is unchanged from older
// releases and external migration scripts keep working against it.
//
// The envelope key is stored in the clear next to the passphrase hash.
// That matches the persisted format this vault has always used; changing
// it (e.g. wrapping the key with a passphrase-derived key) would break
// existing vaults.
//
// # Schema Migrations
//
// Migrations are semver-versioned and recorded in a schema_version
// table. They run once at open and every step is idempotent, so a vault
// already migrated by an external script passes through untouched.
//
// # Basic Usage
//
//	store, err := storage.Open("~/.vaultkeep")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	creds, err := store.ListCredentials(ctx, storage.AllGroups)
//
// All list and search results are ordered by ascending id. Search is a
// case-insensitive substring match over site and username.
package storage
