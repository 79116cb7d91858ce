// Package crypto implements the vault's cryptographic primitives.
//
// Two concerns live here:
//   - Passphrase hashing and verification using bcrypt. Digests are
//     salted and slow by construction; verification is constant-time.
//   - Authenticated encryption of stored passwords using AES-256-GCM.
//     Ciphertexts carry their nonce, so identical plaintexts encrypt to
//     different bytes on every call.
//
// The package places no policy on input lengths. Minimum passphrase
// length is enforced by the vault manager before values reach this
// package.
//
// # Basic Usage
//
//	hash, err := crypto.HashPassphrase("correct horse")
//	ok := crypto.VerifyPassphrase("correct horse", hash) // true
//
//	key, _ := crypto.GenerateKey()
//	sealed, _ := crypto.Encrypt([]byte("hunter2"), key)
//	plain, err := crypto.Decrypt(sealed, key)
//
// Decrypt returns ErrDecryption (test with errors.Is) for any malformed,
// truncated, or wrong-key ciphertext. It never returns garbage bytes.
package crypto
