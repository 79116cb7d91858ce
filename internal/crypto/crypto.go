package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// KeySize is the envelope key size in bytes (AES-256).
const KeySize = 32

// ErrDecryption is returned when a ciphertext is malformed, truncated, or
// was produced under a different key.
var ErrDecryption = errors.New("decryption failed")

// HashPassphrase produces a salted bcrypt digest of the passphrase.
// Each call embeds a fresh salt, so repeated calls on the same input
// yield different digests.
func HashPassphrase(passphrase string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passphrase: %w", err)
	}
	return hash, nil
}

// VerifyPassphrase reports whether the passphrase matches the stored
// digest. The comparison is constant-time; a mismatch returns false,
// never an error.
func VerifyPassphrase(passphrase string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(passphrase)) == nil
}

// GenerateKey produces fresh random symmetric key material, independent
// across calls.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM under key. The random nonce is
// prepended to the returned ciphertext, so encrypting the same plaintext
// twice yields different outputs.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt. It returns
// ErrDecryption if the input is truncated, malformed, or fails
// authentication under key.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecryption)
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return gcm, nil
}
