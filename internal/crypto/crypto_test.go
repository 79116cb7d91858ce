package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassphrase_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassphrase("test123")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, VerifyPassphrase("test123", hash))
	assert.False(t, VerifyPassphrase("test124", hash))
	assert.False(t, VerifyPassphrase("", hash))
}

func TestHashPassphrase_SaltedDigestsDiffer(t *testing.T) {
	h1, err := HashPassphrase("same input")
	require.NoError(t, err)
	h2, err := HashPassphrase("same input")
	require.NoError(t, err)

	// Fresh salt per call, both still verify.
	assert.False(t, bytes.Equal(h1, h2))
	assert.True(t, VerifyPassphrase("same input", h1))
	assert.True(t, VerifyPassphrase("same input", h2))
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, k1, KeySize)

	k2, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, bytes.Equal(k1, k2))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	for _, plaintext := range []string{"Secr3t!", "", "a", "unicode пароль 密码"} {
		sealed, err := Encrypt([]byte(plaintext), key)
		require.NoError(t, err)

		opened, err := Decrypt(sealed, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(opened))
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	c1, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	c2, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(c1, c2))

	p1, err := Decrypt(c1, key)
	require.NoError(t, err)
	p2, err := Decrypt(c2, key)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	key2, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := Encrypt([]byte("secret"), key1)
	require.NoError(t, err)

	_, err = Decrypt(sealed, key2)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestDecrypt_Malformed(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	// Too short to contain a nonce.
	_, err = Decrypt([]byte{0x01, 0x02}, key)
	assert.ErrorIs(t, err, ErrDecryption)

	// Flipped bit fails authentication.
	sealed, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF
	_, err = Decrypt(sealed, key)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestEncrypt_InvalidKeyLength(t *testing.T) {
	_, err := Encrypt([]byte("secret"), []byte("short"))
	assert.Error(t, err)
}
