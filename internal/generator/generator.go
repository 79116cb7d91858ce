// Package generator produces random passwords for new credentials.
package generator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// MaxLength is the longest password Generate will produce.
const MaxLength = 100

// Alphabet is the character set passwords are drawn from: ASCII letters,
// digits, and punctuation.
const Alphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ErrInvalidLength is returned when the requested length is outside [1, MaxLength].
var ErrInvalidLength = errors.New("password length must be between 1 and 100")

// Generate returns a random password of exactly length characters.
func Generate(length int) (string, error) {
	if length <= 0 || length > MaxLength {
		return "", ErrInvalidLength
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out), nil
}
