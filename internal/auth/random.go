package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSecret returns a random string of exactly length characters drawn
// uniformly from an alphanumeric alphabet. The output scopes refresh-token
// rotation, so it is sourced from crypto/rand rather than math/rand.
func GenerateSecret(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("auth: secret length must be positive")
	}

	alphabetSize := big.NewInt(int64(len(secretAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("read random index: %w", err)
		}
		buf[i] = secretAlphabet[n.Int64()]
	}

	return string(buf), nil
}
