package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const oneTimeTokenBytes = 32

// NewOneTime generates a high-entropy single-use token. It returns the
// plaintext handed to the user exactly once, and the SHA-256 hex digest
// which is the only thing ever persisted or compared.
func NewOneTime() (plain, hash string, err error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)
	return plain, HashOneTime(plain), nil
}

// HashOneTime returns the SHA-256 hex digest of a plaintext one-time
// token, matching the form stored by NewOneTime.
func HashOneTime(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
