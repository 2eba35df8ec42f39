package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const hashEntropyBytes = 100

var entropy io.Reader = rand.Reader

// GenerateHash returns an opaque URL-safe token: 100 random bytes, SHA-256,
// base64url without padding. It never falls back to a weaker source.
func GenerateHash() (string, error) {
	return generateHashFrom(entropy)
}

func generateHashFrom(r io.Reader) (string, error) {
	buf := make([]byte, hashEntropyBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	sum := sha256.Sum256(buf)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
