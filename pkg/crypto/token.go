package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SecretBytes is the entropy of a capability secret (256 bits).
const SecretBytes = 32

var randomRead = rand.Read

// GenerateSecret returns a URL-safe random secret carrying SecretBytes of entropy.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := randomRead(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 of a secret. Secrets are high-entropy, so a fast
// deterministic digest is enough and keeps lookup by hash possible.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two hex digests in constant time.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
