package utils

import (
	"crypto/sha256" // SHA-256 digest of signed refresh tokens
	"encoding/hex"
)

// TokenDigest returns the SHA-256 hex digest of a signed token. Session
// rows store this digest instead of the token itself: it gives O(1)
// lookup and a collision-resistant equality check during rotation, while
// the token's own signature remains the actual authorization secret.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
