package utils

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost. The server never
// hashes at runtime; this exists so a hashed ADMIN_SECRET can be minted
// from a small ops command or a test.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// VerifySecret compares a presented secret against the configured admin
// secret. A stored value carrying a bcrypt prefix is treated as a hash;
// anything else is compared as plaintext in constant time.
func VerifySecret(stored, presented string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return VerifyPassword(stored, presented)
	}
	return SecureEqual(stored, presented)
}

// SecureEqual reports whether two strings are byte-equal without leaking
// the position of the first difference.
func SecureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
