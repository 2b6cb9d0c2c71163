package utils // package utils provides small crypto helpers shared across the auth flows

import (
	"crypto/rand" // secure random number generation
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// NewOTP returns a numeric one-time code of the given length. Each digit
// is drawn independently from crypto/rand so the distribution stays
// uniform; leading zeros appear at the same rate as any other digit,
// which keeps the code zero-padded by construction.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp length")
	}
	var b strings.Builder
	b.Grow(digits)
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// NewCSRFSeed returns the random value set as the CSRF seed cookie and
// echoed back by clients in the CSRF header. 32 bytes of entropy, hex
// encoded.
func NewCSRFSeed() (string, error) {
	return randomHex(32)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
