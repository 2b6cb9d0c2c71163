// Package token issues and verifies the two JWT families used by the
// service. Access tokens are short-lived and stateless: no store lookup
// happens on verification, which keeps request authorization cheap.
// Refresh tokens are long-lived and carry a session id binding them to a
// durable session row, so they stay individually revocable even though
// the signature alone would validate until expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

const issuerName = "blog-auth-service"

// Leeway tolerated on exp/iat checks to absorb small clock skew between
// instances.
const parseLeeway = 30 * time.Second

var (
	// ErrInvalid covers every signature, shape and expiry failure. Callers
	// map it to an unauthorized response without distinguishing further.
	ErrInvalid = errors.New("invalid token")
	// ErrSuperseded marks an access token issued before the configured
	// cutoff. Same outward outcome as ErrInvalid, logged separately.
	ErrSuperseded = errors.New("token issued before cutoff")
)

// Claims is the payload shared by both token families. SessionID is set
// only on refresh tokens; Email only on access tokens.
type Claims struct {
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with HS256. The two families use
// separate secrets so leaking one does not compromise the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuedAfter   time.Time
}

// New validates the signing configuration and returns an Issuer.
// issuedAfter is an optional RFC3339 timestamp; access tokens minted
// before it are rejected on verification. That is the emergency lever for
// mass-invalidating stateless access tokens, which cannot be revoked one
// by one.
func New(accessSecret, refreshSecret string, accessTTLMin, refreshTTLDays int, issuedAfter string) (*Issuer, error) {
	if len(accessSecret) < 32 {
		return nil, errors.New("access token secret must be at least 32 bytes")
	}
	if len(refreshSecret) < 32 {
		return nil, errors.New("refresh token secret must be at least 32 bytes")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTLMin <= 0 || refreshTTLDays <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	iss := &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     time.Duration(accessTTLMin) * time.Minute,
		refreshTTL:    time.Duration(refreshTTLDays) * 24 * time.Hour,
	}
	if issuedAfter != "" {
		t, err := time.Parse(time.RFC3339, issuedAfter)
		if err != nil {
			return nil, fmt.Errorf("parse ACCESS_ISSUED_AFTER: %w", err)
		}
		iss.issuedAfter = t.UTC()
	}
	return iss, nil
}

// IssueAccess signs a short-lived access token for the subject.
func (i *Issuer) IssueAccess(subject, role, email string) (string, time.Time, error) {
	return i.sign(i.accessSecret, i.accessTTL, subject, Claims{Role: role, Email: email})
}

// IssueRefresh signs a long-lived refresh token bound to a session id.
func (i *Issuer) IssueRefresh(subject, role, sessionID string) (string, time.Time, error) {
	if sessionID == "" {
		return "", time.Time{}, errors.New("refresh token requires a session id")
	}
	return i.sign(i.refreshSecret, i.refreshTTL, subject, Claims{Role: role, SessionID: sessionID})
}

// VerifyAccess checks signature, expiry and the issued-after cutoff.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	cl, err := i.parse(token, i.accessSecret)
	if err != nil {
		return nil, err
	}
	if !i.issuedAfter.IsZero() {
		if cl.IssuedAt == nil || cl.IssuedAt.Time.Before(i.issuedAfter) {
			return nil, ErrSuperseded
		}
	}
	return cl, nil
}

// VerifyRefresh checks signature and expiry and requires the session
// binding to be present.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	cl, err := i.parse(token, i.refreshSecret)
	if err != nil {
		return nil, err
	}
	if cl.SessionID == "" {
		return nil, ErrInvalid
	}
	return cl, nil
}

func (i *Issuer) sign(secret []byte, ttl time.Duration, subject string, cl Claims) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	cl.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuerName,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *Issuer) parse(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Reject tokens using a different algorithm family.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuerName),
		jwt.WithLeeway(parseLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cl, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	return cl, nil
}
