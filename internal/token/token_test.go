package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	testAccessSecret  = "access-secret-0123456789abcdef-0123456789"
	testRefreshSecret = "refresh-secret-0123456789abcdef-012345678"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := New(testAccessSecret, testRefreshSecret, 10, 30, "")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return iss
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New("short", testRefreshSecret, 10, 30, ""); err == nil {
		t.Fatalf("short access secret accepted")
	}
	if _, err := New(testAccessSecret, "short", 10, 30, ""); err == nil {
		t.Fatalf("short refresh secret accepted")
	}
	if _, err := New(testAccessSecret, testAccessSecret, 10, 30, ""); err == nil {
		t.Fatalf("identical secrets accepted")
	}
	if _, err := New(testAccessSecret, testRefreshSecret, 0, 30, ""); err == nil {
		t.Fatalf("zero access ttl accepted")
	}
	if _, err := New(testAccessSecret, testRefreshSecret, 10, 30, "yesterday"); err == nil {
		t.Fatalf("junk cutoff accepted")
	}
}

func TestAccessRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)
	tok, exp, err := iss.IssueAccess("42", "ADMIN", "admin@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if until := time.Until(exp); until < 9*time.Minute || until > 11*time.Minute {
		t.Fatalf("expiry off: %s from now", until)
	}
	cl, err := iss.VerifyAccess(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if cl.Subject != "42" || cl.Role != "ADMIN" || cl.Email != "admin@example.com" {
		t.Fatalf("claims round trip: %+v", cl)
	}
	if cl.SessionID != "" {
		t.Fatalf("access token carries a session id: %q", cl.SessionID)
	}
	if cl.ID == "" {
		t.Fatalf("jti missing")
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)
	tok, _, err := iss.IssueRefresh("7", "USER", "sess-uuid-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cl, err := iss.VerifyRefresh(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if cl.Subject != "7" || cl.Role != "USER" || cl.SessionID != "sess-uuid-1" {
		t.Fatalf("claims round trip: %+v", cl)
	}
}

func TestIssueRefreshRequiresSessionID(t *testing.T) {
	iss := newTestIssuer(t)
	if _, _, err := iss.IssueRefresh("7", "USER", ""); err == nil {
		t.Fatalf("empty session id accepted")
	}
}

func TestFamiliesDoNotCross(t *testing.T) {
	iss := newTestIssuer(t)
	access, _, err := iss.IssueAccess("1", "USER", "")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := iss.VerifyRefresh(access); !errors.Is(err, ErrInvalid) {
		t.Fatalf("access token passed refresh verification: %v", err)
	}
	refresh, _, err := iss.IssueRefresh("1", "USER", "s-1")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if _, err := iss.VerifyAccess(refresh); !errors.Is(err, ErrInvalid) {
		t.Fatalf("refresh token passed access verification: %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	iss := newTestIssuer(t)
	other, err := New(strings.Repeat("x", 40), strings.Repeat("y", 40), 10, 30, "")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tok, _, err := iss.IssueAccess("1", "USER", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.VerifyAccess(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("foreign token accepted: %v", err)
	}
}

func TestExpiredAccessRejected(t *testing.T) {
	iss := newTestIssuer(t)
	// Sign an already-expired token by going through the internal signer
	// with a negative TTL larger than the parse leeway.
	tok, _, err := iss.sign(iss.accessSecret, -2*time.Minute, "1", Claims{Role: "USER"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := iss.VerifyAccess(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestIssuedAfterCutoff(t *testing.T) {
	cutoff := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	iss, err := New(testAccessSecret, testRefreshSecret, 10, 30, cutoff)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tok, _, err := iss.IssueAccess("1", "USER", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.VerifyAccess(tok); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("pre-cutoff token accepted: %v", err)
	}
	// The cutoff applies to access tokens only; refresh tokens answer to
	// their session row instead.
	ref, _, err := iss.IssueRefresh("1", "USER", "s-1")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if _, err := iss.VerifyRefresh(ref); err != nil {
		t.Fatalf("refresh rejected by access cutoff: %v", err)
	}
}
