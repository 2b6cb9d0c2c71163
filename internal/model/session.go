package model

import "time"

// MaxUserAgentLen bounds the user_agent column; longer values are
// truncated before insert.
const MaxUserAgentLen = 200

// Session models a row in the `sessions` table. One row exists per
// issued refresh token; the signed token itself is never stored, only
// its SHA-256 hex digest for lookup and equality checks. A session is
// active while RevokedAt is null. Rotation revokes the old row and
// inserts a successor under a fresh id, so a row's identity never
// changes in place.
type Session struct {
	ID          string     // sessions.id (uuid v4)
	UserID      uint64     // sessions.user_id
	Role        string     // sessions.role
	TokenDigest string     // sessions.token_digest (sha256 hex)
	UserAgent   string     // sessions.user_agent (truncated)
	SourceIP    string     // sessions.source_ip (audit only)
	ExpiresAt   time.Time  // sessions.expires_at
	CreatedAt   time.Time  // sessions.created_at
	RotatedAt   *time.Time // sessions.rotated_at (nullable)
	RevokedAt   *time.Time // sessions.revoked_at (nullable)
}

// Active reports whether the session can still be rotated.
func (s *Session) Active() bool {
	return s.RevokedAt == nil && time.Now().UTC().Before(s.ExpiresAt)
}
