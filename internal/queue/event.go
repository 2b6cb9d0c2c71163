// Package queue defines message payloads exchanged over the message broker.
package queue

// SecurityQueue is the broker queue security events travel over.
const SecurityQueue = "auth.security"

// Event types published by the auth flows.
const (
	EventFingerprintMismatch = "session.fingerprint_mismatch"
	EventAdminLockout        = "admin.lockout"
	EventSessionsRevoked     = "sessions.revoked_all"
	EventOTPQuotaExceeded    = "otp.quota_exceeded"
)

// SecurityEvent is published when an auth flow observes something worth
// an audit trail: a refresh token presented against the wrong session,
// an admin address getting locked out, a forced logout-everywhere. It
// carries enough information for downstream consumers to log or alert
// without querying the primary database.
type SecurityEvent struct {
	Type       string `json:"type"`                 // one of the Event* constants
	Subject    string `json:"subject,omitempty"`    // user id or email the event concerns
	Role       string `json:"role,omitempty"`       // role of the subject, when known
	SessionID  string `json:"session_id,omitempty"` // session involved, when any
	SourceIP   string `json:"source_ip,omitempty"`  // address the triggering request came from
	UserAgent  string `json:"user_agent,omitempty"` // client string of the triggering request
	Detail     string `json:"detail,omitempty"`     // free-form context
	OccurredAt string `json:"occurred_at"`          // RFC3339 UTC
}
