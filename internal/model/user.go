package model

import "time"

// Roles stored on users and sessions and carried in token claims.
// Only these two exist: the single configured admin and the OTP-login
// users. The strings are uppercase to match the enum column values.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User represents a lightweight identity profile as stored in the
// `users` table. There is no credential column: the admin secret lives
// in configuration and regular users authenticate via emailed one-time
// codes. Rows are created lazily on first successful login so the
// subject has a stable id to bind sessions to.
type User struct {
	ID        uint64    // users.id
	Email     string    // users.email
	Role      string    // users.role (ADMIN or USER)
	CreatedAt time.Time // users.created_at
}
