// Package repository defines error types that are reused across the
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// string matching. The rotation sentinels all collapse to the same
// unauthorized response at the HTTP layer; ErrDigestMismatch is kept
// separate because the caller logs it as a potential security event
// before collapsing it.
package repository

import "errors"

// ErrSessionNotFound is returned when no session row exists for the
// given id or digest.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionRevoked is returned when a rotation presents a session that
// is already revoked or expired, including the case where a concurrent
// rotation won the race for the same row.
var ErrSessionRevoked = errors.New("session revoked")

// ErrDigestMismatch is returned when the presented refresh token does
// not match the digest stored for its session id. A signed, unexpired
// token pointing at a live session it does not belong to suggests token
// theft or replay.
var ErrDigestMismatch = errors.New("session token digest mismatch")

// ErrUserNotFound is returned when a profile row does not exist.
var ErrUserNotFound = errors.New("user not found")
