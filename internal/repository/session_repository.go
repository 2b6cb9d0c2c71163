package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/blog-auth-service/internal/model"
)

// SessionRepo persists refresh sessions, one row per issued refresh
// token. Rows are never mutated to a new identity: rotation revokes the
// old row and inserts a successor under a fresh id.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts an active session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, role, token_digest, user_agent, source_ip, expires_at) VALUES (?,?,?,?,?,?,?)",
		s.ID, s.UserID, s.Role, s.TokenDigest, truncateUA(s.UserAgent), s.SourceIP, s.ExpiresAt)
	return err
}

// Rotate revokes the old session row and inserts its successor as one
// transaction. The row is locked first so concurrent rotations of the
// same session serialize; the conditional UPDATE then guarantees exactly
// one winner even if the lock semantics ever change. Callers translate
// every sentinel into an unauthorized response and treat ErrDigestMismatch
// as a security signal.
func (r *SessionRepo) Rotate(ctx context.Context, oldID, presentedDigest string, next *model.Session) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// Ensure rollback or commit at the end
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var (
		storedDigest string
		revokedAt    sql.NullTime
		expiresAt    time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT token_digest, revoked_at, expires_at FROM sessions WHERE id = ? FOR UPDATE`, oldID,
	).Scan(&storedDigest, &revokedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	if revokedAt.Valid {
		return ErrSessionRevoked
	}
	if time.Now().UTC().After(expiresAt) {
		return ErrSessionRevoked
	}
	if storedDigest != presentedDigest {
		return ErrDigestMismatch
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = NOW(), rotated_at = NOW() WHERE id = ? AND revoked_at IS NULL", oldID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A concurrent rotation got here first.
		return ErrSessionRevoked
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, role, token_digest, user_agent, source_ip, expires_at) VALUES (?,?,?,?,?,?,?)",
		next.ID, next.UserID, next.Role, next.TokenDigest, truncateUA(next.UserAgent), next.SourceIP, next.ExpiresAt)
	return err
}

// Revoke marks a session revoked. Already-revoked and missing sessions
// are not errors; logout must stay idempotent.
func (r *SessionRepo) Revoke(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = NOW() WHERE id = ? AND revoked_at IS NULL", sessionID)
	return err
}

// RevokeAllForUser revokes every active session for a subject+role.
// Used on account deletion and forced logout-everywhere.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID uint64, role string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = NOW() WHERE user_id = ? AND role = ? AND revoked_at IS NULL",
		userID, role)
	return err
}

func truncateUA(ua string) string {
	if len(ua) > model.MaxUserAgentLen {
		return ua[:model.MaxUserAgentLen]
	}
	return ua
}
