// Package otp implements the one-time passcode login engine: a Redis
// store holding pending codes and counters, and the request/verify flows
// around it. All shared mutable state lives in Redis under atomic
// operations, so multiple service instances can share one keyspace.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCodeMissing covers "never issued" and "expired": the key is
	// simply gone. Callers must not distinguish the two.
	ErrCodeMissing = errors.New("otp code missing or expired")
	// ErrCodeExhausted means the attempt budget was spent; the record is
	// deleted as a side effect.
	ErrCodeExhausted = errors.New("otp attempt budget exhausted")
	// ErrCodeMismatch means the presented code was wrong. The record
	// stays live with one attempt consumed.
	ErrCodeMismatch = errors.New("otp code mismatch")
	// ErrStoreUnavailable wraps transport-level Redis failures.
	ErrStoreUnavailable = errors.New("otp store unavailable")
)

// consumeCodeLua runs the verification state machine for one key
// atomically. The attempt counter is incremented BEFORE the comparison
// so a crash between compare and persist can never grant extra retries.
// KEYS[1] = code key
// ARGV[1] = presented code
// ARGV[2] = max attempts
// Returns one of: "missing", "exhausted", "mismatch", "ok".
var consumeCodeLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'missing'
end
local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if attempts > tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
  return 'exhausted'
end
local code = redis.call('HGET', KEYS[1], 'code')
if code ~= ARGV[1] then
  return 'mismatch'
end
redis.call('DEL', KEYS[1])
return 'ok'
`)

// saveCodeLua replaces any pending code under the key in one step so a
// fresh code never inherits the previous record's attempt count.
// KEYS[1] = code key
// ARGV[1] = code
// ARGV[2] = ttl seconds
var saveCodeLua = redis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'code', ARGV[1], 'attempts', '0')
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// Store keeps pending OTP codes, resend cooldowns and per-address
// request counters in Redis.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// NewStore returns a Store namespacing its keys under prefix
// ("otp" when empty).
func NewStore(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "otp"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) codeKey(email string) string     { return s.prefix + ":code:" + email }
func (s *Store) cooldownKey(email string) string { return s.prefix + ":cd:" + email }
func (s *Store) quotaKey(addr string) string     { return s.prefix + ":rq:" + addr }

// SaveCode stores a pending code with its TTL, replacing any previous
// one. At most one live code exists per email.
func (s *Store) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	if err := saveCodeLua.Run(ctx, s.rdb, []string{s.codeKey(email)}, code, secs).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteCode removes a pending code. Missing keys are fine: this is the
// rollback path after a failed mail send and must be idempotent.
func (s *Store) DeleteCode(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, s.codeKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Consume runs the atomic verify state machine against the stored code.
// nil means the code matched and the record was deleted (single use).
func (s *Store) Consume(ctx context.Context, email, code string, maxAttempts int) error {
	status, err := consumeCodeLua.Run(ctx, s.rdb, []string{s.codeKey(email)}, code, maxAttempts).Text()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	switch status {
	case "ok":
		return nil
	case "missing":
		return ErrCodeMissing
	case "exhausted":
		return ErrCodeExhausted
	case "mismatch":
		return ErrCodeMismatch
	default:
		return fmt.Errorf("%w: unexpected consume status %q", ErrStoreUnavailable, status)
	}
}

// InCooldown reports whether the post-send resend window is still open
// for the email.
func (s *Store) InCooldown(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.cooldownKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// StartCooldown opens the resend window after a successful send.
func (s *Store) StartCooldown(ctx context.Context, email string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.cooldownKey(email), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IncrRequests bumps the fixed-window request counter for a source
// address and returns the running count. The window TTL is stamped on
// the first increment only, so the count resets when the window lapses.
func (s *Store) IncrRequests(ctx context.Context, addr string, window time.Duration) (int64, error) {
	key := s.quotaKey(addr)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return n, nil
}
