// Package throttle tracks failed admin logins per source address and
// locks an address out after too many misses. State lives in Redis so
// the lockout holds across instances and restarts.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps transport-level Redis failures.
var ErrStoreUnavailable = errors.New("login throttle store unavailable")

// recordFailureLua bumps the failure counter and, when the threshold is
// hit, swaps the counter for a lock in the same step. The counter
// carries the lockout window as its TTL so stale failures age out on
// their own.
// KEYS[1] = failure counter
// KEYS[2] = lock key
// ARGV[1] = max failures
// ARGV[2] = lockout seconds
// Returns 1 when this failure tripped the lockout, else 0.
var recordFailureLua = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
if n >= tonumber(ARGV[1]) then
  redis.call('DEL', KEYS[1])
  redis.call('SET', KEYS[2], '1', 'EX', ARGV[2])
  return 1
end
return 0
`)

// Throttle is the per-address lockout gate for the admin password flow.
type Throttle struct {
	rdb     *redis.Client
	prefix  string
	max     int
	lockout time.Duration
}

// New returns a Throttle namespacing its keys under prefix ("login" when
// empty).
func New(rdb *redis.Client, prefix string, max int, lockout time.Duration) *Throttle {
	if prefix == "" {
		prefix = "login"
	}
	if max < 1 {
		max = 1
	}
	if lockout <= 0 {
		lockout = time.Minute
	}
	return &Throttle{rdb: rdb, prefix: prefix, max: max, lockout: lockout}
}

func (t *Throttle) failKey(addr string) string { return t.prefix + ":fail:" + addr }
func (t *Throttle) lockKey(addr string) string { return t.prefix + ":lock:" + addr }

// IsLocked reports whether the address is inside an active lockout.
// Expiry clears the lock lazily, there is no explicit unlock.
func (t *Throttle) IsLocked(ctx context.Context, addr string) (bool, error) {
	n, err := t.rdb.Exists(ctx, t.lockKey(addr)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure counts one failed attempt and reports whether it tripped
// the lockout. Tripping resets the counter, so after the lock expires
// the address starts from a clean slate.
func (t *Throttle) RecordFailure(ctx context.Context, addr string) (bool, error) {
	secs := int(t.lockout / time.Second)
	if secs < 1 {
		secs = 1
	}
	tripped, err := recordFailureLua.Run(ctx, t.rdb,
		[]string{t.failKey(addr), t.lockKey(addr)}, t.max, secs).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tripped == 1, nil
}

// RecordSuccess clears the failure counter for the address.
func (t *Throttle) RecordSuccess(ctx context.Context, addr string) error {
	if err := t.rdb.Del(ctx, t.failKey(addr)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
