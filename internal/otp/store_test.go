package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = rdb.Close()
		mr.Close()
	}
	return NewStore(rdb, "otp"), mr, cleanup
}

func TestSaveCodeReplacesPrevious(t *testing.T) {
	s, mr, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveCode(ctx, "a@example.com", "111111", 180*time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	// burn one attempt on the old code
	if err := s.Consume(ctx, "a@example.com", "000000", 5); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("want mismatch, got %v", err)
	}
	if err := s.SaveCode(ctx, "a@example.com", "222222", 180*time.Second); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if got := mr.HGet("otp:code:a@example.com", "attempts"); got != "0" {
		t.Fatalf("fresh code inherited attempts: %q", got)
	}
	if ttl := mr.TTL("otp:code:a@example.com"); ttl != 180*time.Second {
		t.Fatalf("ttl: got %s, want 180s", ttl)
	}
	if err := s.Consume(ctx, "a@example.com", "222222", 5); err != nil {
		t.Fatalf("consume fresh code: %v", err)
	}
}

func TestConsumeSingleUse(t *testing.T) {
	s, mr, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveCode(ctx, "a@example.com", "123456", 180*time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Consume(ctx, "a@example.com", "123456", 5); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if mr.Exists("otp:code:a@example.com") {
		t.Fatalf("record should be gone after successful consume")
	}
	if err := s.Consume(ctx, "a@example.com", "123456", 5); !errors.Is(err, ErrCodeMissing) {
		t.Fatalf("replay should be missing, got %v", err)
	}
}

func TestConsumeMismatchKeepsCode(t *testing.T) {
	s, mr, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveCode(ctx, "a@example.com", "123456", 180*time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Consume(ctx, "a@example.com", "654321", 5); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("want mismatch, got %v", err)
	}
	if !mr.Exists("otp:code:a@example.com") {
		t.Fatalf("record must survive a mismatch")
	}
	if got := mr.HGet("otp:code:a@example.com", "attempts"); got != "1" {
		t.Fatalf("attempts after one miss: %q", got)
	}
	if err := s.Consume(ctx, "a@example.com", "123456", 5); err != nil {
		t.Fatalf("correct code after a miss: %v", err)
	}
}

// Five misses spend the budget; the right code on the sixth try is too
// late and burns the record.
func TestConsumeAttemptBudget(t *testing.T) {
	s, mr, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveCode(ctx, "a@example.com", "123456", 180*time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.Consume(ctx, "a@example.com", "000000", 5); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("miss %d: want mismatch, got %v", i+1, err)
		}
	}
	if err := s.Consume(ctx, "a@example.com", "123456", 5); !errors.Is(err, ErrCodeExhausted) {
		t.Fatalf("want exhausted, got %v", err)
	}
	if mr.Exists("otp:code:a@example.com") {
		t.Fatalf("exhausted record should be deleted")
	}
}

func TestConsumeExpired(t *testing.T) {
	s, mr, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.SaveCode(ctx, "a@example.com", "123456", 180*time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(181 * time.Second)
	if err := s.Consume(ctx, "a@example.com", "123456", 5); !errors.Is(err, ErrCodeMissing) {
		t.Fatalf("expired code should read as missing, got %v", err)
	}
}

func TestCooldownWindow(t *testing.T) {
	s, mr, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.StartCooldown(ctx, "a@example.com", 60*time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}
	if in, err := s.InCooldown(ctx, "a@example.com"); err != nil || !in {
		t.Fatalf("expected active cooldown, got %v %v", in, err)
	}
	mr.FastForward(61 * time.Second)
	if in, err := s.InCooldown(ctx, "a@example.com"); err != nil || in {
		t.Fatalf("cooldown should have lapsed, got %v %v", in, err)
	}
}

func TestRequestCounterWindow(t *testing.T) {
	s, mr, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := s.IncrRequests(ctx, "10.0.0.1", time.Hour)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != want {
			t.Fatalf("count: got %d, want %d", n, want)
		}
	}
	mr.FastForward(time.Hour + time.Second)
	n, err := s.IncrRequests(ctx, "10.0.0.1", time.Hour)
	if err != nil {
		t.Fatalf("incr after window: %v", err)
	}
	if n != 1 {
		t.Fatalf("window should have reset the count, got %d", n)
	}
}

func TestDeleteCodeIdempotent(t *testing.T) {
	s, _, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := s.DeleteCode(ctx, "a@example.com"); err != nil {
		t.Fatalf("delete of absent key: %v", err)
	}
	if err := s.SaveCode(ctx, "a@example.com", "123456", 180*time.Second); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteCode(ctx, "a@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Consume(ctx, "a@example.com", "123456", 5); !errors.Is(err, ErrCodeMissing) {
		t.Fatalf("deleted code should be missing, got %v", err)
	}
}
