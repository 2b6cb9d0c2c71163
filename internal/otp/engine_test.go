package otp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/iliyamo/blog-auth-service/internal/apperr"
	"github.com/iliyamo/blog-auth-service/internal/config"
)

type sentMail struct {
	to, subject, text, html string
}

type fakeSender struct {
	configured bool
	fail       bool
	calls      []sentMail
}

func (f *fakeSender) Send(_ context.Context, to, subject, text, html string) error {
	f.calls = append(f.calls, sentMail{to, subject, text, html})
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (f *fakeSender) Configured() bool { return f.configured }

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		OTPDigits:         6,
		OTPTTL:            180 * time.Second,
		OTPMaxAttempts:    5,
		OTPResendCooldown: 60 * time.Second,
		OTPHourlyQuota:    10,
		OTPQuotaWindow:    time.Hour,
	}
}

func newEngineTest(t *testing.T) (*Engine, *fakeSender, *miniredis.Miniredis, func()) {
	t.Helper()
	store, mr, cleanup := newStoreTest(t)
	sender := &fakeSender{configured: true}
	return NewEngine(store, sender, testLimits(), nil), sender, mr, cleanup
}

func TestRequestStoresAndMails(t *testing.T) {
	eng, sender, mr, cleanup := newEngineTest(t)
	defer cleanup()

	if err := eng.Request(context.Background(), "  User@Example.COM ", "10.0.0.1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("mails sent: got %d, want 1", len(sender.calls))
	}
	if sender.calls[0].to != "user@example.com" {
		t.Fatalf("recipient not normalized: %q", sender.calls[0].to)
	}
	code := mr.HGet("otp:code:user@example.com", "code")
	if !validCode(code, 6) {
		t.Fatalf("stored code malformed: %q", code)
	}
	if !strings.Contains(sender.calls[0].text, code) {
		t.Fatalf("mail body does not carry the stored code")
	}
	if ttl := mr.TTL("otp:code:user@example.com"); ttl != 180*time.Second {
		t.Fatalf("code ttl: %s", ttl)
	}
	if !mr.Exists("otp:cd:user@example.com") {
		t.Fatalf("cooldown should open after a successful send")
	}
}

func TestRequestMalformedEmailIsSilent(t *testing.T) {
	eng, sender, mr, cleanup := newEngineTest(t)
	defer cleanup()

	if err := eng.Request(context.Background(), "not-an-email", "10.0.0.1"); err != nil {
		t.Fatalf("malformed address must still read as accepted, got %v", err)
	}
	if len(sender.calls) != 0 {
		t.Fatalf("no mail should go out")
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("nothing should be stored, found %v", keys)
	}
}

func TestRequestUnconfiguredMailer(t *testing.T) {
	eng, sender, mr, cleanup := newEngineTest(t)
	defer cleanup()
	sender.configured = false

	err := eng.Request(context.Background(), "a@example.com", "10.0.0.1")
	if !apperr.IsKind(err, apperr.Unavailable) {
		t.Fatalf("want unavailable, got %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("nothing should be stored, found %v", keys)
	}
}

func TestRequestCooldownSilent(t *testing.T) {
	eng, sender, mr, cleanup := newEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := eng.Request(ctx, "a@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	first := mr.HGet("otp:code:a@example.com", "code")
	if err := eng.Request(ctx, "a@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("cooldown should swallow the resend, sent %d", len(sender.calls))
	}
	if got := mr.HGet("otp:code:a@example.com", "code"); got != first {
		t.Fatalf("stored code must survive a cooldown no-op")
	}
}

func TestRequestQuotaSilent(t *testing.T) {
	store, mr, cleanup := newStoreTest(t)
	defer cleanup()
	sender := &fakeSender{configured: true}
	limits := testLimits()
	limits.OTPHourlyQuota = 2
	var events []string
	eng := NewEngine(store, sender, limits, func(_ context.Context, event, _, sourceIP string) {
		events = append(events, event+":"+sourceIP)
	})

	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if err := eng.Request(ctx, email, "10.0.0.9"); err != nil {
			t.Fatalf("request %s: %v", email, err)
		}
	}
	if len(sender.calls) != 2 {
		t.Fatalf("mails sent: got %d, want 2", len(sender.calls))
	}
	if mr.Exists("otp:code:c@example.com") {
		t.Fatalf("over-quota request must not store a code")
	}
	if len(events) != 1 || events[0] != "otp.quota_exceeded:10.0.0.9" {
		t.Fatalf("events: %v", events)
	}
}

func TestRequestMailFailureRollsBack(t *testing.T) {
	eng, sender, mr, cleanup := newEngineTest(t)
	defer cleanup()
	sender.fail = true

	err := eng.Request(context.Background(), "a@example.com", "10.0.0.1")
	if !apperr.IsKind(err, apperr.Unavailable) {
		t.Fatalf("want unavailable, got %v", err)
	}
	if mr.Exists("otp:code:a@example.com") {
		t.Fatalf("undeliverable code must be rolled back")
	}
	if mr.Exists("otp:cd:a@example.com") {
		t.Fatalf("failed send must not open the cooldown")
	}
}

func TestVerifyHappyPathIsSingleUse(t *testing.T) {
	eng, _, mr, cleanup := newEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := eng.Request(ctx, "a@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := mr.HGet("otp:code:a@example.com", "code")

	email, err := eng.Verify(ctx, " A@Example.com", code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if email != "a@example.com" {
		t.Fatalf("verified email: %q", email)
	}
	if _, err := eng.Verify(ctx, "a@example.com", code); !apperr.IsKind(err, apperr.Expired) {
		t.Fatalf("replay should read as expired, got %v", err)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	eng, _, mr, cleanup := newEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := eng.Request(ctx, "a@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	wrong := "000000"
	if mr.HGet("otp:code:a@example.com", "code") == wrong {
		wrong = "000001"
	}
	if _, err := eng.Verify(ctx, "a@example.com", wrong); !apperr.IsKind(err, apperr.InvalidOTP) {
		t.Fatalf("want invalid code, got %v", err)
	}
}

// The right code presented after the attempt budget has been spent is
// indistinguishable from an expired code.
func TestVerifyBudgetThenCorrectTooLate(t *testing.T) {
	eng, _, mr, cleanup := newEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := eng.Request(ctx, "a@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := mr.HGet("otp:code:a@example.com", "code")
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	for i := 0; i < 5; i++ {
		if _, err := eng.Verify(ctx, "a@example.com", wrong); !apperr.IsKind(err, apperr.InvalidOTP) {
			t.Fatalf("miss %d: %v", i+1, err)
		}
	}
	if _, err := eng.Verify(ctx, "a@example.com", code); !apperr.IsKind(err, apperr.Expired) {
		t.Fatalf("exhausted budget should read as expired, got %v", err)
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	eng, _, _, cleanup := newEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	cases := []struct{ email, code string }{
		{"not-an-email", "123456"},
		{"a@example.com", "12345"},
		{"a@example.com", "12x456"},
		{"", "123456"},
	}
	for _, tc := range cases {
		if _, err := eng.Verify(ctx, tc.email, tc.code); !apperr.IsKind(err, apperr.InvalidInput) {
			t.Fatalf("(%q, %q): want invalid input, got %v", tc.email, tc.code, err)
		}
	}
}

func TestValidEmail(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"a@example.com", true},
		{"first.last+tag@sub.example.com", true},
		{"Name <a@example.com>", false},
		{"no-at-sign", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := validEmail(tc.in); got != tc.ok {
			t.Fatalf("validEmail(%q) = %v, want %v", tc.in, got, tc.ok)
		}
	}
}
