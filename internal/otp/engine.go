package otp

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/blog-auth-service/internal/apperr"
	"github.com/iliyamo/blog-auth-service/internal/config"
	"github.com/iliyamo/blog-auth-service/internal/utils"
)

// Sender delivers a login code to a mailbox. Configured reports whether
// the transport has enough settings to attempt a delivery at all.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
	Configured() bool
}

// NotifyFunc receives abuse signals worth auditing. Implementations must
// not block the request path.
type NotifyFunc func(ctx context.Context, event, email, sourceIP string)

// Engine drives the passcode login flow: Request issues and mails a
// code, Verify consumes it. Anti-abuse outcomes (cooldown, quota) are
// deliberately indistinguishable from success on the request side.
type Engine struct {
	store  *Store
	mailer Sender
	cfg    config.LimitsConfig
	notify NotifyFunc // optional, may be nil
}

// NewEngine wires the flow together. notify may be nil.
func NewEngine(store *Store, mailer Sender, cfg config.LimitsConfig, notify NotifyFunc) *Engine {
	return &Engine{store: store, mailer: mailer, cfg: cfg, notify: notify}
}

// Request issues a fresh code for the email and mails it. Silent no-op
// outcomes (bad address shape, resend cooldown, hourly quota) return nil
// so the caller's response never leaks whether anything happened. A mail
// delivery failure rolls the stored code back and surfaces as
// unavailable, the one outcome the caller is allowed to see.
func (e *Engine) Request(ctx context.Context, email, sourceIP string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil // accepted, nothing stored
	}
	if e.mailer == nil || !e.mailer.Configured() {
		return apperr.New(apperr.Unavailable, "service unavailable")
	}

	cool, err := e.store.InCooldown(ctx, email)
	if err != nil {
		return err
	}
	if cool {
		return nil // previous code still stands, mail not resent
	}

	n, err := e.store.IncrRequests(ctx, sourceIP, e.cfg.OTPQuotaWindow)
	if err != nil {
		return err
	}
	if n > int64(e.cfg.OTPHourlyQuota) {
		log.Warn().Str("source_ip", sourceIP).Int64("count", n).Msg("otp request quota exceeded")
		if e.notify != nil {
			e.notify(ctx, "otp.quota_exceeded", email, sourceIP)
		}
		return nil
	}

	code, err := utils.NewOTP(e.cfg.OTPDigits)
	if err != nil {
		return err
	}
	if err := e.store.SaveCode(ctx, email, code, e.cfg.OTPTTL); err != nil {
		return err
	}

	subject := "Your login code"
	minutes := int(e.cfg.OTPTTL.Minutes())
	text := fmt.Sprintf("Your one-time login code is %s. It expires in %d minutes.", code, minutes)
	html := fmt.Sprintf("<p>Your one-time login code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>", code, minutes)
	if err := e.mailer.Send(ctx, email, subject, text, html); err != nil {
		// roll the stored record back so no undeliverable code lingers
		if derr := e.store.DeleteCode(ctx, email); derr != nil {
			log.Error().Err(derr).Str("email", email).Msg("otp rollback after send failure")
		}
		return apperr.Wrap(apperr.Unavailable, "service unavailable", err)
	}

	if err := e.store.StartCooldown(ctx, email, e.cfg.OTPResendCooldown); err != nil {
		// the code was delivered; a missing cooldown only allows an early resend
		log.Error().Err(err).Str("email", email).Msg("otp cooldown not set")
	}
	return nil
}

// Verify consumes the pending code for the email. On success it returns
// the normalized email for the caller to establish a session with. The
// never-issued, expired and exhausted cases all collapse into the same
// expired outcome.
func (e *Engine) Verify(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	if !validEmail(email) || !validCode(code, e.cfg.OTPDigits) {
		return "", apperr.New(apperr.InvalidInput, "invalid request")
	}
	err := e.store.Consume(ctx, email, code, e.cfg.OTPMaxAttempts)
	switch {
	case err == nil:
		return email, nil
	case errors.Is(err, ErrCodeMissing), errors.Is(err, ErrCodeExhausted):
		return "", apperr.Wrap(apperr.Expired, "code expired", err)
	case errors.Is(err, ErrCodeMismatch):
		return "", apperr.Wrap(apperr.InvalidOTP, "invalid code", err)
	default:
		return "", err
	}
}

// normalizeEmail lowercases and trims so lookups and rate keys agree on
// one spelling per mailbox.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts plain addr-spec addresses only, no display names.
func validEmail(email string) bool {
	if email == "" || len(email) > 191 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// validCode requires exactly the configured number of ASCII digits.
func validCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
