package config

import (
	"os"
	"strconv"
	"time"
)

// LimitsConfig groups the anti-abuse knobs for the OTP engine and the
// admin login throttle. Zero-value protection: Load clamps anything
// nonsensical back to its default.
type LimitsConfig struct {
	OTPDigits         int           // code length
	OTPTTL            time.Duration // lifetime of a stored code
	OTPMaxAttempts    int           // verification attempts before the code burns
	OTPResendCooldown time.Duration // per-email window where re-requests are no-ops
	OTPHourlyQuota    int           // per-source-address requests per window
	OTPQuotaWindow    time.Duration // span of the request-quota window
	LoginMaxFailures  int           // admin failures before lockout
	LoginLockout      time.Duration // lockout duration (and failure-counter TTL)
}

// LoadLimits reads the limit knobs from the environment, falling back to
// the defaults the flows were designed around.
func LoadLimits() LimitsConfig {
	l := LimitsConfig{
		OTPDigits:         envInt("OTP_DIGITS", 6),
		OTPTTL:            envDur("OTP_TTL", 180*time.Second),
		OTPMaxAttempts:    envInt("OTP_MAX_ATTEMPTS", 5),
		OTPResendCooldown: envDur("OTP_RESEND_COOLDOWN", 60*time.Second),
		OTPHourlyQuota:    envInt("OTP_HOURLY_QUOTA", 10),
		OTPQuotaWindow:    envDur("OTP_QUOTA_WINDOW", time.Hour),
		LoginMaxFailures:  envInt("LOGIN_MAX_FAILURES", 5),
		LoginLockout:      envDur("LOGIN_LOCKOUT", 15*time.Minute),
	}
	if l.OTPDigits < 4 || l.OTPDigits > 10 { l.OTPDigits = 6 }
	if l.OTPTTL <= 0 { l.OTPTTL = 180 * time.Second }
	if l.OTPMaxAttempts < 1 { l.OTPMaxAttempts = 5 }
	if l.OTPResendCooldown < 0 { l.OTPResendCooldown = 60 * time.Second }
	if l.OTPHourlyQuota < 1 { l.OTPHourlyQuota = 10 }
	if l.OTPQuotaWindow <= 0 { l.OTPQuotaWindow = time.Hour }
	if l.LoginMaxFailures < 1 { l.LoginMaxFailures = 5 }
	if l.LoginLockout <= 0 { l.LoginLockout = 15 * time.Minute }
	return l
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" { return d }
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON": return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF": return false
	}
	return d
}
func envInt(k string, d int) int {
	v := os.Getenv(k); if v == "" { return d }
	if n, err := strconv.Atoi(v); err == nil { return n }
	return d
}
func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k); if v == "" { return d }
	if dur, err := time.ParseDuration(v); err == nil { return dur }
	return d
}
