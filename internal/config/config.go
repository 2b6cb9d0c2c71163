package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints and durations
// for lifetimes.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AccessSecret      string // secret used to sign access tokens
	RefreshSecret     string // secret used to sign refresh tokens
	AccessTTLMin      int    // access token time-to-live in minutes
	RefreshTTLDays    int    // refresh token time-to-live in days
	AccessIssuedAfter string // RFC3339 cutoff; access tokens issued before it are rejected (empty disables)

	AdminEmail  string // the single admin principal's email
	AdminSecret string // admin secret, plaintext or a bcrypt hash

	CookieDomain      string // cookie domain ("" = host-only)
	CookieSecure      bool   // Secure flag on auth cookies
	RefreshCookieName string // name of the HTTP-only refresh cookie
	CSRFCookieName    string // name of the script-readable CSRF seed cookie
	CSRFHeaderName    string // request header the CSRF seed must be echoed in

	SMTPHost    string        // outbound mail host; empty leaves mail unconfigured
	SMTPPort    int           // outbound mail port
	SMTPUser    string        // SMTP username (optional)
	SMTPPass    string        // SMTP password (optional)
	MailFrom    string        // From address on OTP mail
	MailTimeout time.Duration // bound on a single SMTP connect+send

	AutoMigrate bool // apply embedded schema migrations at boot

	Limits    LimitsConfig    // OTP and login-throttle knobs
	RateLimit RateLimitConfig // perimeter token bucket on the auth endpoints
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message; everything else has
// a default.
func Load() Config {
	env := must("APP_ENV") // environment (dev/test/prod)
	return Config{
		Env:    env,
		Port:   must("APP_PORT"), // port to bind the HTTP server
		DBUser: must("DB_USER"),  // database user
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		AccessSecret:      must("ACCESS_TOKEN_SECRET"),
		RefreshSecret:     must("REFRESH_TOKEN_SECRET"),
		AccessTTLMin:      envInt("ACCESS_TOKEN_TTL_MIN", 10),
		RefreshTTLDays:    envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		AccessIssuedAfter: os.Getenv("ACCESS_ISSUED_AFTER"),

		AdminEmail:  must("ADMIN_EMAIL"),
		AdminSecret: must("ADMIN_SECRET"),

		CookieDomain:      os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:      envBool("COOKIE_SECURE", env == "prod"), // default on in prod only
		RefreshCookieName: envStr("REFRESH_COOKIE_NAME", "refresh_token"),
		CSRFCookieName:    envStr("CSRF_COOKIE_NAME", "csrf_token"),
		CSRFHeaderName:    envStr("CSRF_HEADER_NAME", "X-CSRF-Token"),

		SMTPHost:    os.Getenv("SMTP_HOST"),
		SMTPPort:    envInt("SMTP_PORT", 587),
		SMTPUser:    os.Getenv("SMTP_USER"),
		SMTPPass:    os.Getenv("SMTP_PASS"),
		MailFrom:    os.Getenv("MAIL_FROM"),
		MailTimeout: envDur("MAIL_TIMEOUT", 8*time.Second),

		AutoMigrate: envBool("AUTO_MIGRATE", true),

		Limits:    LoadLimits(),
		RateLimit: LoadRateLimitConfig(),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
