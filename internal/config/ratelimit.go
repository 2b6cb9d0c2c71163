package config

import "time"

// RateLimitConfig drives the perimeter token bucket in front of the
// credential-exchange endpoints. It is a blunt brute-force shield; the
// precise per-email and per-address rules live inside the OTP engine and
// the login throttle.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int           // bucket size per key
	RefillTokens   int           // tokens added back per interval
	RefillInterval time.Duration // refill cadence
	TTL            time.Duration // idle expiry of bucket state
	KeyStrategy    string        // ip | route | ip_route
	Prefix         string        // redis key prefix
	Debug          bool          // expose the resolved key in a response header
}

// LoadRateLimitConfig reads the perimeter limiter knobs, clamping
// nonsense back to workable values.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if def.Capacity < 1 { def.Capacity = 1 }
	if def.RefillTokens < 1 { def.RefillTokens = 1 }
	if def.RefillInterval <= 0 { def.RefillInterval = time.Second }
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL { def.TTL = minTTL }
	return def
}
