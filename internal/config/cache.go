package config

import "time"

// SessionCacheConfig defines the Redis read-through cache in front of the
// sessions table.  When Enabled is false or no Redis client is configured,
// every token check goes to MySQL.  TTL bounds how long an active session is
// trusted without re-reading it; revocation tombstones live as long.
type SessionCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadSessionCacheConfig reads SESSION_CACHE_* variables.
func LoadSessionCacheConfig() SessionCacheConfig {
	c := SessionCacheConfig{
		Enabled: envBool("SESSION_CACHE_ENABLED", true),
		TTL:     envDur("SESSION_CACHE_TTL", time.Minute),
		Prefix:  envStr("SESSION_CACHE_PREFIX", "sess"),
	}
	if c.TTL <= 0 {
		c.TTL = time.Minute
	}
	return c
}

// ResponseCacheConfig defines the Redis cache of public resource reads.
// Writes to a resource invalidate its cached reads; TTL only bounds how
// long an unused entry stays in Redis.  Responses larger than MaxBodyBytes
// are served but not stored.
type ResponseCacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadResponseCacheConfig reads CACHE_* variables.
func LoadResponseCacheConfig() ResponseCacheConfig {
	c := ResponseCacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	return c
}
