package config

import "time"

// RateLimitConfig configures the token bucket guarding the API.  The
// bucket lives in Redis when a client is available and in process
// otherwise.  Burst and RefillEvery are shorthands: a positive Burst
// replaces Capacity, and a positive RefillEvery means one token per
// interval.
type RateLimitConfig struct {
    Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
    Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
    Burst          int           `env:"RATE_LIMIT_BURST"`
    RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
    RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
    RefillEvery    time.Duration `env:"RATE_LIMIT_REFILL_EVERY"`
    TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
    KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_user_route"` // "ip", "user" or "ip_user_route"
    Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"fablab:rl"`
    Debug          bool          `env:"RATE_LIMIT_DEBUG" envDefault:"false"`
}

// PerSecond converts the refill rate to tokens per second.
func (c RateLimitConfig) PerSecond() float64 {
    return float64(c.RefillTokens) / c.RefillInterval.Seconds()
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them to a
// usable bucket.  Keys outlive at least five refill intervals.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := parseOrDefault[RateLimitConfig]("rate limit")
    if cfg.Burst > 0 {
        cfg.Capacity = cfg.Burst
    }
    if cfg.RefillEvery > 0 {
        cfg.RefillTokens = 1
        cfg.RefillInterval = cfg.RefillEvery
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
        cfg.TTL = minTTL
    }
    return cfg
}
