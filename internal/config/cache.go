package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the catalog response cache.  Catalog
// reads (services, machines, blocked dates) are cached per request path
// and query string; entries expire after TTL or when an admin catalog
// write purges the prefix.  Backend selects "redis" or "memory"; "redis"
// silently degrades to memory when no Redis client is available.
type CacheConfig struct {
    Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
    Backend      string        `env:"CACHE_BACKEND" envDefault:"redis"`
    TTL          time.Duration `env:"CACHE_TTL" envDefault:"60s"`
    Prefix       string        `env:"CACHE_PREFIX" envDefault:"fablab:cache"`
    MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    cfg := parseOrDefault[CacheConfig]("cache")
    cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
    if cfg.TTL <= 0 {
        cfg.TTL = time.Minute
    }
    return cfg
}
