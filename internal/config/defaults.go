package config

import (
	"path/filepath"
	"runtime"
	"time"

	"toolscan/internal/cache"
)

// DefaultComponents are the toolchain components probed out of the box.
var DefaultComponents = []string{
	"git",
	"python",
	"node",
	"go",
	"java",
	"docker",
	"gcc",
	"make",
	"cmake",
	"rustc",
	"terraform",
	"kubectl",
}

// DefaultCategories maps the default components to cache TTL categories.
var DefaultCategories = map[string]string{
	"python":    "runtime",
	"node":      "runtime",
	"go":        "runtime",
	"java":      "runtime",
	"rustc":     "runtime",
	"git":       "development_tool",
	"make":      "development_tool",
	"cmake":     "development_tool",
	"gcc":       "development_tool",
	"terraform": "development_tool",
	"kubectl":   "development_tool",
	"docker":    "application",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".toolscan"
	return &Config{
		DataDir:             dataDir,
		RulesDir:            filepath.Join(dataDir, "rules"),
		ProbeRulesFile:      filepath.Join(dataDir, "probes.yml"),
		Components:          DefaultComponents,
		Categories:          DefaultCategories,
		MaxConcurrency:      4,
		ProbeTimeoutSeconds: 10,
		DeadlineSeconds:     60,
		CacheFlushEvery:     cache.DefaultFlushEvery,
		Platform:            runtime.GOOS,
		Server: ServerConfig{
			Port: 7911,
		},
	}
}

// CacheDBPath returns the SQLite path for the detection cache.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// TTLs converts the configured per-category TTL overrides into durations,
// falling back to the cache defaults.
func (c *Config) TTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration, len(cache.DefaultTTLs))
	for category, ttl := range cache.DefaultTTLs {
		ttls[category] = ttl
	}
	for category, secs := range c.CacheTTLSeconds {
		ttls[category] = time.Duration(secs) * time.Second
	}
	return ttls
}

// ProbeTimeout returns the per-probe timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// Deadline returns the overall detection deadline as a duration.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineSeconds) * time.Second
}
