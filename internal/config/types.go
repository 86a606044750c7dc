package config

// Config is the top-level toolscan configuration, corresponding to
// .toolscan.yml.
type Config struct {
	// DataDir holds the cache database and default rule files.
	DataDir string `yaml:"data_dir" koanf:"data_dir"`
	// RulesDir holds declarative compatibility rules/profiles.
	RulesDir string `yaml:"rules_dir" koanf:"rules_dir"`
	// ProbeRulesFile holds declarative manual probe rules.
	ProbeRulesFile string `yaml:"probe_rules" koanf:"probe_rules"`

	// Components are the logical names probed when no targets are given.
	Components []string `yaml:"components" koanf:"components"`
	// Aliases supplements the built-in logical-name alias table.
	Aliases map[string]string `yaml:"aliases" koanf:"aliases"`
	// Categories maps logical names to cache TTL categories.
	Categories map[string]string `yaml:"categories" koanf:"categories"`

	MaxConcurrency      int `yaml:"max_concurrency" koanf:"max_concurrency"`
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds" koanf:"probe_timeout_seconds"`
	DeadlineSeconds     int `yaml:"deadline_seconds" koanf:"deadline_seconds"`

	ScanRoots   []string `yaml:"scan_roots" koanf:"scan_roots"`
	ScanInclude []string `yaml:"scan_include" koanf:"scan_include"`
	ScanExclude []string `yaml:"scan_exclude" koanf:"scan_exclude"`

	// StandardRoots overrides the platform's canonical install roots.
	StandardRoots []string `yaml:"standard_roots" koanf:"standard_roots"`

	// CacheTTLSeconds overrides per-category cache TTLs.
	CacheTTLSeconds map[string]int `yaml:"cache_ttl_seconds" koanf:"cache_ttl_seconds"`
	CacheFlushEvery int            `yaml:"cache_flush_every" koanf:"cache_flush_every"`

	// Platform overrides the detected OS for rule matching (mostly tests).
	Platform string `yaml:"platform,omitempty" koanf:"platform"`

	Server ServerConfig `yaml:"server" koanf:"server"`
}

// ServerConfig holds the local report API settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}
