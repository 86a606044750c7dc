package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"

	"toolscan/internal/cache"
	"toolscan/internal/compat"
	"toolscan/internal/config"
	"toolscan/internal/db"
	"toolscan/internal/detect"
	"toolscan/internal/priority"
	"toolscan/internal/strategy"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `toolscan init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openCache opens the SQLite-backed detection cache. Failing to create the
// cache database is a startup-level fault and is returned as an error.
func openCache(cfg *config.Config) (*cache.Cache, error) {
	database, err := db.Open(cfg.CacheDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening detection cache: %w", err)
	}
	return cache.New(cache.NewSQLiteStore(database), cfg.TTLs(), cfg.CacheFlushEvery)
}

// openCacheFromConfig is the common load-config-then-open-cache path used
// by the cache maintenance subcommands.
func openCacheFromConfig() (*cache.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openCache(cfg)
}

// buildStrategies assembles the built-in detection strategies from config.
// Rule-loading warnings are surfaced but never fatal.
func buildStrategies(cfg *config.Config) []detect.Strategy {
	roots := cfg.ScanRoots
	if len(roots) == 0 {
		roots = strategy.DefaultScanRoots(runtime.GOOS)
	}

	manual, warnings := strategy.LoadManualRules(cfg.ProbeRulesFile)
	for _, w := range warnings {
		log.Warn(w)
	}

	return []detect.Strategy{
		strategy.NewPathLookup(),
		strategy.NewFilesystemScan(strategy.FilesystemScanConfig{
			Roots:    roots,
			Includes: cfg.ScanInclude,
			Excludes: cfg.ScanExclude,
		}),
		manual,
		strategy.NewPackageManager(),
	}
}

// buildCoordinator wires the detection coordinator over the cache and the
// built-in strategies.
func buildCoordinator(cfg *config.Config, c *cache.Cache, onProgress detect.ProgressFunc) *detect.Coordinator {
	workDir, _ := os.Getwd()
	return detect.NewCoordinator(detect.Config{
		Strategies:      buildStrategies(cfg),
		Cache:           c,
		KnownComponents: cfg.Components,
		Aliases:         cfg.Aliases,
		Categories:      cfg.Categories,
		ProbeTimeout:    cfg.ProbeTimeout(),
		MaxConcurrency:  cfg.MaxConcurrency,
		WorkDir:         workDir,
		OnProgress:      onProgress,
	})
}

// buildEngine loads declarative compatibility data into a fresh engine.
func buildEngine(cfg *config.Config) *compat.Engine {
	engine := compat.NewEngine()
	for _, w := range engine.LoadDir(cfg.RulesDir) {
		log.Warn(w)
	}
	return engine
}

// buildPrioritizer creates the prioritizer with configured standard roots.
func buildPrioritizer(cfg *config.Config) *priority.Prioritizer {
	return priority.New(cfg.StandardRoots)
}
