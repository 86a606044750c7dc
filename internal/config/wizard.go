package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to toolscan! Let's configure your workstation scan.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Components to track.
	componentsPrompt := promptui.Prompt{
		Label:   "Components to track (comma-separated)",
		Default: strings.Join(cfg.Components, ","),
	}
	componentsStr, err := componentsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("component selection: %w", err)
	}
	var components []string
	for _, c := range strings.Split(componentsStr, ",") {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			components = append(components, trimmed)
		}
	}
	if len(components) > 0 {
		cfg.Components = components
	}

	// 2. Data directory.
	dataDirPrompt := promptui.Prompt{
		Label:   "Data directory (cache database and rules)",
		Default: cfg.DataDir,
	}
	if cfg.DataDir, err = dataDirPrompt.Run(); err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	// 3. Probe concurrency.
	concurrencyPrompt := promptui.Select{
		Label: "Max concurrent probes",
		Items: []string{"2", "4", "8"},
	}
	_, concurrencyStr, err := concurrencyPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("concurrency selection: %w", err)
	}
	if n, err := strconv.Atoi(concurrencyStr); err == nil {
		cfg.MaxConcurrency = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfiguration written to %s\n", path)
	return cfg, nil
}
