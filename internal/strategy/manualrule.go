package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"toolscan/internal/detect"
)

// ProbeRule is one declarative detection rule: a component is considered
// installed when any of its listed paths exists (and, if marker files are
// given, at least one marker exists under that path).
type ProbeRule struct {
	Name        string   `yaml:"name"`
	Paths       []string `yaml:"paths"`
	MarkerFiles []string `yaml:"marker_files,omitempty"`
	Version     string   `yaml:"version,omitempty"`
	VersionFile string   `yaml:"version_file,omitempty"`
	Confidence  float64  `yaml:"confidence,omitempty"`
}

// ManualRules evaluates declarative probe rules loaded from a YAML file.
type ManualRules struct {
	rules  []ProbeRule
	logger *log.Logger
}

// NewManualRules creates the strategy from an in-memory rule list.
func NewManualRules(rules []ProbeRule) *ManualRules {
	return &ManualRules{rules: rules, logger: log.With("strategy", "manual-rule")}
}

// LoadManualRules reads probe rules from a YAML file. Malformed entries are
// skipped with a warning; a missing file yields an empty strategy.
func LoadManualRules(path string) (*ManualRules, []string) {
	logger := log.With("strategy", "manual-rule")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ManualRules{logger: logger}, nil
		}
		return &ManualRules{logger: logger}, []string{fmt.Sprintf("reading probe rules %s: %v", path, err)}
	}

	var file struct {
		Probes []ProbeRule `yaml:"probes"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return &ManualRules{logger: logger}, []string{fmt.Sprintf("parsing probe rules %s: %v", path, err)}
	}

	var warnings []string
	var rules []ProbeRule
	for i, r := range file.Probes {
		if r.Name == "" || len(r.Paths) == 0 {
			warnings = append(warnings, fmt.Sprintf("probe rule %d: missing name or paths, skipped", i))
			continue
		}
		rules = append(rules, r)
	}
	return &ManualRules{rules: rules, logger: logger}, warnings
}

// Name implements detect.Strategy.
func (s *ManualRules) Name() detect.Method {
	return detect.MethodManualRule
}

// Probe implements detect.Strategy.
func (s *ManualRules) Probe(ctx context.Context, targets []string) []detect.Candidate {
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[strings.ToLower(t)] = true
	}

	var out []detect.Candidate
	for _, rule := range s.rules {
		if ctx.Err() != nil {
			break
		}
		if len(targets) > 0 && !want[strings.ToLower(rule.Name)] {
			continue
		}
		if c, ok := s.evaluate(rule); ok {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// evaluate checks one rule against the filesystem.
func (s *ManualRules) evaluate(rule ProbeRule) (detect.Candidate, bool) {
	for _, raw := range rule.Paths {
		path := expandHome(raw)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if len(rule.MarkerFiles) > 0 && info.IsDir() && !anyMarkerExists(path, rule.MarkerFiles) {
			continue
		}

		confidence := rule.Confidence
		if confidence == 0 {
			confidence = 0.85
		}
		version := rule.Version
		if version == "" && rule.VersionFile != "" {
			version = readVersionFile(filepath.Join(path, rule.VersionFile))
		}

		c := detect.NewCandidate(rule.Name, version, detect.MethodManualRule, detect.StatusInstalled, confidence)
		c.InstallPath = path
		if !info.IsDir() {
			c.ExecutablePath = path
			c.InstallPath = filepath.Dir(path)
		}
		return c, true
	}
	return detect.Candidate{}, false
}

func anyMarkerExists(dir string, markers []string) bool {
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}

// readVersionFile returns the trimmed first line of a version marker file,
// or "unknown" when unreadable.
func readVersionFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return detect.VersionUnknown
	}
	line := strings.TrimSpace(string(data))
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" {
		return detect.VersionUnknown
	}
	return line
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
