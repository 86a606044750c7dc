package compat

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a declarative compatibility data file.
// One file may carry any mix of sections.
type ruleFile struct {
	Rules          []Rule               `yaml:"rules"`
	Profiles       []ComponentProfile   `yaml:"profiles"`
	KnownConflicts []ConflictDetection  `yaml:"known_conflicts"`
	Resolutions    []ConflictResolution `yaml:"resolutions"`
}

var validLevels = map[Level]bool{
	LevelCompatible:   true,
	LevelPartial:      true,
	LevelIncompatible: true,
	LevelDeprecated:   true,
	LevelExperimental: true,
	LevelUnknown:      true,
}

// LoadDir reads every .yaml/.yml file under dir into the engine. Malformed
// entries are skipped with a warning; only a completely unreadable file
// produces one. A missing directory loads nothing and is not an error, so
// startup never fails on rule data.
func (e *Engine) LoadDir(dir string) []string {
	var warnings []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("reading rules directory %s: %v", dir, err))
		}
		return warnings
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	for _, path := range files {
		warnings = append(warnings, e.loadFile(path)...)
	}
	return warnings
}

// loadFile parses one YAML data file and registers its valid entries.
func (e *Engine) loadFile(path string) []string {
	var warnings []string

	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("reading %s: %v", path, err)}
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return []string{fmt.Sprintf("parsing %s: %v", path, err)}
	}

	base := filepath.Base(path)
	for i, r := range rf.Rules {
		if r.ComponentA == "" || r.ComponentB == "" {
			warnings = append(warnings, fmt.Sprintf("%s: rule %d: missing component name, skipped", base, i))
			continue
		}
		if !validLevels[r.Level] {
			warnings = append(warnings, fmt.Sprintf("%s: rule %d (%s/%s): unknown level %q, skipped", base, i, r.ComponentA, r.ComponentB, r.Level))
			continue
		}
		e.AddRule(r)
	}

	for i, p := range rf.Profiles {
		if p.Name == "" {
			warnings = append(warnings, fmt.Sprintf("%s: profile %d: missing name, skipped", base, i))
			continue
		}
		e.AddProfile(p)
	}

	for i, c := range rf.KnownConflicts {
		if c.ID == "" || len(c.Components) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: known conflict %d: missing id or components, skipped", base, i))
			continue
		}
		if c.Severity == "" {
			c.Severity = SeverityMedium
		}
		e.AddKnownConflict(c)
	}

	for i, r := range rf.Resolutions {
		if r.ConflictID == "" || r.Strategy == "" {
			warnings = append(warnings, fmt.Sprintf("%s: resolution %d: missing conflict_id or strategy, skipped", base, i))
			continue
		}
		if r.SuccessProbability <= 0 || r.SuccessProbability > 1 {
			warnings = append(warnings, fmt.Sprintf("%s: resolution %d (%s): success_probability out of (0,1], skipped", base, i, r.ConflictID))
			continue
		}
		e.AddResolution(r)
	}

	return warnings
}
