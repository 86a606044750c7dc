package strategy

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"toolscan/internal/detect"
)

// managerSpec describes how to ask one package manager for its installed
// packages. Output is expected as one "name version..." pair per line.
type managerSpec struct {
	binary string
	args   []string
}

// managerSpecs is tried in order; the first manager present on PATH wins.
var managerSpecs = []managerSpec{
	{binary: "brew", args: []string{"list", "--versions"}},
	{binary: "dpkg-query", args: []string{"-W", "-f", "${Package} ${Version}\n"}},
	{binary: "winget", args: []string{"list", "--disable-interactivity"}},
}

// PackageManager lists installed packages through whichever system package
// manager is available. Package listings describe what a manager installed,
// not what currently runs, so confidence is the lowest of the built-in
// strategies.
type PackageManager struct {
	specs  []managerSpec
	run    func(ctx context.Context, binary string, args ...string) ([]byte, error)
	logger *log.Logger
}

// NewPackageManager creates the package manager strategy.
func NewPackageManager() *PackageManager {
	return &PackageManager{
		specs: managerSpecs,
		run: func(ctx context.Context, binary string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, binary, args...).Output()
		},
		logger: log.With("strategy", "package-manager"),
	}
}

// Name implements detect.Strategy.
func (s *PackageManager) Name() detect.Method {
	return detect.MethodPackageManager
}

// Probe implements detect.Strategy. A workstation without any recognized
// package manager contributes zero candidates, not an error.
func (s *PackageManager) Probe(ctx context.Context, targets []string) []detect.Candidate {
	spec, ok := s.available()
	if !ok {
		return nil
	}

	output, err := s.run(ctx, spec.binary, spec.args...)
	if err != nil {
		s.logger.Debug("package listing failed", "manager", spec.binary, "err", err)
		return nil
	}

	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[strings.ToLower(t)] = true
	}

	var out []detect.Candidate
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 1 {
			continue
		}
		name := strings.ToLower(fields[0])
		if len(targets) > 0 && !want[name] {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		version := detect.VersionUnknown
		if len(fields) > 1 {
			version = fields[1]
		}
		c := detect.NewCandidate(name, version, detect.MethodPackageManager, detect.StatusInstalled, 0.7)
		c.Metadata = map[string]string{"package_manager": spec.binary}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// available finds the first configured manager present on PATH.
func (s *PackageManager) available() (managerSpec, bool) {
	for _, spec := range s.specs {
		if _, err := exec.LookPath(spec.binary); err == nil {
			return spec, true
		}
	}
	return managerSpec{}, false
}
