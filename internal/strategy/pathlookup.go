// Package strategy ships the built-in detection strategies. Each probes one
// evidence source and swallows its own failures: a strategy returns the
// candidates it could confirm and nothing else.
package strategy

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"toolscan/internal/detect"
)

// versionFlagOverrides lists tools whose version flag differs from the
// common "--version".
var versionFlagOverrides = map[string]string{
	"go":   "version",
	"java": "-version",
}

// versionOutputRe pulls the first dotted version run out of command output.
var versionOutputRe = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// PathLookup finds executables on PATH and asks them for their version.
type PathLookup struct {
	logger *log.Logger
}

// NewPathLookup creates the PATH lookup strategy.
func NewPathLookup() *PathLookup {
	return &PathLookup{logger: log.With("strategy", "path-lookup")}
}

// Name implements detect.Strategy.
func (s *PathLookup) Name() detect.Method {
	return detect.MethodPathLookup
}

// Probe implements detect.Strategy. Targets that are not on PATH simply
// contribute no candidate.
func (s *PathLookup) Probe(ctx context.Context, targets []string) []detect.Candidate {
	var out []detect.Candidate
	for _, target := range targets {
		if ctx.Err() != nil {
			return out
		}
		exe, err := exec.LookPath(target)
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(exe)
		if err != nil {
			abs = exe
		}

		ver := probeVersion(ctx, target, abs)
		confidence := 0.9
		if ver == detect.VersionUnknown {
			confidence = 0.7
		}

		c := detect.NewCandidate(target, ver, detect.MethodPathLookup, detect.StatusInstalled, confidence)
		c.ExecutablePath = abs
		c.InstallPath = filepath.Dir(abs)
		out = append(out, c)
	}
	return out
}

// probeVersion runs the tool's version command under the probe context and
// extracts a version string from its output. Any failure yields "unknown".
func probeVersion(ctx context.Context, name, exe string) string {
	flag, ok := versionFlagOverrides[name]
	if !ok {
		flag = "--version"
	}

	cmd := exec.CommandContext(ctx, exe, flag)
	output, err := cmd.CombinedOutput()
	if err != nil && len(output) == 0 {
		return detect.VersionUnknown
	}

	// Only the first line matters; long outputs (java, gcc) bury the
	// version in banners.
	line := output
	if idx := strings.IndexByte(string(output), '\n'); idx >= 0 {
		line = output[:idx]
	}
	if m := versionOutputRe.Find(line); m != nil {
		return string(m)
	}
	if m := versionOutputRe.Find(output); m != nil {
		return string(m)
	}
	return detect.VersionUnknown
}
