package strategy

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"toolscan/internal/detect"
)

// skipDirs are directory names never descended into during a scan.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".cache":       true,
	"tmp":          true,
}

// FilesystemScan walks configured roots looking for executables whose name
// matches a requested target. It reports lower confidence than PATH lookup
// because a file on disk says nothing about whether it is wired up.
type FilesystemScan struct {
	roots    []string
	includes []string
	excludes []string
	maxDepth int
	logger   *log.Logger
}

// FilesystemScanConfig controls a FilesystemScan.
type FilesystemScanConfig struct {
	Roots    []string // directories to walk
	Includes []string // doublestar globs relative to each root; empty = all
	Excludes []string // doublestar globs to skip
	MaxDepth int      // 0 = default (6)
}

// NewFilesystemScan creates the filesystem scan strategy.
func NewFilesystemScan(cfg FilesystemScanConfig) *FilesystemScan {
	depth := cfg.MaxDepth
	if depth <= 0 {
		depth = 6
	}
	return &FilesystemScan{
		roots:    cfg.Roots,
		includes: cfg.Includes,
		excludes: cfg.Excludes,
		maxDepth: depth,
		logger:   log.With("strategy", "filesystem-scan"),
	}
}

// Name implements detect.Strategy.
func (s *FilesystemScan) Name() detect.Method {
	return detect.MethodFilesystemScan
}

// Probe implements detect.Strategy. Unreadable roots and entries are
// skipped, never fatal.
func (s *FilesystemScan) Probe(ctx context.Context, targets []string) []detect.Candidate {
	if len(targets) == 0 {
		return nil
	}

	want := make(map[string]string, len(targets)) // executable basename -> target
	for _, t := range targets {
		want[strings.ToLower(t)] = t
	}

	var out []detect.Candidate
	found := make(map[string]bool)
	for _, root := range s.roots {
		if ctx.Err() != nil {
			break
		}
		s.scanRoot(ctx, root, want, found, &out)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExecutablePath < out[j].ExecutablePath })
	return out
}

func (s *FilesystemScan) scanRoot(ctx context.Context, root string, want map[string]string, found map[string]bool, out *[]detect.Candidate) {
	root, err := filepath.Abs(root)
	if err != nil {
		return
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			return nil // unreadable entry, move on
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if skipDirs[d.Name()] {
				return fs.SkipDir
			}
			if strings.Count(rel, string(filepath.Separator))+1 > s.maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		normalized := filepath.ToSlash(rel)
		if len(s.includes) > 0 && !matchesAny(normalized, s.includes) {
			return nil
		}
		if matchesAny(normalized, s.excludes) {
			return nil
		}

		target, ok := want[executableKey(d.Name())]
		if !ok || found[target] {
			return nil
		}
		if !isExecutable(path, d) {
			return nil
		}

		c := detect.NewCandidate(target, detect.VersionUnknown, detect.MethodFilesystemScan, detect.StatusInstalled, 0.6)
		c.ExecutablePath = path
		c.InstallPath = filepath.Dir(path)
		*out = append(*out, c)
		found[target] = true
		return nil
	})
	if walkErr != nil {
		s.logger.Debug("scan aborted", "root", root, "err", walkErr)
	}
}

// matchesAny checks a slash-normalized relative path against doublestar
// patterns, also trying the bare filename for convenience.
func matchesAny(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, relPath); err == nil && matched {
			return true
		}
		if matched, err := doublestar.PathMatch(pattern, filepath.Base(relPath)); err == nil && matched {
			return true
		}
	}
	return false
}

// executableKey normalizes a filename to the logical lookup key,
// stripping the Windows executable extension.
func executableKey(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".exe", ".bat", ".cmd"} {
		if strings.HasSuffix(lower, ext) {
			return strings.TrimSuffix(lower, ext)
		}
	}
	return lower
}

// isExecutable applies a platform-appropriate executability check.
func isExecutable(path string, d fs.DirEntry) bool {
	if runtime.GOOS == "windows" {
		ext := strings.ToLower(filepath.Ext(path))
		return ext == ".exe" || ext == ".bat" || ext == ".cmd"
	}
	info, err := d.Info()
	if err != nil {
		return false
	}
	return info.Mode()&0o111 != 0 && info.Mode().IsRegular()
}

// DefaultScanRoots returns sensible scan roots for the given OS when the
// configuration does not name any.
func DefaultScanRoots(goos string) []string {
	switch goos {
	case "windows":
		return []string{`C:\Program Files`, `C:\Program Files (x86)`}
	case "darwin":
		return []string{"/usr/local/bin", "/opt/homebrew/bin", "/Applications"}
	default:
		home, _ := os.UserHomeDir()
		roots := []string{"/usr/local/bin", "/opt"}
		if home != "" {
			roots = append(roots, filepath.Join(home, ".local", "bin"))
		}
		return roots
	}
}
