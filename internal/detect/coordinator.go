package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"toolscan/internal/cache"
)

// DefaultProbeTimeout bounds a single strategy invocation so one hung probe
// cannot stall a detection pass.
const DefaultProbeTimeout = 10 * time.Second

// ProgressFunc receives progress callbacks as strategies complete.
type ProgressFunc func(done, total int, label string)

// Config wires a Coordinator.
type Config struct {
	Strategies []Strategy
	Cache      *cache.Cache // optional; nil disables caching

	// KnownComponents is probed when Detect is called without targets.
	KnownComponents []string
	// Aliases supplements the built-in logical-name alias table.
	Aliases map[string]string
	// Categories maps logical names to cache TTL categories.
	Categories map[string]string

	ProbeTimeout   time.Duration
	MaxConcurrency int
	// WorkDir is the tool's own working directory; candidates resolving
	// inside it are treated as self-detection false positives.
	WorkDir string

	OnProgress ProgressFunc
	Logger     *log.Logger
}

// Coordinator runs the registered strategies cache-first and merges their
// candidates into one canonical record per logical component.
type Coordinator struct {
	cfg    Config
	logger *log.Logger
}

// NewCoordinator validates and applies defaults to cfg.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.MaxConcurrency <= 0 || cfg.MaxConcurrency > len(cfg.Strategies) {
		cfg.MaxConcurrency = len(cfg.Strategies)
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.With("component", "detect")
	}
	return &Coordinator{cfg: cfg, logger: logger}
}

// cachedProbe is the payload stored per logical name in the cache. Negative
// probes ("not installed") are cached the same way as positives.
type cachedProbe struct {
	Installed bool       `json:"installed"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

// Detect probes for the given logical component names, or for every known
// component when targets is empty. Cache hits short-circuit strategy runs;
// strategy failures and deadline expiry degrade to warnings, never abort the
// pass.
func (co *Coordinator) Detect(ctx context.Context, targets []string) *DetectionResult {
	start := time.Now()
	res := &DetectionResult{
		RunID:           uuid.NewString(),
		SummaryByMethod: make(map[Method]int),
	}

	explicit := len(targets) > 0
	if !explicit {
		targets = co.cfg.KnownComponents
	}
	requested := co.normalizeTargets(targets)

	// Cache-first: only components that miss go to the strategies.
	var fromCache []Candidate
	unresolved := make([]string, 0, len(requested))
	for _, name := range requested {
		probe, ok := co.cacheLookup(name)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		if probe.Installed && probe.Candidate != nil {
			fromCache = append(fromCache, *probe.Candidate)
		}
	}

	var fresh []Candidate
	if len(unresolved) > 0 || (len(requested) == 0 && len(co.cfg.Strategies) > 0) {
		fresh = co.runStrategies(ctx, unresolved, res)
	}

	merged, discarded := Merge(append(fromCache, fresh...), co.cfg.Aliases)
	for _, d := range discarded {
		co.logger.Debug("discarded duplicate candidate",
			"name", d.Name, "version", d.Version, "method", d.Method, "confidence", d.Confidence)
	}

	merged = co.dropSelfDetections(merged, res)

	if explicit {
		merged = filterToRequested(merged, requested)
	}

	co.writeBack(unresolved, merged)

	res.Applications = merged
	for _, c := range merged {
		res.SummaryByMethod[c.Method]++
		if c.Status == StatusInstalled {
			res.TotalDetected++
		}
	}
	res.Elapsed = time.Since(start)
	return res
}

// cacheLookup fetches and decodes one cached probe. Undecodable payloads
// count as misses.
func (co *Coordinator) cacheLookup(name string) (cachedProbe, bool) {
	if co.cfg.Cache == nil {
		return cachedProbe{}, false
	}
	payload, ok := co.cfg.Cache.Get(name)
	if !ok {
		return cachedProbe{}, false
	}
	var probe cachedProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		co.logger.Warn("undecodable cache payload, treating as miss", "name", name, "err", err)
		return cachedProbe{}, false
	}
	return probe, true
}

// runStrategies fans the unresolved set out to the registered strategies on
// a bounded worker pool. A timed-out or panicking probe contributes zero
// candidates and a warning.
func (co *Coordinator) runStrategies(ctx context.Context, unresolved []string, res *DetectionResult) []Candidate {
	total := len(co.cfg.Strategies)
	sem := make(chan struct{}, co.cfg.MaxConcurrency)

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		collected []Candidate
		completed = make(map[Method]bool)
		warnings  []string
		done      int
	)

	for _, s := range co.cfg.Strategies {
		select {
		case <-ctx.Done():
			mu.Lock()
			warnings = append(warnings, fmt.Sprintf("strategy %s skipped: deadline exceeded", s.Name()))
			completed[s.Name()] = true
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(s Strategy) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					warnings = append(warnings, fmt.Sprintf("strategy %s panicked: %v", s.Name(), r))
					completed[s.Name()] = true
					mu.Unlock()
				}
			}()

			probeCtx, cancel := context.WithTimeout(ctx, co.cfg.ProbeTimeout)
			defer cancel()

			candidates := s.Probe(probeCtx, unresolved)

			// Warning and completion are recorded atomically so the
			// deadline sweep never double-counts a strategy.
			mu.Lock()
			if err := probeCtx.Err(); err != nil {
				warnings = append(warnings, fmt.Sprintf("strategy %s: %v", s.Name(), err))
			}
			collected = append(collected, candidates...)
			completed[s.Name()] = true
			done++
			n := done
			mu.Unlock()

			if co.cfg.OnProgress != nil {
				co.cfg.OnProgress(n, total, string(s.Name()))
			}
		}(s)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		// Deadline: return what completed plus a warning per straggler.
	}

	mu.Lock()
	defer mu.Unlock()
	if ctx.Err() != nil {
		for _, s := range co.cfg.Strategies {
			if !completed[s.Name()] {
				warnings = append(warnings, fmt.Sprintf("strategy %s did not finish before deadline", s.Name()))
			}
		}
	}
	sort.Strings(warnings)
	res.Warnings = append(res.Warnings, warnings...)
	for _, w := range warnings {
		co.logger.Warn(w)
	}

	out := make([]Candidate, len(collected))
	copy(out, collected)
	return out
}

// dropSelfDetections removes candidates whose paths resolve inside the
// tool's own working directory.
func (co *Coordinator) dropSelfDetections(candidates []Candidate, res *DetectionResult) []Candidate {
	if co.cfg.WorkDir == "" {
		return candidates
	}
	workDir, err := filepath.Abs(co.cfg.WorkDir)
	if err != nil {
		return candidates
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if pathInside(c.InstallPath, workDir) || pathInside(c.ExecutablePath, workDir) {
			co.logger.Debug("dropped self-detection false positive", "name", c.Name, "path", c.InstallPath)
			res.Warnings = append(res.Warnings, fmt.Sprintf("ignored self-detection of %s under working directory", c.Name))
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// writeBack caches a positive or negative result for every name that was
// probed this pass. Cache hits keep their original TTL and are not
// re-written.
func (co *Coordinator) writeBack(probed []string, merged []Candidate) {
	if co.cfg.Cache == nil {
		return
	}

	byName := make(map[string]Candidate, len(merged))
	for _, c := range merged {
		byName[c.Name] = c
	}

	for _, name := range probed {
		probe := cachedProbe{}
		method, confidence := "", 0.0
		if c, ok := byName[name]; ok && c.Status == StatusInstalled {
			cc := c
			probe.Installed = true
			probe.Candidate = &cc
			method, confidence = string(c.Method), c.Confidence
		}
		payload, err := json.Marshal(probe)
		if err != nil {
			co.logger.Warn("encoding cache payload failed", "name", name, "err", err)
			continue
		}
		co.cfg.Cache.Put(name, payload, co.cfg.Categories[name], method, confidence)
	}
}

// normalizeTargets lowercases, alias-resolves, dedupes and sorts the
// requested names so the rest of the pass is order-independent.
func (co *Coordinator) normalizeTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	var out []string
	for _, t := range targets {
		n := NormalizeName(t, co.cfg.Aliases)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func filterToRequested(candidates []Candidate, requested []string) []Candidate {
	want := make(map[string]struct{}, len(requested))
	for _, r := range requested {
		want[r] = struct{}{}
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if _, ok := want[c.Name]; ok {
			kept = append(kept, c)
		}
	}
	return kept
}

// pathInside reports whether path resolves to a location under root.
func pathInside(path, root string) bool {
	if path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
