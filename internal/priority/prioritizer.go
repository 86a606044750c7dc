package priority

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"toolscan/internal/detect"
	"toolscan/internal/version"
)

// Prioritizer ranks detection candidates for required components.
type Prioritizer struct {
	standardRoots []string
	logger        *log.Logger
}

// New creates a Prioritizer. If roots is empty, the platform's canonical
// install roots are used.
func New(roots []string) *Prioritizer {
	if len(roots) == 0 {
		roots = PlatformRoots(runtime.GOOS)
	}
	return &Prioritizer{
		standardRoots: roots,
		logger:        log.With("component", "priority"),
	}
}

// PlatformRoots returns the canonical install roots for the given OS.
func PlatformRoots(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files`,
			`C:\Program Files (x86)`,
			`C:\ProgramData`,
			`C:\Windows\System32`,
		}
	case "darwin":
		return []string{
			"/Applications",
			"/usr/local",
			"/opt/homebrew",
			"/usr/bin",
			"/System/Applications",
		}
	default:
		return []string{
			"/usr/bin",
			"/usr/local/bin",
			"/usr/local",
			"/opt",
			"/snap",
			"/usr/lib",
		}
	}
}

// Prioritize evaluates the four tiers top-down for one component request.
// Unexpected internal failures are contained: the component yields a Result
// with no recommendation and the error embedded in the reasoning, never a
// process-level fault.
func (p *Prioritizer) Prioritize(req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("prioritization failed", "component", req.Component, "err", r)
			res = Result{
				ComponentName: req.Component,
				Level:         TierCustom,
				Compatibility: LevelIncompatible,
				Reasoning:     fmt.Sprintf("%s: prioritization failed: %v", req.Component, r),
				Metadata:      map[string]string{"error": fmt.Sprint(r)},
			}
		}
	}()

	if len(req.Candidates) == 0 {
		return Result{
			ComponentName: req.Component,
			Level:         TierCustom,
			Compatibility: LevelIncompatible,
			Reasoning:     fmt.Sprintf("%s: no installation was found by any detection method", req.Component),
		}
	}

	tiers := map[Tier][]detect.Candidate{}
	for _, c := range req.Candidates {
		tiers[p.tierOf(c, req.RequiredVersion)] = append(tiers[p.tierOf(c, req.RequiredVersion)], c)
	}

	var ordered []detect.Candidate
	var winningTier Tier
	for _, tier := range tierOrder {
		group := tiers[tier]
		if len(group) == 0 {
			continue
		}
		sortWithinTier(group)
		if ordered == nil {
			winningTier = tier
		}
		ordered = append(ordered, group...)
	}

	recommended := ordered[0]
	alternatives := ordered[1:]

	level := Classify(recommended.Version, req.RequiredVersion)
	score := p.score(winningTier, level, recommended)

	res = Result{
		ComponentName: req.Component,
		Level:         winningTier,
		Recommended:   &recommended,
		Alternatives:  alternatives,
		Score:         score,
		Compatibility: level,
		Reasoning:     p.reasoning(req, winningTier, level, recommended, len(alternatives)),
		Metadata: map[string]string{
			"method":     string(recommended.Method),
			"tier":       string(winningTier),
			"candidates": fmt.Sprint(len(req.Candidates)),
		},
	}
	return res
}

// PrioritizeAll evaluates a batch of requests and aggregates a report.
func (p *Prioritizer) PrioritizeAll(reqs []Request) Report {
	report := Report{
		TierDistribution:  make(map[Tier]int),
		LevelDistribution: make(map[Level]int),
	}

	var confidenceSum float64
	var recommendedCount int
	for _, req := range reqs {
		res := p.Prioritize(req)
		report.Results = append(report.Results, res)
		report.Total++
		report.TierDistribution[res.Level]++
		report.LevelDistribution[res.Compatibility]++

		switch {
		case res.Recommended == nil:
			report.Warnings = append(report.Warnings, res.Reasoning)
		default:
			confidenceSum += res.Recommended.Confidence
			recommendedCount++
			report.Recommendations = append(report.Recommendations, res.Reasoning)
		}
		if err, ok := res.Metadata["error"]; ok {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", res.ComponentName, err))
		}
	}
	if recommendedCount > 0 {
		report.AverageConfidence = confidenceSum / float64(recommendedCount)
	}
	return report
}

// tierOf assigns a candidate to its priority tier.
func (p *Prioritizer) tierOf(c detect.Candidate, required string) Tier {
	if c.Status == detect.StatusInstalled {
		return TierInstalled
	}
	if required != "" && sameMajorMinorAtLeast(c.Version, required) {
		return TierCompatible
	}
	if p.inStandardLocation(c) {
		return TierStandard
	}
	return TierCustom
}

// sortWithinTier orders candidates inside one tier: confidence descending,
// then method priority, then version. A final path comparison keeps the
// order total regardless of strategy completion order.
func sortWithinTier(group []detect.Candidate) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if pa, pb := a.Method.Priority(), b.Method.Priority(); pa != pb {
			return pa > pb
		}
		if cmp := version.Compare(a.Version, b.Version); cmp != 0 {
			return cmp > 0
		}
		return a.ExecutablePath < b.ExecutablePath
	})
}

// Classify grades a candidate version against a required version.
func Classify(candidate, required string) Level {
	if required == "" {
		return LevelCompatible
	}
	if strings.TrimSpace(candidate) == strings.TrimSpace(required) {
		return LevelPerfect
	}

	cv, rv := version.Parse(candidate), version.Parse(required)
	if !cv.Parsed || !rv.Parsed {
		return LevelIncompatible
	}

	switch {
	case cv.Major == rv.Major && cv.Minor == rv.Minor && cv.Patch == rv.Patch:
		return LevelPerfect
	case cv.Major == rv.Major && cv.Minor >= rv.Minor:
		return LevelCompatible
	case cv.Major == rv.Major:
		return LevelOutdated
	case abs(cv.Major-rv.Major) == 1:
		return LevelOutdated
	default:
		return LevelIncompatible
	}
}

// score computes base + compatibility + location + configuration bonuses,
// clamped to [0,1].
func (p *Prioritizer) score(tier Tier, level Level, c detect.Candidate) float64 {
	s := baseScore[tier] + compatBonus[level]
	if p.inStandardLocation(c) {
		s += 0.05
	}
	if isUserCustomized(c) {
		s += 0.03
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// reasoning builds the deterministic human-readable rationale. It depends
// only on the inputs, never on the wall clock.
func (p *Prioritizer) reasoning(req Request, tier Tier, level Level, c detect.Candidate, alternatives int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: selected %s candidate %s detected via %s (confidence %.2f)",
		req.Component, tier, c.Version, c.Method, c.Confidence)
	if req.RequiredVersion != "" {
		fmt.Fprintf(&b, "; compatibility %s against required %s", level, req.RequiredVersion)
	} else {
		fmt.Fprintf(&b, "; compatibility %s (no version requirement)", level)
	}
	switch alternatives {
	case 0:
		b.WriteString("; no alternatives")
	case 1:
		b.WriteString("; 1 alternative considered")
	default:
		fmt.Fprintf(&b, "; %d alternatives considered", alternatives)
	}
	return b.String()
}

// sameMajorMinorAtLeast reports whether candidate satisfies the
// compatible-versions tier rule: same major, minor at least the required.
func sameMajorMinorAtLeast(candidate, required string) bool {
	cv, rv := version.Parse(candidate), version.Parse(required)
	if !cv.Parsed || !rv.Parsed {
		return false
	}
	return cv.Major == rv.Major && cv.Minor >= rv.Minor
}

// inStandardLocation checks whether the candidate's install path lies under
// one of the platform's canonical install roots.
func (p *Prioritizer) inStandardLocation(c detect.Candidate) bool {
	path := c.InstallPath
	if path == "" {
		path = c.ExecutablePath
	}
	if path == "" {
		return false
	}
	for _, root := range p.standardRoots {
		if underRoot(path, root) {
			return true
		}
	}
	return false
}

func underRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// isUserCustomized recognizes installations the user has deliberately
// configured, either via explicit metadata or a portable install marker.
func isUserCustomized(c detect.Candidate) bool {
	if c.Metadata["customized"] == "true" || c.Metadata["portable"] == "true" {
		return true
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
