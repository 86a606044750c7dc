package compat

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"toolscan/internal/detect"
	"toolscan/internal/version"
)

// overlapCategories are component categories where two independent
// installations tend to step on each other (shared file associations,
// PATH shadowing, default-handler fights).
var overlapCategories = map[string]bool{
	"compiler": true,
	"editor":   true,
	"ide":      true,
	"vcs":      true,
	"shell":    true,
}

type memoKey struct {
	a, va, b, vb, platform string
}

// Engine answers pairwise compatibility queries and reasons about conflicts
// over whole installed sets. Pairwise results are memoized; the memo is
// invalidated whenever a rule or profile touching a name is added.
type Engine struct {
	mu          sync.RWMutex
	rules       []Rule
	profiles    map[string]ComponentProfile
	known       []ConflictDetection
	resolutions map[string][]ConflictResolution
	memo        map[memoKey]Level
	// gen increments on every rule/profile change; a memo store is
	// skipped when the generation moved since the miss.
	gen    uint64
	logger *log.Logger
}

// NewEngine creates an empty engine. Rules and profiles are layered on via
// the Add* methods or LoadDir.
func NewEngine() *Engine {
	return &Engine{
		profiles:    make(map[string]ComponentProfile),
		resolutions: make(map[string][]ConflictResolution),
		memo:        make(map[memoKey]Level),
		logger:      log.With("component", "compat"),
	}
}

// AddRule registers an explicit compatibility rule and invalidates memoized
// results touching either component.
func (e *Engine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
	e.invalidateLocked(r.ComponentA, r.ComponentB)
}

// AddProfile registers a component profile, replacing any previous profile
// with the same name.
func (e *Engine) AddProfile(p ComponentProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profiles[normalize(p.Name)] = p
	e.invalidateLocked(p.Name)
}

// AddKnownConflict pre-registers a conflict that applies whenever all of its
// components are present in an installed set.
func (e *Engine) AddKnownConflict(c ConflictDetection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.known = append(e.known, c)
}

// AddResolution registers a remediation for a known conflict ID.
func (e *Engine) AddResolution(r ConflictResolution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolutions[r.ConflictID] = append(e.resolutions[r.ConflictID], r)
}

// invalidateLocked drops memo entries mentioning any of the given names.
// Caller holds e.mu.
func (e *Engine) invalidateLocked(names ...string) {
	e.gen++
	for key := range e.memo {
		for _, n := range names {
			nn := normalize(n)
			if key.a == nn || key.b == nn {
				delete(e.memo, key)
				break
			}
		}
	}
}

// CheckPair classifies the compatibility of two installed components.
// Explicit rules win; profile relationships and category heuristics fill
// the gaps; otherwise the answer is unknown. Results are symmetric:
// CheckPair(a,va,b,vb) == CheckPair(b,vb,a,va).
func (e *Engine) CheckPair(a, versionA, b, versionB, platform string) Level {
	na, nb := normalize(a), normalize(b)
	// Canonical key order makes the memo and the answer symmetric.
	key := memoKey{na, versionA, nb, versionB, platform}
	if na > nb {
		key = memoKey{nb, versionB, na, versionA, platform}
	}

	e.mu.RLock()
	if lvl, ok := e.memo[key]; ok {
		e.mu.RUnlock()
		return lvl
	}
	gen := e.gen
	e.mu.RUnlock()

	lvl := e.evaluatePair(key.a, key.va, key.b, key.vb, platform)

	e.mu.Lock()
	// A rule or profile added since the miss may have changed the answer;
	// the stale level must not overwrite the invalidation.
	if e.gen == gen {
		e.memo[key] = lvl
	}
	e.mu.Unlock()
	return lvl
}

// evaluatePair computes a pairwise level without touching the memo.
func (e *Engine) evaluatePair(a, versionA, b, versionB, platform string) Level {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// 1. Explicit rules, matched order-independently.
	for _, r := range e.rules {
		if ruleMatches(r, a, versionA, b, versionB, platform) {
			return r.Level
		}
	}

	// 2. Profile relationships.
	pa, hasA := e.profiles[a]
	pb, hasB := e.profiles[b]
	if hasA && listContains(pa.ConflictsWith, b) {
		return LevelIncompatible
	}
	if hasB && listContains(pb.ConflictsWith, a) {
		return LevelIncompatible
	}
	if hasA {
		if constraint, ok := requiresEntry(pa.Requires, b); ok {
			if version.Satisfies(versionB, constraint) {
				return LevelCompatible
			}
			return LevelIncompatible
		}
	}
	if hasB {
		if constraint, ok := requiresEntry(pb.Requires, a); ok {
			if version.Satisfies(versionA, constraint) {
				return LevelCompatible
			}
			return LevelIncompatible
		}
	}

	// 3. Category similarity: two components filling the same overlap-prone
	// role are flagged rather than assumed fine.
	if hasA && hasB && pa.Category != "" && pa.Category == pb.Category && overlapCategories[pa.Category] {
		return LevelPartial
	}

	return LevelUnknown
}

// ruleMatches checks one rule against a (possibly swapped) query pair.
func ruleMatches(r Rule, a, versionA, b, versionB, platform string) bool {
	ra, rb := normalize(r.ComponentA), normalize(r.ComponentB)

	var ca, cb string // constraints aligned to the query order
	switch {
	case ra == a && rb == b:
		ca, cb = r.VersionA, r.VersionB
	case ra == b && rb == a:
		ca, cb = r.VersionB, r.VersionA
	default:
		return false
	}

	if len(r.Platforms) > 0 && platform != "" && !listContains(r.Platforms, platform) {
		return false
	}
	if ca != "" && !version.Satisfies(versionA, ca) {
		return false
	}
	if cb != "" && !version.Satisfies(versionB, cb) {
		return false
	}
	return true
}

// DetectConflicts unions known conflicts, pairwise incompatibilities, unmet
// requires entries, and resource collisions over the installed set. The
// result is sorted (severity, then type, then components) so the output is
// reproducible for the same input.
func (e *Engine) DetectConflicts(installed map[string]string, platform string) []ConflictDetection {
	installed = normalizeInstalled(installed)
	names := sortedKeys(installed)
	var conflicts []ConflictDetection
	seen := make(map[string]struct{})

	add := func(c ConflictDetection) {
		if _, dup := seen[c.ID]; dup {
			return
		}
		seen[c.ID] = struct{}{}
		conflicts = append(conflicts, c)
	}

	// (a) Pre-registered conflicts whose component sets are fully present.
	e.mu.RLock()
	knownSnapshot := make([]ConflictDetection, len(e.known))
	copy(knownSnapshot, e.known)
	e.mu.RUnlock()
	for _, kc := range knownSnapshot {
		present := true
		for _, comp := range kc.Components {
			if _, ok := installed[normalize(comp)]; !ok {
				present = false
				break
			}
		}
		if present {
			add(kc)
		}
	}

	// (b) Pairwise incompatibilities, O(N^2).
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			if e.CheckPair(a, installed[a], b, installed[b], platform) != LevelIncompatible {
				continue
			}
			add(ConflictDetection{
				ID:          fmt.Sprintf("version:%s+%s", a, b),
				Type:        ConflictVersion,
				Components:  []string{a, b},
				Description: fmt.Sprintf("%s %s is incompatible with %s %s", a, installed[a], b, installed[b]),
				Severity:    SeverityHigh,
			})
		}
	}

	// (c) Missing or version-mismatched requires entries.
	for _, name := range names {
		profile, ok := e.profile(name)
		if !ok {
			continue
		}
		for _, dep := range sortedKeys(profile.Requires) {
			constraint := profile.Requires[dep]
			depVersion, present := installed[normalize(dep)]
			switch {
			case !present:
				add(ConflictDetection{
					ID:          fmt.Sprintf("dependency:%s->%s", name, normalize(dep)),
					Type:        ConflictDependency,
					Components:  []string{name, normalize(dep)},
					Description: fmt.Sprintf("%s requires %s %s, which is not installed", name, dep, constraint),
					Severity:    SeverityHigh,
				})
			case !version.Satisfies(depVersion, constraint):
				add(ConflictDetection{
					ID:          fmt.Sprintf("dependency-version:%s->%s", name, normalize(dep)),
					Type:        ConflictDependency,
					Components:  []string{name, normalize(dep)},
					Description: fmt.Sprintf("%s requires %s %s, but %s is installed", name, dep, constraint, depVersion),
					Severity:    SeverityMedium,
				})
			}
		}
	}

	// (d) Resource collisions: two components claiming the same port/path.
	conflicts = append(conflicts, e.resourceConflicts(names, seen)...)

	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] > severityRank[b.Severity]
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return strings.Join(a.Components, ",") < strings.Join(b.Components, ",")
	})
	return conflicts
}

// resourceConflicts finds components whose profiles claim the same port or
// filesystem path.
func (e *Engine) resourceConflicts(names []string, seen map[string]struct{}) []ConflictDetection {
	portClaims := make(map[int][]string)
	pathClaims := make(map[string][]string)
	for _, name := range names {
		profile, ok := e.profile(name)
		if !ok {
			continue
		}
		for _, port := range profile.Resources.Ports {
			portClaims[port] = append(portClaims[port], name)
		}
		for _, path := range profile.Resources.Paths {
			pathClaims[path] = append(pathClaims[path], name)
		}
	}

	var conflicts []ConflictDetection
	for _, port := range sortedPortKeys(portClaims) {
		claimants := portClaims[port]
		if len(claimants) < 2 {
			continue
		}
		sort.Strings(claimants)
		id := fmt.Sprintf("port:%d:%s", port, strings.Join(claimants, "+"))
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		conflicts = append(conflicts, ConflictDetection{
			ID:          id,
			Type:        ConflictPort,
			Components:  claimants,
			Description: fmt.Sprintf("components %s all claim port %d", strings.Join(claimants, ", "), port),
			Severity:    SeverityMedium,
		})
	}
	for _, path := range sortedKeys(pathClaims) {
		claimants := pathClaims[path]
		if len(claimants) < 2 {
			continue
		}
		sort.Strings(claimants)
		id := fmt.Sprintf("path:%s:%s", path, strings.Join(claimants, "+"))
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		conflicts = append(conflicts, ConflictDetection{
			ID:          id,
			Type:        ConflictPath,
			Components:  claimants,
			Description: fmt.Sprintf("components %s all claim path %s", strings.Join(claimants, ", "), path),
			Severity:    SeverityMedium,
		})
	}
	return conflicts
}

// Matrix computes the pairwise level for every pair in the installed set.
func (e *Engine) Matrix(installed map[string]string, platform string) map[string]map[string]Level {
	installed = normalizeInstalled(installed)
	names := sortedKeys(installed)
	matrix := make(map[string]map[string]Level, len(names))
	for _, a := range names {
		matrix[a] = make(map[string]Level, len(names)-1)
		for _, b := range names {
			if a == b {
				continue
			}
			matrix[a][b] = e.CheckPair(a, installed[a], b, installed[b], platform)
		}
	}
	return matrix
}

// Evaluate produces the full compatibility report for an installed set.
func (e *Engine) Evaluate(installed map[string]string, platform string) Report {
	installed = normalizeInstalled(installed)
	matrix := e.Matrix(installed, platform)
	conflicts := e.DetectConflicts(installed, platform)
	resolutions := e.Resolve(conflicts)

	summary := Summary{Counts: make(map[Level]int), Conflicts: len(conflicts)}
	var weight float64
	names := sortedKeys(installed)
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			lvl := matrix[names[i]][names[j]]
			summary.Counts[lvl]++
			summary.Pairs++
			weight += levelWeight[lvl]
		}
	}
	if summary.Pairs > 0 {
		summary.Score = weight / float64(summary.Pairs)
	} else {
		summary.Score = 1.0
	}

	return Report{
		Summary:     summary,
		Conflicts:   conflicts,
		Resolutions: resolutions,
		Matrix:      matrix,
	}
}

// profile fetches a profile snapshot by normalized name.
func (e *Engine) profile(name string) (ComponentProfile, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.profiles[normalize(name)]
	return p, ok
}

func normalize(name string) string {
	return detect.NormalizeName(name, nil)
}

// normalizeInstalled rewrites an installed set onto logical component keys.
func normalizeInstalled(installed map[string]string) map[string]string {
	out := make(map[string]string, len(installed))
	for name, ver := range installed {
		out[normalize(name)] = ver
	}
	return out
}

func listContains(list []string, name string) bool {
	for _, item := range list {
		if normalize(item) == name {
			return true
		}
	}
	return false
}

func requiresEntry(requires map[string]string, name string) (string, bool) {
	for dep, constraint := range requires {
		if normalize(dep) == name {
			return constraint, true
		}
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedPortKeys(m map[int][]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
