package compat

import (
	"strings"
	"testing"
)

func setupEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine()
}

func TestCheckPairUnknownByDefault(t *testing.T) {
	e := setupEngine(t)
	if lvl := e.CheckPair("git", "2.47.1", "node", "22.3.0", ""); lvl != LevelUnknown {
		t.Errorf("CheckPair with no data = %q, want unknown", lvl)
	}
}

func TestCheckPairSymmetric(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{
		ComponentA: "python",
		ComponentB: "node",
		VersionA:   ">=3.0",
		Level:      LevelCompatible,
	})

	ab := e.CheckPair("python", "3.12.1", "node", "22.3.0", "linux")
	ba := e.CheckPair("node", "22.3.0", "python", "3.12.1", "linux")
	if ab != ba {
		t.Errorf("CheckPair not symmetric: (a,b)=%q (b,a)=%q", ab, ba)
	}
	if ab != LevelCompatible {
		t.Errorf("CheckPair = %q, want compatible", ab)
	}
}

func TestCheckPairRuleVersionConstraints(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{
		ComponentA: "terraform",
		ComponentB: "kubectl",
		VersionA:   ">=1.0",
		VersionB:   ">=1.25",
		Level:      LevelCompatible,
	})
	e.AddRule(Rule{
		ComponentA: "terraform",
		ComponentB: "kubectl",
		Level:      LevelIncompatible,
	})

	// First rule matches when both constraints hold.
	if lvl := e.CheckPair("terraform", "1.9.0", "kubectl", "1.30.0", ""); lvl != LevelCompatible {
		t.Errorf("constrained rule = %q, want compatible", lvl)
	}
	// Constraint miss falls through to the catch-all.
	if lvl := e.CheckPair("terraform", "0.12.0", "kubectl", "1.30.0", ""); lvl != LevelIncompatible {
		t.Errorf("fallthrough rule = %q, want incompatible", lvl)
	}
}

func TestCheckPairPlatformScopedRule(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{
		ComponentA: "docker",
		ComponentB: "podman",
		Platforms:  []string{"linux"},
		Level:      LevelIncompatible,
	})

	if lvl := e.CheckPair("docker", "27.0", "podman", "5.0", "linux"); lvl != LevelIncompatible {
		t.Errorf("on-platform = %q, want incompatible", lvl)
	}
	if lvl := e.CheckPair("docker", "27.0", "podman", "5.0", "darwin"); lvl != LevelUnknown {
		t.Errorf("off-platform = %q, want unknown", lvl)
	}
}

func TestCheckPairProfileConflictsWith(t *testing.T) {
	e := setupEngine(t)
	e.AddProfile(ComponentProfile{
		Name:          "apache",
		ConflictsWith: []string{"nginx"},
	})

	if lvl := e.CheckPair("nginx", "1.27", "apache", "2.4", ""); lvl != LevelIncompatible {
		t.Errorf("conflicts_with = %q, want incompatible", lvl)
	}
}

func TestCheckPairProfileRequires(t *testing.T) {
	e := setupEngine(t)
	e.AddProfile(ComponentProfile{
		Name:     "kubectl",
		Requires: map[string]string{"docker": ">=20.0"},
	})

	if lvl := e.CheckPair("kubectl", "1.30.0", "docker", "27.0.1", ""); lvl != LevelCompatible {
		t.Errorf("satisfied requires = %q, want compatible", lvl)
	}
	if lvl := e.CheckPair("kubectl", "1.30.0", "docker", "19.0.3", ""); lvl != LevelIncompatible {
		t.Errorf("unsatisfied requires = %q, want incompatible", lvl)
	}
}

func TestCheckPairCategoryOverlap(t *testing.T) {
	e := setupEngine(t)
	e.AddProfile(ComponentProfile{Name: "vim", Category: "editor"})
	e.AddProfile(ComponentProfile{Name: "emacs", Category: "editor"})
	e.AddProfile(ComponentProfile{Name: "jq", Category: "utility"})

	if lvl := e.CheckPair("vim", "9.1", "emacs", "29.1", ""); lvl != LevelPartial {
		t.Errorf("overlapping editors = %q, want partially-compatible", lvl)
	}
	if lvl := e.CheckPair("vim", "9.1", "jq", "1.7", ""); lvl != LevelUnknown {
		t.Errorf("disjoint categories = %q, want unknown", lvl)
	}
}

func TestMemoInvalidationOnNewRule(t *testing.T) {
	e := setupEngine(t)

	if lvl := e.CheckPair("git", "2.47.1", "svn", "1.14", ""); lvl != LevelUnknown {
		t.Fatalf("first query = %q, want unknown", lvl)
	}

	e.AddRule(Rule{ComponentA: "git", ComponentB: "svn", Level: LevelIncompatible})

	if lvl := e.CheckPair("git", "2.47.1", "svn", "1.14", ""); lvl != LevelIncompatible {
		t.Errorf("post-rule query = %q, want incompatible (stale memo?)", lvl)
	}
}

func TestMemoInvalidationDuringConcurrentQueries(t *testing.T) {
	// Queries racing a rule addition must never leave a stale memo behind:
	// once AddRule returns, the pair has to report the new level.
	for i := 0; i < 100; i++ {
		e := setupEngine(t)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 50; j++ {
				e.CheckPair("git", "2.47.1", "svn", "1.14", "")
			}
		}()

		e.AddRule(Rule{ComponentA: "git", ComponentB: "svn", Level: LevelIncompatible})
		<-done

		if lvl := e.CheckPair("git", "2.47.1", "svn", "1.14", ""); lvl != LevelIncompatible {
			t.Fatalf("iteration %d: post-rule query = %q, want incompatible", i, lvl)
		}
	}
}

func TestDetectConflictsPairwise(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{ComponentA: "apache", ComponentB: "nginx", Level: LevelIncompatible})

	conflicts := e.DetectConflicts(map[string]string{
		"apache": "2.4",
		"nginx":  "1.27",
		"git":    "2.47.1",
	}, "")

	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if c.Type != ConflictVersion || c.Severity != SeverityHigh {
		t.Errorf("conflict = %+v, want high-severity version conflict", c)
	}
	if c.ID != "version:apache+nginx" {
		t.Errorf("conflict ID = %q, want deterministic version:apache+nginx", c.ID)
	}
}

func TestDetectConflictsMissingDependency(t *testing.T) {
	e := setupEngine(t)
	e.AddProfile(ComponentProfile{
		Name:     "kubectl",
		Requires: map[string]string{"docker": ">=20.0"},
	})

	conflicts := e.DetectConflicts(map[string]string{"kubectl": "1.30.0"}, "")
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(conflicts), conflicts)
	}
	if conflicts[0].ID != "dependency:kubectl->docker" {
		t.Errorf("ID = %q, want dependency:kubectl->docker", conflicts[0].ID)
	}

	// Present but too old: version mismatch, medium severity.
	conflicts = e.DetectConflicts(map[string]string{
		"kubectl": "1.30.0",
		"docker":  "19.0.3",
	}, "")
	var ids []string
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	found := false
	for _, id := range ids {
		if id == "dependency-version:kubectl->docker" {
			found = true
		}
	}
	if !found {
		t.Errorf("conflicts %v missing dependency-version:kubectl->docker", ids)
	}
}

func TestDetectConflictsKnownConflict(t *testing.T) {
	e := setupEngine(t)
	e.AddKnownConflict(ConflictDetection{
		ID:          "known:docker-desktop+virtualbox",
		Type:        ConflictRuntime,
		Components:  []string{"docker", "virtualbox"},
		Description: "hypervisor contention",
		Severity:    SeverityCritical,
	})

	// Only one component present: no conflict.
	if conflicts := e.DetectConflicts(map[string]string{"docker": "27.0"}, ""); len(conflicts) != 0 {
		t.Fatalf("partial set raised %+v", conflicts)
	}

	conflicts := e.DetectConflicts(map[string]string{
		"docker":     "27.0",
		"virtualbox": "7.0",
	}, "")
	if len(conflicts) != 1 || conflicts[0].ID != "known:docker-desktop+virtualbox" {
		t.Fatalf("got %+v, want the known conflict", conflicts)
	}
}

func TestDetectConflictsResourceCollisions(t *testing.T) {
	e := setupEngine(t)
	e.AddProfile(ComponentProfile{
		Name:      "nginx",
		Resources: ResourceRequirements{Ports: []int{80}, Paths: []string{"/var/www"}},
	})
	e.AddProfile(ComponentProfile{
		Name:      "apache",
		Resources: ResourceRequirements{Ports: []int{80}, Paths: []string{"/var/www"}},
	})

	conflicts := e.DetectConflicts(map[string]string{"nginx": "1.27", "apache": "2.4"}, "")

	var types []ConflictType
	for _, c := range conflicts {
		types = append(types, c.Type)
	}
	hasPort, hasPath := false, false
	for _, ct := range types {
		if ct == ConflictPort {
			hasPort = true
		}
		if ct == ConflictPath {
			hasPath = true
		}
	}
	if !hasPort || !hasPath {
		t.Errorf("conflicts %v, want both a port and a path collision", types)
	}
}

func TestDetectConflictsSortedBySeverity(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{ComponentA: "apache", ComponentB: "nginx", Level: LevelIncompatible})
	e.AddProfile(ComponentProfile{
		Name:      "nginx",
		Resources: ResourceRequirements{Ports: []int{80}},
	})
	e.AddProfile(ComponentProfile{
		Name:      "caddy",
		Resources: ResourceRequirements{Ports: []int{80}},
	})

	conflicts := e.DetectConflicts(map[string]string{
		"apache": "2.4",
		"nginx":  "1.27",
		"caddy":  "2.8",
	}, "")

	for i := 1; i < len(conflicts); i++ {
		if severityRank[conflicts[i-1].Severity] < severityRank[conflicts[i].Severity] {
			t.Fatalf("conflicts not sorted by severity: %+v", conflicts)
		}
	}
}

func TestDetectConflictsNormalizesNames(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{ComponentA: "python", ComponentB: "node", Level: LevelIncompatible})

	conflicts := e.DetectConflicts(map[string]string{
		"Python3": "3.12.1",
		"nodejs":  "22.3.0",
	}, "")
	if len(conflicts) != 1 {
		t.Fatalf("aliased names not normalized: %+v", conflicts)
	}
	if conflicts[0].ID != "version:node+python" {
		t.Errorf("ID = %q, want version:node+python", conflicts[0].ID)
	}
}

func TestResolveRegisteredBeatsSynthesized(t *testing.T) {
	e := setupEngine(t)
	e.AddResolution(ConflictResolution{
		ConflictID:         "version:apache+nginx",
		Strategy:           StrategyExclude,
		Actions:            []string{"remove apache"},
		SuccessProbability: 0.95,
	})

	out := e.Resolve([]ConflictDetection{{
		ID:         "version:apache+nginx",
		Type:       ConflictVersion,
		Components: []string{"apache", "nginx"},
		Severity:   SeverityHigh,
	}})

	if len(out) != 1 || out[0].Strategy != StrategyExclude {
		t.Fatalf("Resolve = %+v, want the registered resolution only", out)
	}
}

func TestResolveSynthesizedOrdering(t *testing.T) {
	e := setupEngine(t)

	out := e.Resolve([]ConflictDetection{{
		ID:         "version:a+b",
		Type:       ConflictVersion,
		Components: []string{"a", "b"},
		Severity:   SeverityHigh,
	}})

	if len(out) != 2 {
		t.Fatalf("version conflict synthesized %d resolutions, want 2", len(out))
	}
	if out[0].Strategy != StrategyUpgrade || out[1].Strategy != StrategyAlternative {
		t.Errorf("strategies = %q, %q, want upgrade then alternative", out[0].Strategy, out[1].Strategy)
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].SuccessProbability < out[i].SuccessProbability {
			t.Fatalf("resolutions not sorted by probability: %+v", out)
		}
	}
	for _, r := range out {
		if r.SuccessProbability <= 0 || r.SuccessProbability > 1 {
			t.Errorf("success probability %v outside (0,1]", r.SuccessProbability)
		}
	}
}

func TestEvaluateScore(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{ComponentA: "a", ComponentB: "b", Level: LevelCompatible})
	e.AddRule(Rule{ComponentA: "a", ComponentB: "c", Level: LevelIncompatible})
	e.AddRule(Rule{ComponentA: "b", ComponentB: "c", Level: LevelIncompatible})

	report := e.Evaluate(map[string]string{"a": "1", "b": "1", "c": "1"}, "")

	if report.Summary.Pairs != 3 {
		t.Errorf("pairs = %d, want 3", report.Summary.Pairs)
	}
	// (1.0 + 0.0 + 0.0) / 3
	if diff := report.Summary.Score - 1.0/3.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want 1/3", report.Summary.Score)
	}
	if report.Summary.Conflicts != 2 {
		t.Errorf("conflicts = %d, want 2", report.Summary.Conflicts)
	}
	if len(report.Resolutions) == 0 {
		t.Error("conflicting set produced no resolutions")
	}
}

func TestEvaluateEmptySetScoresPerfect(t *testing.T) {
	e := setupEngine(t)

	report := e.Evaluate(map[string]string{"git": "2.47.1"}, "")
	if report.Summary.Score != 1.0 {
		t.Errorf("single-component score = %v, want 1.0", report.Summary.Score)
	}
	if report.Summary.Pairs != 0 {
		t.Errorf("pairs = %d, want 0", report.Summary.Pairs)
	}
}

func TestMatrixSymmetric(t *testing.T) {
	e := setupEngine(t)
	e.AddRule(Rule{ComponentA: "a", ComponentB: "b", Level: LevelIncompatible})

	m := e.Matrix(map[string]string{"a": "1", "b": "2", "c": "3"}, "")
	for x, row := range m {
		for y, lvl := range row {
			if m[y][x] != lvl {
				t.Errorf("matrix[%s][%s]=%q but matrix[%s][%s]=%q", x, y, lvl, y, x, m[y][x])
			}
		}
	}
}

func TestSynthesizeDescriptionsMentionComponents(t *testing.T) {
	e := setupEngine(t)
	out := e.Resolve([]ConflictDetection{{
		ID:         "port:80:apache+nginx",
		Type:       ConflictPort,
		Components: []string{"apache", "nginx"},
		Severity:   SeverityMedium,
	}})
	if len(out) != 1 || out[0].Strategy != StrategyConfigure {
		t.Fatalf("port conflict resolution = %+v, want configure", out)
	}
	if !strings.Contains(out[0].Actions[0], "nginx") {
		t.Errorf("action %q does not name the component", out[0].Actions[0])
	}
}
