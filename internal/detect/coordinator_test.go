package detect

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"toolscan/internal/cache"
)

// fakeStrategy returns canned candidates and counts how often it ran.
type fakeStrategy struct {
	method     Method
	candidates []Candidate
	calls      atomic.Int64
	panicWith  any
	block      time.Duration
}

func (f *fakeStrategy) Name() Method { return f.method }

func (f *fakeStrategy) Probe(ctx context.Context, targets []string) []Candidate {
	f.calls.Add(1)
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.block > 0 {
		select {
		case <-time.After(f.block):
		case <-ctx.Done():
			return nil
		}
	}
	return f.candidates
}

func setupCoordinator(t *testing.T, cfg Config) *Coordinator {
	t.Helper()
	if cfg.Cache == nil {
		c, err := cache.New(cache.NopStore{}, nil, 1)
		if err != nil {
			t.Fatalf("cache.New() error = %v", err)
		}
		t.Cleanup(func() { c.Close() })
		cfg.Cache = c
	}
	return NewCoordinator(cfg)
}

func TestDetectMergesAcrossStrategies(t *testing.T) {
	lookup := &fakeStrategy{
		method: MethodPathLookup,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodPathLookup, StatusInstalled, 0.9),
		},
	}
	scan := &fakeStrategy{
		method: MethodFilesystemScan,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodFilesystemScan, StatusInstalled, 0.6),
			NewCandidate("python3", "3.12.1", MethodFilesystemScan, StatusInstalled, 0.6),
		},
	}

	co := setupCoordinator(t, Config{
		Strategies: []Strategy{lookup, scan},
	})

	res := co.Detect(context.Background(), []string{"git", "python"})
	if len(res.Applications) != 2 {
		t.Fatalf("got %d applications, want 2: %+v", len(res.Applications), res.Applications)
	}
	if res.TotalDetected != 2 {
		t.Errorf("TotalDetected = %d, want 2", res.TotalDetected)
	}
	if res.RunID == "" {
		t.Error("RunID not assigned")
	}

	byName := map[string]Candidate{}
	for _, c := range res.Applications {
		byName[c.Name] = c
	}
	if git, ok := byName["git"]; !ok || git.Method != MethodPathLookup {
		t.Errorf("git candidate = %+v, want path-lookup winner", byName["git"])
	}
	if _, ok := byName["python"]; !ok {
		t.Error("python3 was not normalized to python")
	}
}

func TestDetectSecondPassHitsCache(t *testing.T) {
	lookup := &fakeStrategy{
		method: MethodPathLookup,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodPathLookup, StatusInstalled, 0.9),
		},
	}

	co := setupCoordinator(t, Config{Strategies: []Strategy{lookup}})

	first := co.Detect(context.Background(), []string{"git"})
	second := co.Detect(context.Background(), []string{"git"})

	if lookup.calls.Load() != 1 {
		t.Fatalf("strategy ran %d times, want 1 (second pass should hit cache)", lookup.calls.Load())
	}
	if len(second.Applications) != 1 || second.Applications[0].Version != first.Applications[0].Version {
		t.Errorf("cached pass = %+v, want same result as first %+v", second.Applications, first.Applications)
	}
}

func TestDetectCachesNegativeProbes(t *testing.T) {
	empty := &fakeStrategy{method: MethodPathLookup}
	co := setupCoordinator(t, Config{Strategies: []Strategy{empty}})

	res := co.Detect(context.Background(), []string{"ghost-tool"})
	if len(res.Applications) != 0 {
		t.Fatalf("got %d applications, want 0", len(res.Applications))
	}

	co.Detect(context.Background(), []string{"ghost-tool"})
	if empty.calls.Load() != 1 {
		t.Errorf("strategy ran %d times, want 1 (negative result should be cached)", empty.calls.Load())
	}
}

func TestDetectStrategyPanicBecomesWarning(t *testing.T) {
	bad := &fakeStrategy{method: MethodFilesystemScan, panicWith: "boom"}
	good := &fakeStrategy{
		method: MethodPathLookup,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodPathLookup, StatusInstalled, 0.9),
		},
	}

	co := setupCoordinator(t, Config{Strategies: []Strategy{bad, good}})

	res := co.Detect(context.Background(), []string{"git"})
	if len(res.Applications) != 1 {
		t.Fatalf("partial failure lost results: %+v", res.Applications)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("panicking strategy produced no warning")
	}
}

func TestDetectDeadlineDegradesToWarnings(t *testing.T) {
	slow := &fakeStrategy{method: MethodFilesystemScan, block: 5 * time.Second}
	fast := &fakeStrategy{
		method: MethodPathLookup,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodPathLookup, StatusInstalled, 0.9),
		},
	}

	co := setupCoordinator(t, Config{
		Strategies:     []Strategy{fast, slow},
		MaxConcurrency: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := co.Detect(ctx, []string{"git"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Detect blocked past the deadline: %v", elapsed)
	}
	if len(res.Warnings) == 0 {
		t.Error("deadline expiry produced no warning")
	}
}

func TestDetectExpiredDeadlineWarnsOncePerStrategy(t *testing.T) {
	a := &fakeStrategy{method: MethodPathLookup}
	b := &fakeStrategy{method: MethodFilesystemScan}

	co := setupCoordinator(t, Config{
		Strategies:     []Strategy{a, b},
		MaxConcurrency: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := co.Detect(ctx, []string{"git"})
	if len(res.Warnings) != 2 {
		t.Fatalf("got %d warnings, want exactly one per strategy: %v", len(res.Warnings), res.Warnings)
	}
	for _, m := range []Method{MethodPathLookup, MethodFilesystemScan} {
		count := 0
		for _, w := range res.Warnings {
			if strings.Contains(w, string(m)) {
				count++
			}
		}
		if count != 1 {
			t.Errorf("strategy %s mentioned in %d warnings, want 1: %v", m, count, res.Warnings)
		}
	}
}

func TestDetectFiltersToRequested(t *testing.T) {
	chatty := &fakeStrategy{
		method: MethodFilesystemScan,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodFilesystemScan, StatusInstalled, 0.6),
			NewCandidate("vim", "9.1", MethodFilesystemScan, StatusInstalled, 0.6),
		},
	}

	co := setupCoordinator(t, Config{Strategies: []Strategy{chatty}})

	res := co.Detect(context.Background(), []string{"git"})
	if len(res.Applications) != 1 || res.Applications[0].Name != "git" {
		t.Fatalf("explicit targets not filtered: %+v", res.Applications)
	}
}

func TestDetectDropsSelfDetections(t *testing.T) {
	workDir := t.TempDir()
	inside := NewCandidate("git", "2.47.1", MethodFilesystemScan, StatusInstalled, 0.6)
	inside.InstallPath = workDir + "/bin"
	outside := NewCandidate("node", "22.3.0", MethodPathLookup, StatusInstalled, 0.9)
	outside.ExecutablePath = "/usr/bin/node"

	s := &fakeStrategy{
		method:     MethodFilesystemScan,
		candidates: []Candidate{inside, outside},
	}

	co := setupCoordinator(t, Config{
		Strategies: []Strategy{s},
		WorkDir:    workDir,
	})

	res := co.Detect(context.Background(), []string{"git", "node"})
	if len(res.Applications) != 1 || res.Applications[0].Name != "node" {
		t.Fatalf("self-detection not dropped: %+v", res.Applications)
	}
	if len(res.Warnings) == 0 {
		t.Error("dropped self-detection produced no warning")
	}
}

func TestDetectEmptyTargetsUsesKnownComponents(t *testing.T) {
	s := &fakeStrategy{
		method: MethodPathLookup,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodPathLookup, StatusInstalled, 0.9),
			NewCandidate("stowaway", "1.0", MethodPathLookup, StatusInstalled, 0.9),
		},
	}

	co := setupCoordinator(t, Config{
		Strategies:      []Strategy{s},
		KnownComponents: []string{"git", "node"},
	})

	// Implicit detection keeps everything the strategies report, even
	// components outside the known list.
	res := co.Detect(context.Background(), nil)
	if len(res.Applications) != 2 {
		t.Fatalf("got %d applications, want 2: %+v", len(res.Applications), res.Applications)
	}
}

func TestDetectSummaryByMethod(t *testing.T) {
	s := &fakeStrategy{
		method: MethodPathLookup,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodPathLookup, StatusInstalled, 0.9),
			NewCandidate("node", "22.3.0", MethodPathLookup, StatusInstalled, 0.9),
		},
	}

	co := setupCoordinator(t, Config{Strategies: []Strategy{s}})

	res := co.Detect(context.Background(), []string{"git", "node"})
	if res.SummaryByMethod[MethodPathLookup] != 2 {
		t.Errorf("summary = %+v, want 2 path-lookup detections", res.SummaryByMethod)
	}
}

func TestDetectNoCacheConfigured(t *testing.T) {
	s := &fakeStrategy{
		method: MethodPathLookup,
		candidates: []Candidate{
			NewCandidate("git", "2.47.1", MethodPathLookup, StatusInstalled, 0.9),
		},
	}

	co := NewCoordinator(Config{Strategies: []Strategy{s}})

	for i := 0; i < 2; i++ {
		res := co.Detect(context.Background(), []string{"git"})
		if len(res.Applications) != 1 {
			t.Fatalf("pass %d got %d applications, want 1", i, len(res.Applications))
		}
	}
	if s.calls.Load() != 2 {
		t.Errorf("strategy ran %d times, want 2 without a cache", s.calls.Load())
	}
}
