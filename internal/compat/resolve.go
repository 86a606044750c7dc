package compat

import (
	"fmt"
	"sort"
)

// Resolve proposes remediations for the given conflicts, ordered by
// estimated success probability descending. Registered resolutions are
// preferred; otherwise one or more are synthesized from the conflict type.
func (e *Engine) Resolve(conflicts []ConflictDetection) []ConflictResolution {
	var out []ConflictResolution
	for _, c := range conflicts {
		e.mu.RLock()
		registered := e.resolutions[c.ID]
		e.mu.RUnlock()
		if len(registered) > 0 {
			out = append(out, registered...)
			continue
		}
		out = append(out, synthesize(c)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SuccessProbability != out[j].SuccessProbability {
			return out[i].SuccessProbability > out[j].SuccessProbability
		}
		return out[i].ConflictID < out[j].ConflictID
	})
	return out
}

// synthesize builds default remediations from a conflict's type.
func synthesize(c ConflictDetection) []ConflictResolution {
	first := func() string {
		if len(c.Components) > 0 {
			return c.Components[0]
		}
		return "component"
	}()
	second := func() string {
		if len(c.Components) > 1 {
			return c.Components[1]
		}
		return first
	}()

	switch c.Type {
	case ConflictVersion:
		return []ConflictResolution{
			{
				ConflictID:         c.ID,
				Strategy:           StrategyUpgrade,
				Actions:            []string{fmt.Sprintf("upgrade %s to a version compatible with %s", first, second)},
				EstimatedImpact:    fmt.Sprintf("only %s changes; %s keeps its current version", first, second),
				SuccessProbability: 0.8,
				RollbackPlan:       []string{fmt.Sprintf("reinstall the previous %s version", first)},
			},
			{
				ConflictID:         c.ID,
				Strategy:           StrategyAlternative,
				Actions:            []string{fmt.Sprintf("replace %s with an alternative that coexists with %s", second, first)},
				EstimatedImpact:    fmt.Sprintf("workflows using %s need migration", second),
				SuccessProbability: 0.6,
			},
		}
	case ConflictDependency:
		return []ConflictResolution{{
			ConflictID:         c.ID,
			Strategy:           StrategyUpgrade,
			Actions:            []string{fmt.Sprintf("install or upgrade %s to satisfy %s", second, first)},
			EstimatedImpact:    fmt.Sprintf("adds or updates %s only", second),
			SuccessProbability: 0.85,
			RollbackPlan:       []string{fmt.Sprintf("remove %s", second)},
		}}
	case ConflictResource, ConflictPort, ConflictPath:
		return []ConflictResolution{{
			ConflictID:         c.ID,
			Strategy:           StrategyConfigure,
			Actions:            []string{fmt.Sprintf("reconfigure %s to use an alternate resource", second)},
			EstimatedImpact:    fmt.Sprintf("%s configuration changes; no reinstall needed", second),
			SuccessProbability: 0.7,
			RollbackPlan:       []string{fmt.Sprintf("restore the previous %s configuration", second)},
		}}
	case ConflictPlatform:
		return []ConflictResolution{{
			ConflictID:         c.ID,
			Strategy:           StrategyManual,
			Actions:            []string{fmt.Sprintf("review platform support for %s manually", first)},
			SuccessProbability: 0.4,
		}}
	default:
		return []ConflictResolution{{
			ConflictID:         c.ID,
			Strategy:           StrategyManual,
			Actions:            []string{fmt.Sprintf("inspect the %s/%s conflict manually", first, second)},
			SuccessProbability: 0.5,
		}}
	}
}
