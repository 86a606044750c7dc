package detect

import (
	"regexp"
	"sort"
	"strings"
)

// aliases maps alternate spellings to their logical component name.
// Extra aliases can be layered on top via Coordinator configuration.
var aliases = map[string]string{
	"python2":   "python",
	"python3":   "python",
	"py":        "python",
	"nodejs":    "node",
	"node.js":   "node",
	"golang":    "go",
	"g++":       "gcc",
	"clang++":   "clang",
	"code":      "vscode",
	"code-oss":  "vscode",
	"docker.io": "docker",
}

// versionedNameRe matches names like "python3.12" or "ruby2.7" that carry an
// embedded interpreter version.
var versionedNameRe = regexp.MustCompile(`^([a-z][a-z+.-]*?)[0-9][0-9.]*$`)

// NormalizeName collapses a raw candidate name to its logical component key:
// lowercase, alias-resolved, with embedded version suffixes stripped.
func NormalizeName(name string, extra map[string]string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := extra[n]; ok {
		return a
	}
	if a, ok := aliases[n]; ok {
		return a
	}
	if m := versionedNameRe.FindStringSubmatch(n); m != nil {
		base := strings.TrimRight(m[1], ".-")
		if a, ok := extra[base]; ok {
			return a
		}
		if a, ok := aliases[base]; ok {
			return a
		}
		return base
	}
	return n
}

// Merge groups candidates by normalized logical name and keeps a single
// canonical winner per group. The result is deterministic for any
// permutation of the input: groups are fully sorted before tie-breaking.
//
// Within a group the winner is chosen by:
//  1. confidence, descending
//  2. method priority (registry > manual-rule > path-lookup >
//     filesystem-scan > package-manager)
//  3. a known version beats "unknown"
//  4. version string, descending (stable final tie-break on paths)
//
// Losers are returned separately so callers can log the discards.
func Merge(candidates []Candidate, extraAliases map[string]string) (winners, discarded []Candidate) {
	groups := make(map[string][]Candidate)
	var order []string
	for _, c := range candidates {
		key := NormalizeName(c.Name, extraAliases)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}
	sort.Strings(order)

	for _, key := range order {
		group := groups[key]
		sortCandidates(group)
		winner := group[0]
		winner.Name = key
		winners = append(winners, winner)
		discarded = append(discarded, group[1:]...)
	}
	return winners, discarded
}

// sortCandidates orders a candidate group best-first using the merge
// tie-break rules. The trailing path comparisons exist only to make the
// order total, so concurrent strategy completion order can never leak into
// the result.
func sortCandidates(group []Candidate) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if pa, pb := a.Method.Priority(), b.Method.Priority(); pa != pb {
			return pa > pb
		}
		aKnown, bKnown := a.Version != VersionUnknown, b.Version != VersionUnknown
		if aKnown != bKnown {
			return aKnown
		}
		if a.Version != b.Version {
			return a.Version > b.Version
		}
		if a.ExecutablePath != b.ExecutablePath {
			return a.ExecutablePath < b.ExecutablePath
		}
		return a.InstallPath < b.InstallPath
	})
}
