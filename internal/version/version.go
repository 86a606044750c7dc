// Package version provides a best-effort parser for the version strings
// detection strategies report. Real-world tools emit everything from
// "2.47.1" to "v1.2.3-rc1" to "unknown", so parsing never fails hard:
// unparseable input yields an explicit non-parsed variant instead.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

// Version is a structured best-effort decomposition of a version string.
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Raw    string
	Parsed bool
}

// numberRe finds the first dotted numeric run in a version string,
// tolerating prefixes like "v" or "git version".
var numberRe = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// Parse extracts major/minor/patch from raw. "", "unknown" and strings
// without any digits come back with Parsed == false.
func Parse(raw string) Version {
	v := Version{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "unknown") {
		return v
	}

	m := numberRe.FindStringSubmatch(trimmed)
	if m == nil {
		return v
	}

	v.Major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		v.Minor, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		v.Patch, _ = strconv.Atoi(m[3])
	}
	v.Parsed = true
	return v
}

// Compare orders two version strings: negative if a < b, zero if equal,
// positive if a > b. Parsed versions order numerically; an unparseable
// version sorts below any parsed one; two unparseable versions fall back to
// string comparison.
func Compare(a, b string) int {
	va, vb := Parse(a), Parse(b)

	switch {
	case va.Parsed && vb.Parsed:
		if va.Major != vb.Major {
			return va.Major - vb.Major
		}
		if va.Minor != vb.Minor {
			return va.Minor - vb.Minor
		}
		if va.Patch != vb.Patch {
			return va.Patch - vb.Patch
		}
		return strings.Compare(va.Raw, vb.Raw)
	case va.Parsed:
		return 1
	case vb.Parsed:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// Satisfies evaluates a simple constraint expression against a version.
// Supported forms: "" (anything), "==X", "!=X", ">=X", "<=X", ">X", "<X",
// and a bare value, which matches as a numeric prefix ("1.2" matches
// "1.2.7"). Unparseable versions satisfy only the empty constraint.
func Satisfies(ver, constraint string) bool {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return true
	}

	op := ""
	val := constraint
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if strings.HasPrefix(constraint, candidate) {
			op = candidate
			val = strings.TrimSpace(constraint[len(candidate):])
			break
		}
	}

	v := Parse(ver)
	if !v.Parsed {
		return false
	}

	switch op {
	case "==":
		return Compare(ver, val) == 0
	case "!=":
		return Compare(ver, val) != 0
	case ">=":
		return Compare(ver, val) >= 0
	case "<=":
		return Compare(ver, val) <= 0
	case ">":
		return Compare(ver, val) > 0
	case "<":
		return Compare(ver, val) < 0
	default:
		return prefixMatch(v, Parse(val), val)
	}
}

// prefixMatch matches a bare constraint value by its stated precision:
// "1" matches any 1.x.y, "1.2" matches any 1.2.y, "1.2.3" matches exactly.
func prefixMatch(v, want Version, rawWant string) bool {
	if !want.Parsed {
		return strings.HasPrefix(v.Raw, rawWant)
	}
	parts := strings.Count(strings.TrimPrefix(strings.TrimSpace(rawWant), "v"), ".")
	if v.Major != want.Major {
		return false
	}
	if parts >= 1 && v.Minor != want.Minor {
		return false
	}
	if parts >= 2 && v.Patch != want.Patch {
		return false
	}
	return true
}
