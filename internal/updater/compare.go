package updater

import (
	"strconv"
	"strings"
)

// IsNewer reports whether candidate is a strictly newer version than
// current. Versions are dotted numerics with an optional leading "v"
// and optional pre-release suffix after "-"; missing segments compare
// as zero. Malformed segments compare as zero rather than erroring.
func IsNewer(candidate, current string) bool {
	a := parseVersion(candidate)
	b := parseVersion(current)

	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return av > bv
		}
	}
	return false
}

func parseVersion(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		out[i] = n
	}
	return out
}
