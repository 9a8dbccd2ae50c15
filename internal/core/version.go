package core

import (
	"sort"
	"strconv"
	"strings"
)

// CompareVersions compares two version strings numerically where possible.
// Dotted numeric segments are compared as integers; the first non-numeric
// segment falls back to lexicographic comparison. Returns -1, 0 or 1.
// Version strings are opaque upstream, so this is best-effort ordering for
// "latest wins" selection, not strict semver.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}

	as := splitVersion(a)
	bs := splitVersion(b)

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}

		na, aok := strconv.Atoi(sa)
		nb, bok := strconv.Atoi(sb)
		if aok == nil && bok == nil {
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}

		// Non-numeric segment: lexicographic. Missing segments sort first
		// so "1.2" < "1.2.1" but "1.2" > "1.2-beta" is not attempted.
		if sa != sb {
			if sa < sb {
				return -1
			}
			return 1
		}
	}

	return 0
}

// SortVersionsDesc orders versions newest first, in place.
func SortVersionsDesc(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) > 0
	})
}

func splitVersion(v string) []string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '+'
	})
}
