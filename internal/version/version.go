// Package version implements the client version gate: comparing a
// dotted-numeric client version string against the server's configured
// minimum and deciding whether to let the connection through.
package version

import (
	"strconv"
	"strings"
)

// Parse splits a dotted version string ("1.2.3") into its numeric
// components. Missing or non-numeric segments are treated as 0, so "1.2"
// and "1.2.0" compare equal and a malformed string never panics.
func Parse(v string) [3]int {
	var out [3]int
	parts := strings.SplitN(v, ".", 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			continue
		}
		out[i] = n
	}
	return out
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Compare(a, b string) int {
	pa, pb := Parse(a), Parse(b)
	for i := 0; i < 3; i++ {
		switch {
		case pa[i] < pb[i]:
			return -1
		case pa[i] > pb[i]:
			return 1
		}
	}
	return 0
}

// Satisfies reports whether clientVersion meets or exceeds minRequired.
func Satisfies(clientVersion, minRequired string) bool {
	return Compare(clientVersion, minRequired) >= 0
}
