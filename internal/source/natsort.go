package source

import (
	"strings"

	"github.com/maruel/natural"
)

// Less reports whether a sorts before b in natural order. Paths are compared
// component by component on "/" and within a component digit runs compare by
// numeric value, so "page2" sorts before "page10".
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Compare returns -1, 0 or +1 comparing a and b in natural order.
func Compare(a, b string) int {
	ap := strings.Split(a, "/")
	bp := strings.Split(b, "/")
	for i := 0; i < len(ap) && i < len(bp); i++ {
		if c := compareComponent(ap[i], bp[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(ap) < len(bp):
		return -1
	case len(ap) > len(bp):
		return 1
	}
	return 0
}

// compareComponent falls back to byte order when natural order ties, as for
// "p1" and "p01", so the result is a total order.
func compareComponent(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return strings.Compare(a, b)
}
