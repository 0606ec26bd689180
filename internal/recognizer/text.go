package recognizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var dotRun = regexp.MustCompile(`[・.]{2,}`)

// PostProcessText cleans raw decoder output: whitespace is removed, ellipses
// and runs of middle dots become ASCII dots, and half-width characters are
// widened.
func PostProcessText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, "…", "...")
	s = dotRun.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(".", len([]rune(m)))
	})
	s = width.Widen.String(s)
	return norm.NFC.String(s)
}
