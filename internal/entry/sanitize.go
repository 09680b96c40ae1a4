package entry

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize strips markup and unprintable characters from free text and
// collapses surrounding whitespace. Entities produced by the HTML policy
// are decoded again so "Tom & Jerry" stays as typed.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		return -1
	}, s)
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.TrimSpace(s)
}
