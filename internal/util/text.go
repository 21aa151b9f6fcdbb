package util

import (
	"strings"
	"unicode"
)

// NormalizeKey lowercases s, strips punctuation and collapses whitespace.
// It is the dedup key used everywhere two texts are compared for identity.
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Slugify turns a term into a stable key: lowercase words joined by
// underscores. Letters and digits of any script are kept, together with the
// combining marks inside a word.
func Slugify(s string) string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case unicode.IsMark(r) && cur.Len() > 0:
			cur.WriteRune(r)
		case r == '\'' || r == '’':
			// apostrophes join ("insured's" -> "insureds")
		default:
			flush()
		}
	}
	flush()
	return strings.Join(words, "_")
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
