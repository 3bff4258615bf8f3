package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold prepares free text for similarity comparison: compatibility
// decomposition, diacritics removed, punctuation to spaces, lowercase,
// whitespace collapsed.
func Fold(s string) string {
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	b := strings.Builder{}
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return CollapseSpace(b.String())
}

// CollapseSpace trims and collapses runs of whitespace.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
