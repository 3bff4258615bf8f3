package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/record"
)

// Literal escape sequences left behind by scrapers that double-encode text.
var reEscapeSeq = regexp.MustCompile(`\\[rntfv0\\]`)

// CleanLabel strips escape sequences, control and format runes, surrounding
// quotes and whitespace, then folds case.
func CleanLabel(raw string) string {
	s := reEscapeSeq.ReplaceAllString(raw, "")
	s = norm.NFKC.String(s)

	b := strings.Builder{}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}

	s = strings.TrimSpace(b.String())
	s = strings.Trim(s, `"'`)
	return strings.ToLower(CollapseSpace(s))
}

// Label maps a raw validation label onto the canonical enumeration. It is
// total: NULL, empty and unrecognised input all yield NotFound.
func Label(raw *string, positive string) record.Label {
	return LabelDebug(false, raw, positive)
}

// LabelDebug is Label with optional debug output.
func LabelDebug(localDebug bool, raw *string, positive string) record.Label {
	if raw == nil {
		debug.DebugOutput(localDebug, "Label: NULL -> %s", record.NotFound)
		return record.NotFound
	}

	want := CleanLabel(positive)
	got := CleanLabel(*raw)
	if want != "" && got == want {
		debug.DebugOutput(localDebug, "Label: %q -> %s", *raw, record.Found)
		return record.Found
	}

	debug.DebugOutput(localDebug, "Label: %q (cleaned %q) -> %s", *raw, got, record.NotFound)
	return record.NotFound
}
