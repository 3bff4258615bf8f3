package validation

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sbr-consolidate/internal/normalize"
)

// Similarity scores how well a scraped place name matches the query that
// produced it, in [0,1]. Both sides are folded (diacritics, punctuation and
// case removed); the score is the better of the edit-distance similarity of
// the folded strings and their token-set ratio, so word order and extra
// location words in the query do not sink an otherwise matching name.
// A missing side scores 0.
func Similarity(query, name string) float64 {
	a, b := normalize.Fold(query), normalize.Fold(name)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return max(levenshtein.Similarity(a, b, nil), TokenSetRatio(a, b))
}

// TokenSetRatio compares the shared tokens of two folded strings against each
// side's full token set and returns the best edit-distance similarity.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := levenshtein.Similarity(withA, withB, nil)
	if base != "" {
		best = max(best,
			levenshtein.Similarity(base, withA, nil),
			levenshtein.Similarity(base, withB, nil))
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}
