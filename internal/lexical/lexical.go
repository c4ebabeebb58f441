// File path: internal/lexical/lexical.go
package lexical

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FuzzyThreshold is the minimum similarity ratio a fuzzy match must clear.
const FuzzyThreshold = 0.8

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces a string to a canonical comparable form: unicode
// canonicalization, diacritic stripping, casefolding, punctuation removal,
// and whitespace collapsing. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(stripped)
	var b strings.Builder
	b.Grow(len(stripped))
	prevSpace := false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Ratio is a Levenshtein similarity ratio over normalized forms, in [0, 1].
func Ratio(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" && nb == "" {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}

// BestColumnMatch resolves a query token against a table's columns: an exact
// normalized match wins outright, otherwise the best fuzzy match clearing
// FuzzyThreshold. Among equal-best fuzzy candidates the first column in
// declared order wins, keeping resolution deterministic.
func BestColumnMatch(token string, columns []string) (string, bool) {
	return bestMatch(token, columns)
}

// BestValueMatch resolves a query token against the distinct values of one
// column, with the same exact-then-fuzzy policy as BestColumnMatch.
func BestValueMatch(token string, values []string) (string, bool) {
	return bestMatch(token, values)
}

func bestMatch(token string, candidates []string) (string, bool) {
	normalized := Normalize(token)
	if normalized == "" {
		return "", false
	}
	for _, candidate := range candidates {
		if Normalize(candidate) == normalized {
			return candidate, true
		}
	}
	best := ""
	bestRatio := 0.0
	found := false
	for _, candidate := range candidates {
		r := Ratio(token, candidate)
		if r >= FuzzyThreshold && r > bestRatio {
			best = candidate
			bestRatio = r
			found = true
		}
	}
	return best, found
}
