package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var caseFolder = cases.Fold()

// isJoiner reports punctuation that commonly appears inside a bibliographic
// name or place ("O'Brien", "Jean-Luc", "Basel/Frankfurt a.M.") and must
// survive base-clean so multiword headings still compare as one unit.
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '&':
		return true
	default:
		return false
	}
}

// BaseClean is the Normalizer's shared text-canonicalization step
// (spec.md §4.2 "base clean"): NFKC-normalize, case-fold, collapse
// separators to single spaces while preserving in-word joiners, and trim.
// Every raw-value comparison and alias-map lookup in the pipeline goes
// through this same function so that matching stays consistent end to end.
func BaseClean(s string) string {
	s = norm.NFKC.String(s)
	s = caseFolder.String(s)

	var out strings.Builder
	out.Grow(len(s))
	lastWasSpace := true

	for _, r := range s {
		c := r
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := strings.TrimSuffix(out.String(), " ")
	return result
}

// titleCaser renders a canonicalized value back into a display-friendly
// form for labels that the controller echoes to the user (spec.md §4.2
// normalized attachments carry both the raw value and a clean label).
var titleCaser = cases.Title(language.Und)

// DisplayLabel title-cases a base-cleaned string for surfacing in
// evidence and exploration summaries; it is cosmetic only and never
// participates in matching.
func DisplayLabel(s string) string {
	return titleCaser.String(s)
}
