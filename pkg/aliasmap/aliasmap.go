// Package aliasmap builds and serves the {raw_key -> canonical_key}
// tables the Normalizer consults for place, publisher, and agent
// normalization (spec.md §4.2), plus a substring scanner over the same
// keys. No other package in this module calls the scanner; the SQL
// Builder handles CONTAINS on fields without a full-text-search shadow
// with LIKE. The lookup side is grounded on the
// RuntimeDictionary/Compile pattern used for entity matching in the
// teacher's implicit-matcher package, generalized from entity surface
// forms to normalization aliases.
package aliasmap

import (
	"github.com/coregx/ahocorasick"

	"github.com/raro-catalog/bibliofind/pkg/normalize"
)

// Entry is one resolved alias-map row: a raw, base-cleaned key mapped
// to its canonical form (or the ambiguous sentinel), as decided by
// Generate or supplied directly for a hand-curated map.
type Entry struct {
	RawKey     string
	Canonical  string
	Confidence float64
}

// Dictionary is a compiled, read-only alias map. It implements
// normalize.AliasLookup for the Normalizer, and additionally offers a
// substring Scan over its keys.
type Dictionary struct {
	exact map[string]string // cleaned raw key -> canonical
	ac    *ahocorasick.Automaton
	terms []string // patterns in automaton order, for Scan lookups
}

// Compile builds a Dictionary from entries whose confidence meets
// minConfidence (spec.md §4.2: "a confidence threshold (default 0.85)
// gates inclusion in the production map"). Entries below the threshold
// are dropped entirely — a dropped entry is equivalent to a miss, which
// falls back to base_clean normalization. Entries carrying the ambiguous
// sentinel are kept whatever their confidence, so Lookup reports them as
// ambiguous rather than as a miss.
func Compile(entries []Entry, minConfidence float64) (*Dictionary, error) {
	d := &Dictionary{exact: make(map[string]string, len(entries))}

	var patterns []string
	for _, e := range entries {
		if e.Confidence < minConfidence && e.Canonical != normalize.AmbiguousSentinel {
			continue
		}
		if e.RawKey == "" {
			continue
		}
		d.exact[e.RawKey] = e.Canonical
		patterns = append(patterns, e.RawKey)
	}
	d.terms = patterns

	if len(patterns) == 0 {
		return d, nil
	}

	automaton, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	d.ac = automaton
	return d, nil
}

// Lookup implements normalize.AliasLookup: exact match on a
// already-base-cleaned key.
func (d *Dictionary) Lookup(cleanedKey string) (string, bool) {
	canonical, ok := d.exact[cleanedKey]
	return canonical, ok
}

var _ normalize.AliasLookup = (*Dictionary)(nil)

// ScanMatch is one substring hit returned by Scan.
type ScanMatch struct {
	Start, End int
	RawKey     string
	Canonical  string
}

// Scan base-cleans text and finds every known alias key occurring in the
// cleaned form. Start and End are byte offsets into BaseClean(text), not
// into text itself.
func (d *Dictionary) Scan(text string) []ScanMatch {
	if d.ac == nil {
		return nil
	}
	cleaned := normalize.BaseClean(text)
	matches := d.ac.FindAllOverlapping([]byte(cleaned))

	out := make([]ScanMatch, 0, len(matches))
	for _, m := range matches {
		if m.PatternID < 0 || m.PatternID >= len(d.terms) {
			continue
		}
		rawKey := d.terms[m.PatternID]
		out = append(out, ScanMatch{
			Start:     m.Start,
			End:       m.End,
			RawKey:    rawKey,
			Canonical: d.exact[rawKey],
		})
	}
	return out
}
