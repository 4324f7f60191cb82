package normalize

import "strings"

// KeyResult is the shared shape for place/publisher/agent normalization
// (spec.md §4.2): a canonical key, a display label, a confidence, and a
// method tag; `Ambiguous` mirrors the alias map's sentinel decision.
type KeyResult struct {
	Norm       string
	Display    string
	Confidence float64
	Method     string
	Ambiguous  bool
}

const (
	methodBaseClean = "base_clean"
	methodAliasMap  = "alias_map"

	confBaseClean = 0.80
	confAliasMap  = 0.95
)

// NormalizeKeyed runs the shared base-clean + alias-map pipeline used by
// place, publisher, and agent normalization (spec.md §4.2). raw is
// stripped of surrounding brackets and trailing punctuation before
// base-clean, matching the Place/Publisher rule; callers that don't need
// the bracket/punctuation strip (agent names, already punctuation-free)
// can pass it through unchanged since the strip is idempotent on clean
// input.
func NormalizeKeyed(raw string, aliases AliasLookup) KeyResult {
	stripped := stripBracketsAndPunct(raw)
	cleaned := BaseClean(stripped)
	if cleaned == "" {
		return KeyResult{Norm: "", Display: "", Confidence: 0.0, Method: "unparsed"}
	}

	if canonical, found := aliases.Lookup(cleaned); found {
		if canonical == AmbiguousSentinel {
			return KeyResult{Norm: AmbiguousSentinel, Display: AmbiguousSentinel, Confidence: 0.0, Method: methodAliasMap, Ambiguous: true}
		}
		return KeyResult{Norm: canonical, Display: DisplayLabel(canonical), Confidence: confAliasMap, Method: methodAliasMap}
	}

	return KeyResult{Norm: cleaned, Display: DisplayLabel(cleaned), Confidence: confBaseClean, Method: methodBaseClean}
}

func stripBracketsAndPunct(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.TrimRight(strings.TrimSpace(s), ".,;:/")
}
