package normalize

// AmbiguousSentinel is the canonical value an alias map returns for an
// entry the alias-map generator marked AMBIGUOUS (spec.md §4.2): excluded
// from canonical indexing, retained only in the raw value.
const AmbiguousSentinel = "ambiguous"

// AliasLookup is the read-side contract the Normalizer needs from an
// alias map; pkg/aliasmap implements it over an Aho-Corasick-backed
// dictionary so the Normalizer itself stays free of any matching
// engine dependency.
type AliasLookup interface {
	// Lookup returns the canonical key for a base-cleaned raw key, and
	// whether the key was present in the map at all.
	Lookup(cleanedKey string) (canonical string, found bool)
}

// noAliasLookup is used wherever the caller has not supplied an alias
// map (e.g. before the offline alias-map build has run for a corpus);
// every lookup misses and normalization falls back to base_clean.
type noAliasLookup struct{}

func (noAliasLookup) Lookup(string) (string, bool) { return "", false }

// NoAliasLookup is the zero-value AliasLookup: always misses.
var NoAliasLookup AliasLookup = noAliasLookup{}
