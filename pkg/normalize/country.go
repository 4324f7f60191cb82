package normalize

import "strings"

// countryNames maps MARC21 country-of-publication codes (fixed positions
// 15-17 of control field 008) to a display name. Not exhaustive; covers
// the codes common in a rare-book hand-press-era corpus.
var countryNames = map[string]string{
	"it ": "Italy",
	"it":  "Italy",
	"fr ": "France",
	"fr":  "France",
	"gw ": "Germany",
	"gw":  "Germany",
	"gr ": "Greece",
	"gr":  "Greece",
	"enk": "England",
	"nl ": "Netherlands",
	"nl":  "Netherlands",
	"sp ": "Spain",
	"sp":  "Spain",
	"sw ": "Switzerland",
	"sw":  "Switzerland",
	"au ": "Austria",
	"au":  "Austria",
	"bl ": "Belgium",
	"bl":  "Belgium",
	"xxu": "United States",
	"xx":  "Unknown/undetermined",
}

// CountryName resolves a country code to a display name, or "" if the
// code is unmapped (spec.md §3.2).
func CountryName(code string) string {
	if code == "" {
		return ""
	}
	if name, ok := countryNames[code]; ok {
		return name
	}
	if name, ok := countryNames[strings.TrimSpace(code)]; ok {
		return name
	}
	return ""
}
