package normalize

import (
	"regexp"
	"strconv"
)

// DateResult is the Normalizer's date attachment (spec.md §3.2/§4.2).
type DateResult struct {
	Start      *int
	End        *int
	Label      string
	Confidence float64
	Method     string
}

var (
	reFourDigit  = regexp.MustCompile(`^\d{4}$`)
	reRange      = regexp.MustCompile(`^(\d{4})\s*-\s*(\d{4})$`)
	reDecade     = regexp.MustCompile(`^(\d{3})[uUxX-]$`)
	reCentury    = regexp.MustCompile(`^(\d{2})[uUxX-]{2}$`)
	reBracketed  = regexp.MustCompile(`^\[?\s*(ca\.?\s*)?(\d{4})\s*\??\]?$`)
)

// NormalizeDate implements spec.md §4.2's date-normalization rules,
// preferring the most specific (narrowest-span) form when more than one
// pattern would match.
func NormalizeDate(raw string) DateResult {
	s := trimBrackets(raw)

	if reFourDigit.MatchString(s) {
		y, _ := strconv.Atoi(s)
		return exact(y)
	}

	if m := reRange.FindStringSubmatch(s); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, _ := strconv.Atoi(m[2])
		if start > end {
			start, end = end, start
		}
		return DateResult{Start: &start, End: &end, Label: s, Confidence: 0.95, Method: "range"}
	}

	if m := reBracketed.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[2])
		return DateResult{Start: &y, End: &y, Label: raw, Confidence: 0.80, Method: "uncertain"}
	}

	if m := reDecade.FindStringSubmatch(s); m != nil {
		decade, _ := strconv.Atoi(m[1])
		start := decade * 10
		end := start + 9
		return DateResult{Start: &start, End: &end, Label: s, Confidence: 0.85, Method: "decade"}
	}

	if m := reCentury.FindStringSubmatch(s); m != nil {
		century, _ := strconv.Atoi(m[1])
		start := century * 100
		end := start + 99
		return DateResult{Start: &start, End: &end, Label: s, Confidence: 0.85, Method: "century"}
	}

	if span := parseControl008DateSpan(s); span != nil {
		return *span
	}

	return DateResult{Label: raw, Confidence: 0.0, Method: "unparsed"}
}

func exact(y int) DateResult {
	return DateResult{Start: &y, End: &y, Label: strconv.Itoa(y), Confidence: 0.99, Method: "exact"}
}

func trimBrackets(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '[' || c == ']' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// parseControl008DateSpan recognizes a MARC control-field 008 date span
// already isolated to its two four-character date subfields, e.g.
// "19051920" (date1=1905, date2=1920) passed in as a bare digit string.
func parseControl008DateSpan(s string) *DateResult {
	if len(s) != 8 {
		return nil
	}
	for i := 0; i < 8; i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil
		}
	}
	start, err1 := strconv.Atoi(s[0:4])
	end, err2 := strconv.Atoi(s[4:8])
	if err1 != nil || err2 != nil {
		return nil
	}
	if end == 0 || end == 9999 {
		return &DateResult{Start: &start, End: &start, Label: s, Confidence: 0.95, Method: "control_008"}
	}
	if start > end {
		start, end = end, start
	}
	return &DateResult{Start: &start, End: &end, Label: s, Confidence: 0.95, Method: "control_008"}
}
