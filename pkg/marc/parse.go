package marc

import (
	"strings"
)

// recordIDTag is the MARC21 control number field.
const recordIDTag = "001"

// Parse converts one raw ISO 2709 record into a CanonicalRecord. It fails
// only when the record id cannot be extracted (spec.md §4.1); every other
// missing or malformed field degrades to an empty value plus a Warning.
func Parse(raw *RawRecord) (*CanonicalRecord, error) {
	recordID := strings.TrimSpace(raw.ControlField(recordIDTag))
	if recordID == "" {
		return nil, &ParseError{Kind: ErrMissingRecordID, Location: recordIDTag}
	}

	rec := &CanonicalRecord{RecordID: recordID}
	rec.Titles = extractTitles(raw, rec)
	rec.Imprints = extractImprints(raw)
	rec.Agents = extractAgents(raw)
	rec.Subjects = extractSubjects(raw)
	rec.Languages = extractLanguages(raw)
	rec.Notes = extractTagged(raw, "500", "Note")
	rec.Physical = extractTagged(raw, "300", "Physical description")

	return rec, nil
}

func warn(rec *CanonicalRecord, stage, msg string) {
	rec.Warnings = append(rec.Warnings, Warning{Stage: stage, Message: msg})
}

// extractTitles builds the main/uniform/variant title sequence.
// Main title: first 245 occurrence, concatenate ordered $a $b $n $p with a
// single space, trim trailing punctuation.
func extractTitles(raw *RawRecord, rec *CanonicalRecord) []Title {
	var titles []Title

	mainFields := raw.AllFields("245")
	if len(mainFields) > 1 {
		warn(rec, "parse", "multiple 245 fields present; using first occurrence for main title")
	}
	if len(mainFields) > 0 {
		f := mainFields[0]
		titles = append(titles, Title{
			Type:    TitleMain,
			Value:   trimTrailingPunct(joinSubfields(f, "abnp")),
			Sources: []Source{{Tag: "245", Occurrence: f.Occurrence}},
		})
	}

	for _, f := range raw.AllFields("130") {
		titles = append(titles, Title{
			Type:    TitleUniform,
			Value:   trimTrailingPunct(joinSubfields(f, "adfklmnoprs")),
			Sources: []Source{{Tag: "130", Occurrence: f.Occurrence}},
		})
	}
	for _, f := range raw.AllFields("246") {
		titles = append(titles, Title{
			Type:    TitleVariant,
			Value:   trimTrailingPunct(joinSubfields(f, "abnp")),
			Sources: []Source{{Tag: "246", Occurrence: f.Occurrence}},
		})
	}

	return titles
}

// joinSubfields concatenates the subfields in codes (in that priority
// order, but respecting their order of appearance in the field) with a
// single space separator.
func joinSubfields(f RawField, codes string) string {
	wanted := map[byte]bool{}
	for i := 0; i < len(codes); i++ {
		wanted[codes[i]] = true
	}
	var parts []string
	for _, sf := range f.Subfields {
		if wanted[sf.Code] {
			v := strings.TrimSpace(sf.Value)
			if v != "" {
				parts = append(parts, v)
			}
		}
	}
	return strings.Join(parts, " ")
}

func trimTrailingPunct(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".,;:/ ")
}

// extractImprints aggregates 260/264, one Imprint per occurrence in
// document order. A 264 with indicator2='1' is the preferred publication
// statement but all occurrences are retained (spec.md §4.1).
func extractImprints(raw *RawRecord) []Imprint {
	var imprints []Imprint
	occ := 0
	for _, tag := range []string{"260", "264"} {
		for _, f := range raw.AllFields(tag) {
			manufacturer := f.First('e')
			if manufacturer == "" {
				manufacturer = f.First('f')
			}
			imp := Imprint{
				Occurrence:      occ,
				DateRaw:         strings.TrimSpace(f.First('c')),
				PlaceRaw:        strings.TrimSpace(f.First('a')),
				PublisherRaw:    strings.TrimSpace(f.First('b')),
				ManufacturerRaw: strings.TrimSpace(manufacturer),
				CountryCode:     countryCodeFrom008(raw),
				SourceTags:      []Source{{Tag: tag, Occurrence: f.Occurrence}},
			}
			occ++
			imprints = append(imprints, imp)
		}
	}
	return imprints
}

// countryCodeFrom008 reads fixed positions 15-17 of control field 008.
func countryCodeFrom008(raw *RawRecord) string {
	v008 := raw.ControlField("008")
	if len(v008) < 18 {
		return ""
	}
	return strings.TrimSpace(v008[15:18])
}

var agentTagKind = map[string]AgentType{
	"100": AgentPersonal, "700": AgentPersonal,
	"110": AgentCorporate, "710": AgentCorporate,
	"111": AgentMeeting, "711": AgentMeeting,
}

var agentNameCodes = map[AgentType]string{
	AgentPersonal:  "abcdq",
	AgentCorporate: "ab",
	AgentMeeting:   "acdn",
}

// inferredRole maps a main-entry tag to the role implied by its presence
// alone, used only when neither $4 nor $e supplies one.
var inferredRole = map[string]string{
	"100": "author",
	"110": "creator",
	"111": "creator",
}

func extractAgents(raw *RawRecord) []Agent {
	var agents []Agent
	idx := 0
	for _, tag := range []string{"100", "700", "110", "710", "111", "711"} {
		kind := agentTagKind[tag]
		for _, f := range raw.AllFields(tag) {
			value := trimTrailingPunct(joinSubfields(f, agentNameCodes[kind]))
			if value == "" {
				continue
			}

			roleRaw, roleSource := "", RoleSourceUnknown
			if code := f.First('4'); code != "" {
				roleRaw, roleSource = code, RoleSourceRelatorCode
			} else if term := f.First('e'); term != "" {
				roleRaw, roleSource = term, RoleSourceRelatorTerm
			} else if inferred, ok := inferredRole[tag]; ok {
				roleRaw, roleSource = inferred, RoleSourceInferredTag
			}

			uris := f.All('0')
			authorityURI := ""
			if len(uris) > 0 {
				authorityURI = uris[0]
			}

			agents = append(agents, Agent{
				AgentIndex:   idx,
				AgentType:    kind,
				Value:        value,
				RoleRaw:      roleRaw,
				RoleSource:   roleSource,
				AuthorityURI: authorityURI,
				Sources:      []Source{{Tag: tag, Occurrence: f.Occurrence}},
			})
			idx++
		}
	}
	return agents
}

func extractSubjects(raw *RawRecord) []Subject {
	var subjects []Subject
	for tagNum := 600; tagNum <= 699; tagNum++ {
		tag := padTag(tagNum)
		for _, f := range raw.AllFields(tag) {
			parts := SubjectParts{
				A: f.All('a'), V: f.All('v'), X: f.All('x'), Y: f.All('y'), Z: f.All('z'),
			}
			value := trimTrailingPunct(joinSubfields(f, "avxyz"))
			if value == "" {
				continue
			}
			subjects = append(subjects, Subject{
				Value:        value,
				SourceTag:    tag,
				Scheme:       f.First('2'),
				HeadingLang:  f.First('9'),
				AuthorityURI: f.First('0'),
				Parts:        parts,
				Sources:      []Source{{Tag: tag, Occurrence: f.Occurrence}},
			})
		}
	}
	return subjects
}

func padTag(n int) string {
	s := "000"
	digits := []byte{byte('0' + n/100), byte('0' + (n/10)%10), byte('0' + n%10)}
	return s[:3-len(digits)] + string(digits)
}

func extractLanguages(raw *RawRecord) []Language {
	seen := map[string]bool{}
	var out []Language

	for _, f := range raw.AllFields("041") {
		for _, code := range f.All('a') {
			code = strings.TrimSpace(code)
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			out = append(out, Language{Code: code, Source: Source{Tag: "041", Occurrence: f.Occurrence, Subfield: "a"}})
		}
	}

	v008 := raw.ControlField("008")
	if len(v008) >= 38 {
		code := strings.TrimSpace(v008[35:38])
		if code != "" && !seen[code] {
			out = append(out, Language{Code: code, Source: Source{Tag: "008"}})
		}
	}

	return out
}

func extractTagged(raw *RawRecord, tag, label string) []TaggedText {
	var out []TaggedText
	_ = label
	for _, f := range raw.AllFields(tag) {
		value := trimTrailingPunct(joinSubfields(f, "abcdefghijklmnopqrstuvwxyz"))
		if value == "" {
			continue
		}
		out = append(out, TaggedText{
			Tag: tag, Value: value,
			Source: Source{Tag: tag, Occurrence: f.Occurrence},
		})
	}
	return out
}
