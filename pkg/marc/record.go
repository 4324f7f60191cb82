// Package marc parses MARC21 bibliographic records into the canonical
// record shape defined by spec.md §3.1: typed fields with raw values and
// per-field provenance, never failing except when the record id is
// unrecoverable.
package marc

// Source fully identifies the field a value was extracted from.
type Source struct {
	Tag        string `json:"tag"`
	Occurrence int    `json:"occurrence"`
	Subfield   string `json:"subfield,omitempty"`
}

// TitleType enumerates the kinds of title a record may carry.
type TitleType string

const (
	TitleMain    TitleType = "main"
	TitleUniform TitleType = "uniform"
	TitleVariant TitleType = "variant"
)

// Title is one title entry (spec.md §3.1).
type Title struct {
	Type    TitleType `json:"type"`
	Value   string    `json:"value"`
	Sources []Source  `json:"sources"`
}

// Imprint is one 260/264 occurrence (spec.md §3.1).
type Imprint struct {
	Occurrence      int      `json:"occurrence"`
	DateRaw         string   `json:"date_raw"`
	PlaceRaw        string   `json:"place_raw"`
	PublisherRaw    string   `json:"publisher_raw"`
	ManufacturerRaw string   `json:"manufacturer_raw"`
	CountryCode     string   `json:"country_code"`
	SourceTags      []Source `json:"source_tags"`

	// Normalization attachments (spec.md §3.2); nil until the Normalizer runs.
	Norm *ImprintNorm `json:"norm,omitempty"`
}

// ImprintNorm holds the Normalizer's attachments for one Imprint.
type ImprintNorm struct {
	DateStart        *int    `json:"date_start"`
	DateEnd          *int    `json:"date_end"`
	DateLabel        string  `json:"date_label"`
	DateConfidence   float64 `json:"date_confidence"`
	DateMethod       string  `json:"date_method"`
	PlaceNorm        string  `json:"place_norm"`
	PlaceDisplay     string  `json:"place_display"`
	PlaceConfidence  float64 `json:"place_confidence"`
	PlaceMethod      string  `json:"place_method"`
	PublisherNorm    string  `json:"publisher_norm"`
	PublisherDisplay string  `json:"publisher_display"`
	PubConfidence    float64 `json:"publisher_confidence"`
	PubMethod        string  `json:"publisher_method"`
	CountryName      string  `json:"country_name,omitempty"`
}

// AgentType enumerates the kinds of bibliographic agent.
type AgentType string

const (
	AgentPersonal  AgentType = "personal"
	AgentCorporate AgentType = "corporate"
	AgentMeeting   AgentType = "meeting"
)

// RoleSource records how an agent's role was determined at parse time.
type RoleSource string

const (
	RoleSourceRelatorCode RoleSource = "relator_code"
	RoleSourceRelatorTerm RoleSource = "relator_term"
	RoleSourceInferredTag RoleSource = "inferred_from_tag"
	RoleSourceUnknown     RoleSource = "unknown"
)

// Agent is one 1xx/7xx entry (spec.md §3.1).
type Agent struct {
	AgentIndex    int        `json:"agent_index"`
	AgentType     AgentType  `json:"agent_type"`
	Value         string     `json:"value"`
	RoleRaw       string     `json:"role_raw,omitempty"`
	RoleSource    RoleSource `json:"role_source"`
	AuthorityURI  string     `json:"authority_uri,omitempty"`
	Sources       []Source   `json:"sources"`

	// Normalization attachments (spec.md §3.2); nil until the Normalizer runs.
	Norm *AgentNorm `json:"norm,omitempty"`
}

// AgentNorm holds the Normalizer's attachments for one Agent.
type AgentNorm struct {
	AgentNorm      string  `json:"agent_norm"`
	AgentConf      float64 `json:"agent_confidence"`
	AgentMethod    string  `json:"agent_method"`
	AgentNotes     string  `json:"agent_notes,omitempty"`
	RoleNorm       string  `json:"role_norm"`
	RoleConf       float64 `json:"role_confidence"`
	RoleMethod     string  `json:"role_method"`
}

// SubjectParts is the structured decomposition of a 6xx subject heading.
type SubjectParts struct {
	A []string `json:"a,omitempty"`
	V []string `json:"v,omitempty"`
	X []string `json:"x,omitempty"`
	Y []string `json:"y,omitempty"`
	Z []string `json:"z,omitempty"`
}

// Subject is one 6xx entry (spec.md §3.1).
type Subject struct {
	Value        string       `json:"value"`
	SourceTag    string       `json:"source_tag"`
	Scheme       string       `json:"scheme,omitempty"`
	HeadingLang  string       `json:"heading_lang,omitempty"`
	AuthorityURI string       `json:"authority_uri,omitempty"`
	Parts        SubjectParts `json:"parts"`
	Sources      []Source     `json:"sources"`
}

// Language is one recognized language code with its source.
type Language struct {
	Code   string `json:"code"`
	Source Source `json:"source"`
}

// TaggedText is a note or physical description with its source.
type TaggedText struct {
	Tag    string `json:"tag"`
	Value  string `json:"value"`
	Source Source `json:"source"`
}

// Warning is a non-fatal tie-break or ambiguity noted during parsing or
// normalization, attached to the record's debug channel (spec.md §4.1/§7).
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// CanonicalRecord is the parser's output: raw values plus provenance,
// spec.md §3.1.
type CanonicalRecord struct {
	RecordID    string        `json:"record_id"`
	Titles      []Title       `json:"titles"`
	Imprints    []Imprint     `json:"imprints"`
	Agents      []Agent       `json:"agents"`
	Subjects    []Subject     `json:"subjects"`
	Languages   []Language    `json:"languages"`
	Notes       []TaggedText  `json:"notes"`
	Physical    []TaggedText  `json:"physical_descriptions"`
	Warnings    []Warning     `json:"warnings,omitempty"`
}

// MainTitle returns the record's single main title, if present.
func (r *CanonicalRecord) MainTitle() (Title, bool) {
	for _, t := range r.Titles {
		if t.Type == TitleMain {
			return t, true
		}
	}
	return Title{}, false
}
