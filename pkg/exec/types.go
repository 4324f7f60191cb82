// Package execengine is the Executor + Evidence Engine (spec.md §4.6):
// it runs the SQL Builder's output against internal/store, loads the
// matching records, and attaches per-filter Evidence to materialize a
// CandidateSet.
package execengine

import "github.com/raro-catalog/bibliofind/pkg/marc"

// Evidence is one matched-field justification for a candidate (spec.md §3.4).
type Evidence struct {
	FilterField    string       `json:"filter_field"`
	Value          string       `json:"value"`
	Operator       string       `json:"operator"`
	MatchedAgainst string       `json:"matched_against"`
	Source         marc.Source  `json:"source"`
	Confidence     *float64     `json:"confidence,omitempty"`
	RawValue       string       `json:"raw_value"`
	MatchedTokens  []string     `json:"matched_tokens,omitempty"`
}

// Candidate is one matching record with its rendering summary and evidence.
type Candidate struct {
	RecordID        string     `json:"record_id"`
	Title           string     `json:"title"`
	ImprintsSummary string     `json:"imprints_summary"`
	Evidence        []Evidence `json:"evidence"`
}

// CandidateSet is the Executor's materialized result (spec.md §3.4).
type CandidateSet struct {
	QueryText  string      `json:"query_text"`
	PlanHash   string      `json:"plan_hash"`
	SQL        string      `json:"sql"`
	Timestamp  string      `json:"timestamp"`
	TotalCount int         `json:"total_count"`
	Candidates []Candidate `json:"candidates"`
	// Reason explains a zero-candidate result in human-readable terms
	// (spec.md §4.6: "empty result set is a valid outcome").
	Reason string `json:"reason,omitempty"`
}
