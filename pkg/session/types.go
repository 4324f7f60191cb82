// Package session is the Session Store (spec.md §4.7): persistent
// session, message, and active-subgroup storage with cascade-delete
// semantics, backed by SQLite in the same idiom as internal/store.
package session

import "github.com/raro-catalog/bibliofind/pkg/planquery"

// Phase enumerates the controller's two conversation states (spec.md §3.5/§4.8).
type Phase string

const (
	PhaseQueryDefinition  Phase = "query_definition"
	PhaseCorpusExploration Phase = "corpus_exploration"
)

// Role enumerates a message's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn's utterance, optionally carrying the plan/candidates it produced.
type Message struct {
	ID           int64              `json:"id,omitempty"`
	Role         Role               `json:"role"`
	Content      string             `json:"content"`
	QueryPlan    *planquery.QueryPlan `json:"query_plan,omitempty"`
	CandidateSet []byte             `json:"candidate_set,omitempty"` // opaque serialized execengine.CandidateSet
	Timestamp    string             `json:"timestamp"`
}

// ActiveSubgroup is the stored candidate set a corpus_exploration phase
// operates over; exactly zero or one per session (spec.md §3.5).
type ActiveSubgroup struct {
	DefiningQuery  string   `json:"defining_query"`
	FilterSummary  string   `json:"filter_summary"`
	RecordIDs      []string `json:"record_ids"`
	CandidateCount int      `json:"candidate_count"`
	CandidateSet   []byte   `json:"candidate_set,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// ChatSession is the full session state (spec.md §3.5).
type ChatSession struct {
	SessionID      string          `json:"session_id"`
	UserID         string          `json:"user_id,omitempty"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
	Phase          Phase           `json:"phase"`
	Messages       []Message       `json:"messages"`
	ActiveSubgroup *ActiveSubgroup `json:"active_subgroup,omitempty"`
	UserGoals      []string        `json:"user_goals,omitempty"`
	ExpiredAt      string          `json:"expired_at,omitempty"`
}
