// Package sqlbuild is the SQL Builder (spec.md §4.5): a pure function
// from a planquery.QueryPlan to parameterized SQL text over the schema
// defined in internal/store. The same plan always yields byte-identical
// SQL and parameter vector (ordering mirrors filter list order), so the
// builder holds no state and does no I/O.
package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/raro-catalog/bibliofind/pkg/normalize"
	"github.com/raro-catalog/bibliofind/pkg/planquery"
)

// Built is the compiled SQL and its bound parameters, in filter order.
type Built struct {
	SQL    string
	Params []interface{}
	// Debug carries notes the planner/builder wants surfaced (e.g. soft
	// filters were ignored) without affecting the query itself.
	Debug map[string]interface{}
}

// joinKind enumerates the conditional joins a filter field may require.
type joinKind int

const (
	joinNone joinKind = iota
	joinAgents
	joinImprints
	joinSubjects
	joinSubjectsFTS
	joinTitlesFTS
	joinLanguages
)

func joinFor(f planquery.Filter) joinKind {
	switch f.Field {
	case planquery.FieldAgentNorm, planquery.FieldAgentRole, planquery.FieldAgentType:
		return joinAgents
	case planquery.FieldImprintPlace, planquery.FieldPublisher, planquery.FieldYear, planquery.FieldCountry:
		return joinImprints
	case planquery.FieldSubject:
		if f.Op == planquery.OpContains {
			return joinSubjectsFTS
		}
		return joinSubjects
	case planquery.FieldTitle:
		if f.Op == planquery.OpContains {
			return joinTitlesFTS
		}
		return joinNone // titles table is joined unconditionally below
	case planquery.FieldLanguage:
		return joinLanguages
	}
	return joinNone
}

// Build compiles plan into a SELECT DISTINCT record_id query plus its
// bound parameters (spec.md §4.5).
func Build(plan planquery.QueryPlan) (Built, error) {
	needed := map[joinKind]bool{}
	needTitles := false
	for _, f := range plan.Filters {
		if f.Field == planquery.FieldTitle {
			needTitles = true
		}
		if k := joinFor(f); k != joinNone {
			needed[k] = true
		}
	}

	var b strings.Builder
	b.WriteString("SELECT DISTINCT r.record_id FROM records r")
	if needTitles || needed[joinTitlesFTS] {
		b.WriteString(" JOIN titles t ON t.record_id = r.record_id")
	}
	if needed[joinTitlesFTS] {
		b.WriteString(" JOIN titles_fts tf ON tf.rowid = t.id")
	}
	if needed[joinImprints] {
		b.WriteString(" JOIN imprints i ON i.record_id = r.record_id")
	}
	if needed[joinAgents] {
		b.WriteString(" JOIN agents a ON a.record_id = r.record_id")
	}
	if needed[joinSubjects] {
		b.WriteString(" JOIN subjects s ON s.record_id = r.record_id")
	}
	if needed[joinSubjectsFTS] {
		b.WriteString(" JOIN subjects s ON s.record_id = r.record_id")
		b.WriteString(" JOIN subjects_fts sf ON sf.rowid = s.id")
	}
	if needed[joinLanguages] {
		b.WriteString(" JOIN languages l ON l.record_id = r.record_id")
	}

	var params []interface{}
	var clauses []string
	for _, f := range plan.Filters {
		clause, args, err := whereClause(f)
		if err != nil {
			return Built{}, err
		}
		clauses = append(clauses, clause)
		params = append(params, args...)
	}

	if len(clauses) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}
	b.WriteString(" ORDER BY r.record_id")

	debug := map[string]interface{}{}
	if len(plan.SoftFilters) > 0 {
		// Soft filters generate no WHERE clause (spec.md §4.5): carried
		// through for future score-based re-ranking, ignored here.
		debug["soft_filters_ignored"] = len(plan.SoftFilters)
	}

	return Built{SQL: b.String(), Params: params, Debug: debug}, nil
}

func whereClause(f planquery.Filter) (string, []interface{}, error) {
	switch f.Field {
	case planquery.FieldTitle:
		return titleClause(f)
	case planquery.FieldSubject:
		return subjectClause(f)
	case planquery.FieldPublisher:
		return keyedClause("i.publisher_norm", f)
	case planquery.FieldImprintPlace:
		return keyedClause("i.place_norm", f)
	case planquery.FieldAgentNorm:
		return keyedClause("a.agent_norm", f)
	case planquery.FieldAgentRole:
		return keyedClause("a.role_norm", f)
	case planquery.FieldAgentType:
		return agentTypeClause(f)
	case planquery.FieldLanguage:
		s, ok := f.AsString()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: LANGUAGE requires a string value")
		}
		return "l.code = ?", []interface{}{normalize.BaseClean(s)}, nil
	case planquery.FieldCountry:
		s, ok := f.AsString()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: COUNTRY requires a string value")
		}
		cleaned := normalize.BaseClean(s)
		return "(i.country_code = ? OR i.country_name = ?)", []interface{}{cleaned, cleaned}, nil
	case planquery.FieldYear:
		return yearClause(f)
	}
	return "", nil, fmt.Errorf("sqlbuild: unsupported field %q", f.Field)
}

// titleClause implements §4.5's TITLE rule: EQUALS compares the stored
// value_norm column, populated at insert time with the same
// normalize.BaseClean pass the Evidence Engine applies, so the two
// components agree on what counts as a match; CONTAINS routes to the
// FTS shadow with an unquoted term list (see ftsPhrase).
func titleClause(f planquery.Filter) (string, []interface{}, error) {
	s, ok := f.AsString()
	if !ok {
		return "", nil, fmt.Errorf("sqlbuild: TITLE requires a string value")
	}
	switch f.Op {
	case planquery.OpEquals:
		return "t.value_norm = ?", []interface{}{normalize.BaseClean(s)}, nil
	case planquery.OpContains:
		return "tf MATCH ?", []interface{}{ftsPhrase(s)}, nil
	}
	return "", nil, fmt.Errorf("sqlbuild: TITLE does not support op %s", f.Op)
}

// subjectClause mirrors titleClause for the subjects/subjects_fts pair.
func subjectClause(f planquery.Filter) (string, []interface{}, error) {
	s, ok := f.AsString()
	if !ok {
		return "", nil, fmt.Errorf("sqlbuild: SUBJECT requires a string value")
	}
	switch f.Op {
	case planquery.OpEquals:
		return "s.value_norm = ?", []interface{}{normalize.BaseClean(s)}, nil
	case planquery.OpContains:
		return "sf MATCH ?", []interface{}{ftsPhrase(s)}, nil
	}
	return "", nil, fmt.Errorf("sqlbuild: SUBJECT does not support op %s", f.Op)
}

// ftsPhrase implements the EQUALS-vs-CONTAINS FTS quoting distinction
// (spec.md §9 Open Question, resolved in DESIGN.md): CONTAINS binds an
// unquoted, space-joined term list, producing an AND-of-terms match
// rather than a literal phrase match.
func ftsPhrase(raw string) string {
	cleaned := normalize.BaseClean(raw)
	terms := strings.Fields(cleaned)
	return strings.Join(terms, " ")
}

func keyedClause(column string, f planquery.Filter) (string, []interface{}, error) {
	switch f.Op {
	case planquery.OpEquals:
		s, ok := f.AsString()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: %s EQUALS requires a string value", f.Field)
		}
		return column + " = ?", []interface{}{normalize.BaseClean(s)}, nil
	case planquery.OpIn:
		values, ok := f.AsStringSlice()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: %s IN requires a string-list value", f.Field)
		}
		placeholders := make([]string, len(values))
		args := make([]interface{}, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args[i] = normalize.BaseClean(v)
		}
		return column + " IN (" + strings.Join(placeholders, ", ") + ")", args, nil
	case planquery.OpContains:
		s, ok := f.AsString()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: %s CONTAINS requires a string value", f.Field)
		}
		return column + " LIKE ?", []interface{}{"%" + normalize.BaseClean(s) + "%"}, nil
	}
	return "", nil, fmt.Errorf("sqlbuild: %s does not support op %s", f.Field, f.Op)
}

func agentTypeClause(f planquery.Filter) (string, []interface{}, error) {
	switch f.Op {
	case planquery.OpEquals:
		s, ok := f.AsString()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: AGENT_TYPE EQUALS requires a string value")
		}
		return "a.agent_type = ?", []interface{}{s}, nil
	case planquery.OpIn:
		values, ok := f.AsStringSlice()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: AGENT_TYPE IN requires a string-list value")
		}
		placeholders := make([]string, len(values))
		args := make([]interface{}, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args[i] = v
		}
		return "a.agent_type IN (" + strings.Join(placeholders, ", ") + ")", args, nil
	}
	return "", nil, fmt.Errorf("sqlbuild: AGENT_TYPE does not support op %s", f.Op)
}

// yearClause implements §4.5's RANGE/GTE/LTE rules over (date_start, date_end).
func yearClause(f planquery.Filter) (string, []interface{}, error) {
	switch f.Op {
	case planquery.OpRange, planquery.OpOverlaps:
		rv, ok := f.AsRange()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: YEAR %s requires {start,end}", f.Op)
		}
		return "(i.date_start <= ? AND i.date_end >= ?)", []interface{}{rv.End, rv.Start}, nil
	case planquery.OpGTE:
		n, ok := f.AsInt()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: YEAR GTE requires an integer")
		}
		return "i.date_end >= ?", []interface{}{n}, nil
	case planquery.OpLTE:
		n, ok := f.AsInt()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: YEAR LTE requires an integer")
		}
		return "i.date_start <= ?", []interface{}{n}, nil
	case planquery.OpEquals:
		n, ok := f.AsInt()
		if !ok {
			return "", nil, fmt.Errorf("sqlbuild: YEAR EQUALS requires an integer")
		}
		return "(i.date_start <= ? AND i.date_end >= ?)", []interface{}{n, n}, nil
	}
	return "", nil, fmt.Errorf("sqlbuild: YEAR does not support op %s", f.Op)
}
