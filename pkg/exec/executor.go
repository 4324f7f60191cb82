package execengine

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raro-catalog/bibliofind/internal/store"
	"github.com/raro-catalog/bibliofind/pkg/marc"
	"github.com/raro-catalog/bibliofind/pkg/normalize"
	"github.com/raro-catalog/bibliofind/pkg/planquery"
	"github.com/raro-catalog/bibliofind/pkg/sqlbuild"
)

// Execute runs built against st, loads the matching records, and
// attaches per-filter Evidence (spec.md §4.6). An empty result set is a
// valid, non-error outcome: the returned CandidateSet carries a
// human-readable Reason instead.
func Execute(ctx context.Context, st *store.Store, plan planquery.QueryPlan, built sqlbuild.Built) (CandidateSet, error) {
	ids, err := matchingRecordIDs(ctx, st, built)
	if err != nil {
		return CandidateSet{}, fmt.Errorf("execengine: store_error: %w", err)
	}

	set := CandidateSet{
		QueryText:  plan.QueryText,
		PlanHash:   planHash(plan),
		SQL:        built.SQL,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		TotalCount: len(ids),
	}

	if len(ids) == 0 {
		set.Reason = emptyReason(plan)
		return set, nil
	}

	limited := ids
	if plan.Limit != nil && *plan.Limit < len(ids) {
		limited = ids[:*plan.Limit]
	}

	for _, id := range limited {
		c, err := buildCandidate(ctx, st, id, plan.Filters)
		if err != nil {
			return CandidateSet{}, fmt.Errorf("execengine: store_error: %w", err)
		}
		set.Candidates = append(set.Candidates, c)
	}

	return set, nil
}

func matchingRecordIDs(ctx context.Context, st *store.Store, built sqlbuild.Built) ([]string, error) {
	rows, err := st.DB().QueryContext(ctx, built.SQL, built.Params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func buildCandidate(ctx context.Context, st *store.Store, recordID string, filters []planquery.Filter) (Candidate, error) {
	c := Candidate{RecordID: recordID}

	if err := st.DB().QueryRowContext(ctx,
		`SELECT value FROM titles WHERE record_id = ? AND type = 'main' LIMIT 1`, recordID,
	).Scan(&c.Title); err != nil && err != sql.ErrNoRows {
		return Candidate{}, err
	}

	c.ImprintsSummary = imprintsSummary(ctx, st, recordID)

	for _, f := range filters {
		ev, err := evidenceForFilter(ctx, st, recordID, f)
		if err != nil {
			return Candidate{}, err
		}
		c.Evidence = append(c.Evidence, ev...)
	}

	return c, nil
}

func imprintsSummary(ctx context.Context, st *store.Store, recordID string) string {
	var place, publisher, label sql.NullString
	err := st.DB().QueryRowContext(ctx,
		`SELECT place_display, publisher_display, date_label FROM imprints WHERE record_id = ? ORDER BY occurrence LIMIT 1`,
		recordID,
	).Scan(&place, &publisher, &label)
	if err != nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if place.Valid && place.String != "" {
		parts = append(parts, place.String)
	}
	if publisher.Valid && publisher.String != "" {
		parts = append(parts, publisher.String)
	}
	if label.Valid && label.String != "" {
		parts = append(parts, label.String)
	}
	return strings.Join(parts, ", ")
}

// evidenceForFilter walks the rows relevant to f's field for recordID
// and emits one Evidence entry per row that satisfies f under the same
// normalization the builder used (spec.md §4.6 step 3/4).
func evidenceForFilter(ctx context.Context, st *store.Store, recordID string, f planquery.Filter) ([]Evidence, error) {
	switch f.Field {
	case planquery.FieldPublisher:
		return keyedImprintEvidence(ctx, st, recordID, f, "publisher_norm", "publisher_raw", "publisher_confidence")
	case planquery.FieldImprintPlace:
		return keyedImprintEvidence(ctx, st, recordID, f, "place_norm", "place_raw", "place_confidence")
	case planquery.FieldCountry:
		return countryEvidence(ctx, st, recordID, f)
	case planquery.FieldYear:
		return yearEvidence(ctx, st, recordID, f)
	case planquery.FieldAgentNorm:
		return keyedAgentEvidence(ctx, st, recordID, f, "agent_norm", "value", "agent_confidence")
	case planquery.FieldAgentRole:
		return keyedAgentEvidence(ctx, st, recordID, f, "role_norm", "role_raw", "role_confidence")
	case planquery.FieldAgentType:
		return agentTypeEvidence(ctx, st, recordID, f)
	case planquery.FieldLanguage:
		return languageEvidence(ctx, st, recordID, f)
	case planquery.FieldTitle:
		if f.Op == planquery.OpContains {
			return ftsEvidence(ctx, st, recordID, f, "titles", "titles_fts")
		}
		return keyedTableEvidence(ctx, st, recordID, f, "titles", "value")
	case planquery.FieldSubject:
		if f.Op == planquery.OpContains {
			return ftsEvidence(ctx, st, recordID, f, "subjects", "subjects_fts")
		}
		return keyedTableEvidence(ctx, st, recordID, f, "subjects", "value")
	}
	return nil, nil
}

func keyedImprintEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter, normCol, rawCol, confCol string) ([]Evidence, error) {
	query := fmt.Sprintf(`SELECT occurrence, %s, %s, %s, provenance FROM imprints WHERE record_id = ?`, normCol, rawCol, confCol)
	rows, err := st.DB().QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Evidence
	for rows.Next() {
		var occurrence int
		var normVal, rawVal sql.NullString
		var conf sql.NullFloat64
		var prov string
		if err := rows.Scan(&occurrence, &normVal, &rawVal, &conf, &prov); err != nil {
			return nil, err
		}
		if !matchesKeyed(f, normVal.String) {
			continue
		}
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          normVal.String,
			Operator:       string(f.Op),
			MatchedAgainst: filterDisplayValue(f),
			Source:         firstSource(prov),
			Confidence:     nullFloatPtr(conf),
			RawValue:       rawVal.String,
		})
	}
	return out, rows.Err()
}

func keyedAgentEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter, normCol, rawCol, confCol string) ([]Evidence, error) {
	query := fmt.Sprintf(`SELECT %s, %s, %s, provenance FROM agents WHERE record_id = ?`, normCol, rawCol, confCol)
	rows, err := st.DB().QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Evidence
	for rows.Next() {
		var normVal, rawVal sql.NullString
		var conf sql.NullFloat64
		var prov string
		if err := rows.Scan(&normVal, &rawVal, &conf, &prov); err != nil {
			return nil, err
		}
		if !matchesKeyed(f, normVal.String) {
			continue
		}
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          normVal.String,
			Operator:       string(f.Op),
			MatchedAgainst: filterDisplayValue(f),
			Source:         firstSource(prov),
			Confidence:     nullFloatPtr(conf),
			RawValue:       rawVal.String,
		})
	}
	return out, rows.Err()
}

func agentTypeEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter) ([]Evidence, error) {
	rows, err := st.DB().QueryContext(ctx, `SELECT agent_type, value, provenance FROM agents WHERE record_id = ?`, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	wanted := map[string]bool{}
	if s, ok := f.AsString(); ok {
		wanted[s] = true
	}
	if vs, ok := f.AsStringSlice(); ok {
		for _, v := range vs {
			wanted[v] = true
		}
	}

	var out []Evidence
	for rows.Next() {
		var agentType, value, prov string
		if err := rows.Scan(&agentType, &value, &prov); err != nil {
			return nil, err
		}
		if !wanted[agentType] {
			continue
		}
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          agentType,
			Operator:       string(f.Op),
			MatchedAgainst: filterDisplayValue(f),
			Source:         firstSource(prov),
			RawValue:       value,
		})
	}
	return out, rows.Err()
}

func languageEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter) ([]Evidence, error) {
	rows, err := st.DB().QueryContext(ctx, `SELECT code, provenance FROM languages WHERE record_id = ?`, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	want, _ := f.AsString()
	var out []Evidence
	for rows.Next() {
		var code, prov string
		if err := rows.Scan(&code, &prov); err != nil {
			return nil, err
		}
		if code != want {
			continue
		}
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          code,
			Operator:       string(f.Op),
			MatchedAgainst: want,
			Source:         singleSource(prov),
			RawValue:       code,
		})
	}
	return out, rows.Err()
}

func countryEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter) ([]Evidence, error) {
	rows, err := st.DB().QueryContext(ctx, `SELECT country_code, country_name, provenance FROM imprints WHERE record_id = ?`, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	want, _ := f.AsString()
	cleaned := normalize.BaseClean(want)
	var out []Evidence
	for rows.Next() {
		var code, name sql.NullString
		var prov string
		if err := rows.Scan(&code, &name, &prov); err != nil {
			return nil, err
		}
		if code.String != cleaned && name.String != cleaned {
			continue
		}
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          name.String,
			Operator:       string(f.Op),
			MatchedAgainst: want,
			Source:         firstSource(prov),
			RawValue:       code.String,
		})
	}
	return out, rows.Err()
}

func yearEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter) ([]Evidence, error) {
	rows, err := st.DB().QueryContext(ctx, `SELECT date_start, date_end, date_label, date_confidence, date_raw, provenance FROM imprints WHERE record_id = ?`, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Evidence
	for rows.Next() {
		var start, end sql.NullInt64
		var label, raw, prov string
		var conf float64
		if err := rows.Scan(&start, &end, &label, &conf, &raw, &prov); err != nil {
			return nil, err
		}
		if !start.Valid || !end.Valid || !yearMatches(f, int(start.Int64), int(end.Int64)) {
			continue
		}
		c := conf
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          label,
			Operator:       string(f.Op),
			MatchedAgainst: filterDisplayValue(f),
			Source:         firstSource(prov),
			Confidence:     &c,
			RawValue:       raw,
		})
	}
	return out, rows.Err()
}

func keyedTableEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter, table, col string) ([]Evidence, error) {
	query := fmt.Sprintf(`SELECT %s, provenance FROM %s WHERE record_id = ?`, col, table)
	rows, err := st.DB().QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	want, _ := f.AsString()
	cleaned := normalize.BaseClean(want)
	var out []Evidence
	for rows.Next() {
		var value, prov string
		if err := rows.Scan(&value, &prov); err != nil {
			return nil, err
		}
		if normalize.BaseClean(value) != cleaned {
			continue
		}
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          value,
			Operator:       string(f.Op),
			MatchedAgainst: want,
			Source:         firstSource(prov),
			RawValue:       value,
		})
	}
	return out, rows.Err()
}

// ftsEvidence handles the CONTAINS/full-text case: evidence carries the
// matched token list and the source row id; confidence is omitted
// (spec.md §4.6 step 4).
func ftsEvidence(ctx context.Context, st *store.Store, recordID string, f planquery.Filter, table, ftsTable string) ([]Evidence, error) {
	want, _ := f.AsString()
	terms := strings.Fields(normalize.BaseClean(want))
	matchQuery := strings.Join(terms, " ")

	query := fmt.Sprintf(
		`SELECT base.id, base.value, base.provenance FROM %s ft JOIN %s base ON base.id = ft.rowid WHERE base.record_id = ? AND ft MATCH ?`,
		ftsTable, table,
	)
	rows, err := st.DB().QueryContext(ctx, query, recordID, matchQuery)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Evidence
	for rows.Next() {
		var rowID int64
		var value, prov string
		if err := rows.Scan(&rowID, &value, &prov); err != nil {
			return nil, err
		}
		out = append(out, Evidence{
			FilterField:    string(f.Field),
			Value:          value,
			Operator:       string(f.Op),
			MatchedAgainst: fmt.Sprintf("row:%d", rowID),
			Source:         firstSource(prov),
			RawValue:       value,
			MatchedTokens:  terms,
		})
	}
	return out, rows.Err()
}

func matchesKeyed(f planquery.Filter, normVal string) bool {
	switch f.Op {
	case planquery.OpEquals:
		s, _ := f.AsString()
		return normVal == normalize.BaseClean(s)
	case planquery.OpIn:
		values, _ := f.AsStringSlice()
		for _, v := range values {
			if normVal == normalize.BaseClean(v) {
				return true
			}
		}
		return false
	case planquery.OpContains:
		s, _ := f.AsString()
		return strings.Contains(normVal, normalize.BaseClean(s))
	}
	return false
}

func yearMatches(f planquery.Filter, start, end int) bool {
	switch f.Op {
	case planquery.OpRange, planquery.OpOverlaps:
		rv, ok := f.AsRange()
		return ok && start <= rv.End && end >= rv.Start
	case planquery.OpGTE:
		n, ok := f.AsInt()
		return ok && end >= n
	case planquery.OpLTE:
		n, ok := f.AsInt()
		return ok && start <= n
	case planquery.OpEquals:
		n, ok := f.AsInt()
		return ok && start <= n && end >= n
	}
	return false
}

func filterDisplayValue(f planquery.Filter) string {
	if s, ok := f.AsString(); ok {
		return s
	}
	if values, ok := f.AsStringSlice(); ok {
		return strings.Join(values, ", ")
	}
	if n, ok := f.AsInt(); ok {
		return fmt.Sprintf("%d", n)
	}
	if rv, ok := f.AsRange(); ok {
		return fmt.Sprintf("%d-%d", rv.Start, rv.End)
	}
	return ""
}

func firstSource(provenanceJSON string) marc.Source {
	var sources []marc.Source
	if err := json.Unmarshal([]byte(provenanceJSON), &sources); err != nil || len(sources) == 0 {
		return marc.Source{}
	}
	return sources[0]
}

func singleSource(provenanceJSON string) marc.Source {
	var s marc.Source
	_ = json.Unmarshal([]byte(provenanceJSON), &s)
	return s
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func emptyReason(plan planquery.QueryPlan) string {
	if plan.Empty() {
		return "the query produced no filters to search by"
	}
	parts := make([]string, 0, len(plan.Filters))
	for _, f := range plan.Filters {
		parts = append(parts, fmt.Sprintf("%s %s %s", f.Field, f.Op, filterDisplayValue(f)))
	}
	return "no records matched: " + strings.Join(parts, "; ")
}

func planHash(plan planquery.QueryPlan) string {
	b, _ := json.Marshal(plan)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
