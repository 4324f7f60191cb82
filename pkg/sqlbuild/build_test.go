package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raro-catalog/bibliofind/pkg/planquery"
)

func TestBuild_SamePlanYieldsByteIdenticalSQL(t *testing.T) {
	plan := planquery.QueryPlan{Filters: []planquery.Filter{
		{Field: planquery.FieldPublisher, Op: planquery.OpEquals, Value: "Aldus Manutius"},
		{Field: planquery.FieldYear, Op: planquery.OpRange, Value: planquery.RangeValue{Start: 1500, End: 1550}},
	}}

	b1, err := Build(plan)
	require.NoError(t, err)
	b2, err := Build(plan)
	require.NoError(t, err)

	assert.Equal(t, b1.SQL, b2.SQL)
	assert.Equal(t, b1.Params, b2.Params)
}

func TestBuild_TitleEqualsVsContainsQuoting(t *testing.T) {
	equalsPlan := planquery.QueryPlan{Filters: []planquery.Filter{
		{Field: planquery.FieldTitle, Op: planquery.OpEquals, Value: "De Revolutionibus Orbium Coelestium"},
	}}
	built, err := Build(equalsPlan)
	require.NoError(t, err)
	assert.Contains(t, built.SQL, "t.value_norm = ?")
	assert.NotContains(t, built.SQL, "titles_fts")
	require.Len(t, built.Params, 1)
	assert.Equal(t, "de revolutionibus orbium coelestium", built.Params[0])

	containsPlan := planquery.QueryPlan{Filters: []planquery.Filter{
		{Field: planquery.FieldTitle, Op: planquery.OpContains, Value: "Revolutionibus Orbium"},
	}}
	built2, err := Build(containsPlan)
	require.NoError(t, err)
	assert.Contains(t, built2.SQL, "tf MATCH ?")
	assert.Contains(t, built2.SQL, "JOIN titles_fts")
	require.Len(t, built2.Params, 1)
	assert.Equal(t, "revolutionibus orbium", built2.Params[0])
}

func TestBuild_AgentFilterJoinsAgentsTable(t *testing.T) {
	plan := planquery.QueryPlan{Filters: []planquery.Filter{
		{Field: planquery.FieldAgentRole, Op: planquery.OpEquals, Value: "author"},
	}}
	built, err := Build(plan)
	require.NoError(t, err)
	assert.Contains(t, built.SQL, "JOIN agents a ON a.record_id = r.record_id")
	assert.Contains(t, built.SQL, "a.role_norm = ?")
}

func TestBuild_YearRangeIsOverlapPredicate(t *testing.T) {
	plan := planquery.QueryPlan{Filters: []planquery.Filter{
		{Field: planquery.FieldYear, Op: planquery.OpRange, Value: planquery.RangeValue{Start: 1500, End: 1550}},
	}}
	built, err := Build(plan)
	require.NoError(t, err)
	assert.Contains(t, built.SQL, "i.date_start <= ? AND i.date_end >= ?")
	assert.Equal(t, []interface{}{1550, 1500}, built.Params)
}

func TestBuild_CountryMatchesCodeOrName(t *testing.T) {
	plan := planquery.QueryPlan{Filters: []planquery.Filter{
		{Field: planquery.FieldCountry, Op: planquery.OpEquals, Value: "Germany"},
	}}
	built, err := Build(plan)
	require.NoError(t, err)
	assert.Contains(t, built.SQL, "i.country_code = ? OR i.country_name = ?")
}

func TestBuild_SoftFiltersProduceNoWhereClauseButAreNoted(t *testing.T) {
	plan := planquery.QueryPlan{
		Filters:     []planquery.Filter{{Field: planquery.FieldLanguage, Op: planquery.OpEquals, Value: "lat"}},
		SoftFilters: []planquery.Filter{{Field: planquery.FieldSubject, Op: planquery.OpContains, Value: "astronomy"}},
	}
	built, err := Build(plan)
	require.NoError(t, err)
	assert.NotContains(t, built.SQL, "subjects_fts")
	assert.Equal(t, 1, built.Debug["soft_filters_ignored"])
}

func TestBuild_AgentTypeInClause(t *testing.T) {
	plan := planquery.QueryPlan{Filters: []planquery.Filter{
		{Field: planquery.FieldAgentType, Op: planquery.OpIn, Value: []string{"personal", "corporate"}},
	}}
	built, err := Build(plan)
	require.NoError(t, err)
	assert.Contains(t, built.SQL, "a.agent_type IN (?, ?)")
	assert.Equal(t, []interface{}{"personal", "corporate"}, built.Params)
}
