package planner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raro-catalog/bibliofind/internal/cache"
	"github.com/raro-catalog/bibliofind/pkg/oracle"
)

func openCache(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open(filepath.Join(t.TempDir(), "plan_cache.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCompile_ValidPlanFromOracle(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{
		`{"filters":[{"field":"PUBLISHER","op":"EQUALS","value":"Aldus Manutius"}],"soft_filters":[],"limit":null}`,
	}}
	c := New(fake, openCache(t))

	plan, err := c.Compile(context.Background(), "books printed by Aldus Manutius", Options{})
	require.NoError(t, err)
	require.Len(t, plan.Filters, 1)
	assert.Equal(t, "PUBLISHER", string(plan.Filters[0].Field))
}

func TestCompile_CacheHitSkipsOracle(t *testing.T) {
	store := openCache(t)
	fake := &oracle.Fake{Responses: []string{
		`{"filters":[{"field":"YEAR","op":"EQUALS","value":1543}],"soft_filters":[],"limit":null}`,
	}}
	c := New(fake, store)

	_, err := c.Compile(context.Background(), "books from 1543", Options{})
	require.NoError(t, err)
	require.Len(t, fake.Prompts, 1)

	plan2, err := c.Compile(context.Background(), "books from 1543", Options{})
	require.NoError(t, err)
	assert.Len(t, fake.Prompts, 1, "second compile of the same text must not re-invoke the oracle")
	assert.Equal(t, 1543, mustInt(t, plan2.Filters[0]))
}

func TestCompile_RetriesOnceOnSchemaViolation(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{
		"not json",
		`{"filters":[{"field":"LANGUAGE","op":"EQUALS","value":"lat"}],"soft_filters":[],"limit":null}`,
	}}
	c := New(fake, openCache(t))

	plan, err := c.Compile(context.Background(), "books written in Latin", Options{})
	require.NoError(t, err)
	require.Len(t, fake.Prompts, 2)
	require.Len(t, plan.Filters, 1)
}

func TestCompile_SchemaViolationTwiceFails(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{"not json", "still not json"}}
	c := New(fake, openCache(t))

	_, err := c.Compile(context.Background(), "books written in Latin", Options{})
	require.Error(t, err)

	var cErr *CompilationError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, KindSchemaViolation, cErr.Kind)
}

func TestCompile_EmptyPlanOnVerboseQueryReturnsEmptyPlanError(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{`{"filters":[],"soft_filters":[],"limit":null}`}}
	c := New(fake, openCache(t))

	_, err := c.Compile(context.Background(), "I would like to browse something interesting please", Options{})
	require.Error(t, err)

	var cErr *CompilationError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, KindEmptyPlan, cErr.Kind)
}

func TestCompile_SubjectHintsRetryRecoversFilters(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{
		`{"filters":[],"soft_filters":[],"limit":null}`,
		`{"filters":[{"field":"SUBJECT","op":"CONTAINS","value":"astronomy"}],"soft_filters":[],"limit":null}`,
	}}
	c := New(fake, openCache(t))

	plan, err := c.Compile(context.Background(), "anything about the heavens and the stars", Options{
		EnableSubjectHintsRetry: true,
		SubjectHints:            []string{"Astronomy--Early works to 1800"},
	})
	require.NoError(t, err)
	require.Len(t, plan.Filters, 1)
	assert.Equal(t, "SUBJECT", string(plan.Filters[0].Field))
}

func TestCompile_OracleTransportErrorIsOracleUnavailable(t *testing.T) {
	fake := &oracle.Fake{Err: assert.AnError}
	c := New(fake, openCache(t))

	_, err := c.Compile(context.Background(), "books from Basel", Options{})
	require.Error(t, err)

	var cErr *CompilationError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, KindOracleUnavailable, cErr.Kind)
}

func mustInt(t *testing.T, f interface{ AsInt() (int, bool) }) int {
	t.Helper()
	n, ok := f.AsInt()
	require.True(t, ok)
	return n
}
