package controller

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raro-catalog/bibliofind/internal/cache"
	"github.com/raro-catalog/bibliofind/internal/store"
	"github.com/raro-catalog/bibliofind/pkg/marc"
	"github.com/raro-catalog/bibliofind/pkg/oracle"
	"github.com/raro-catalog/bibliofind/pkg/planner"
	"github.com/raro-catalog/bibliofind/pkg/session"
)

func newTestController(t *testing.T, fake *oracle.Fake) (*Controller, *session.Store) {
	t.Helper()

	bib, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bib.Close() })

	require.NoError(t, bib.IndexRecord(&marc.CanonicalRecord{
		RecordID: "rec-1",
		Titles:   []marc.Title{{Type: marc.TitleMain, Value: "De Revolutionibus", Sources: []marc.Source{{Tag: "245"}}}},
		Imprints: []marc.Imprint{{
			Occurrence: 0, DateRaw: "1543", PlaceRaw: "Norimbergae", PublisherRaw: "Ioh. Petreius",
			SourceTags: []marc.Source{{Tag: "260"}},
			Norm: &marc.ImprintNorm{
				DateStart: intPtr(1543), DateEnd: intPtr(1543), DateLabel: "1543", DateConfidence: 0.99, DateMethod: "exact_year",
				PlaceNorm: "norimbergae", PlaceDisplay: "Norimbergae", PlaceConfidence: 0.80, PlaceMethod: "base_clean",
				PublisherNorm: "ioh. petreius", PublisherDisplay: "Ioh Petreius", PubConfidence: 0.80, PubMethod: "base_clean",
			},
		}},
	}))

	sessions, err := session.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	planCache, err := cache.Open(filepath.Join(t.TempDir(), "plan_cache.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = planCache.Close() })

	intentCache, err := cache.Open(filepath.Join(t.TempDir(), "intent_cache.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = intentCache.Close() })

	compiler := planner.New(fake, planCache)
	return New(sessions, bib, compiler, intentCache, fake), sessions
}

func intPtr(n int) *int { return &n }

func TestHandleTurn_NewSessionSearchTransitionsToExploration(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{
		`{"intent": "new_query"}`,
		`{"filters":[{"field":"PUBLISHER","op":"EQUALS","value":"Ioh. Petreius"}],"soft_filters":[],"limit":null}`,
	}}
	c, sessions := newTestController(t, fake)

	resp := c.HandleTurn(context.Background(), Request{Message: "books printed by Ioh. Petreius"})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.CandidateSet)
	assert.Equal(t, 1, resp.CandidateSet.TotalCount)
	assert.Equal(t, session.PhaseCorpusExploration, resp.PhaseAfter)

	var sessionID string
	require.NoError(t, sessions.DB().QueryRow(`SELECT session_id FROM chat_sessions LIMIT 1`).Scan(&sessionID))
	cs, err := sessions.LoadSession(sessionID, false)
	require.NoError(t, err)
	require.NotNil(t, cs.ActiveSubgroup)
	assert.Len(t, cs.Messages, 2)
}

func TestHandleTurn_EmptyPlanOnVerboseQueryRequestsClarification(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{
		`{"intent": "new_query"}`,
		`{"filters":[],"soft_filters":[],"limit":null}`,
	}}
	c, _ := newTestController(t, fake)

	resp := c.HandleTurn(context.Background(), Request{Message: "I would like to browse something please"})
	require.Nil(t, resp.Error)
	assert.True(t, resp.ClarificationNeeded)
}

func TestHandleTurn_OverviewIntentUsesHeuristicWithoutOracleCall(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{
		`{"intent": "new_query"}`,
		`{"filters":[{"field":"PUBLISHER","op":"EQUALS","value":"Ioh. Petreius"}],"soft_filters":[],"limit":null}`,
	}}
	c, sessions := newTestController(t, fake)

	first := c.HandleTurn(context.Background(), Request{Message: "books printed by Ioh. Petreius"})
	require.Nil(t, first.Error)

	var sessionID string
	require.NoError(t, sessions.DB().QueryRow(`SELECT session_id FROM chat_sessions LIMIT 1`).Scan(&sessionID))

	promptsBefore := len(fake.Prompts)
	resp := c.HandleTurn(context.Background(), Request{SessionID: sessionID, Message: "give me an overview of this"})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Overview)
	assert.Equal(t, 1, resp.Overview.Count)
	assert.Len(t, fake.Prompts, promptsBefore, "overview heuristic must short-circuit the oracle call")
}

func TestHandleTurn_NewQueryEmptyResultClearsStaleSubgroup(t *testing.T) {
	fake := &oracle.Fake{Responses: []string{
		`{"intent": "new_query"}`,
		`{"filters":[{"field":"PUBLISHER","op":"EQUALS","value":"Ioh. Petreius"}],"soft_filters":[],"limit":null}`,
		`{"intent": "new_query"}`,
		`{"filters":[{"field":"PUBLISHER","op":"EQUALS","value":"Someone Else Entirely"}],"soft_filters":[],"limit":null}`,
	}}
	c, sessions := newTestController(t, fake)

	first := c.HandleTurn(context.Background(), Request{Message: "books printed by Ioh. Petreius"})
	require.Nil(t, first.Error)
	require.NotNil(t, first.CandidateSet)
	assert.Equal(t, session.PhaseCorpusExploration, first.PhaseAfter)

	second := c.HandleTurn(context.Background(), Request{SessionID: first.SessionID, Message: "books printed by Someone Else Entirely"})
	require.Nil(t, second.Error)
	assert.Equal(t, 0, second.CandidateSet.TotalCount)
	assert.Equal(t, session.PhaseQueryDefinition, second.PhaseAfter, "a new_query turn must abandon the prior subgroup even when its own search comes back empty")

	cs, err := sessions.LoadSession(first.SessionID, false)
	require.NoError(t, err)
	assert.Nil(t, cs.ActiveSubgroup, "the stale subgroup from the first search must be cleared")
}

func TestHandleTurn_UnknownSessionIsInvalidSession(t *testing.T) {
	fake := &oracle.Fake{}
	c, _ := newTestController(t, fake)

	resp := c.HandleTurn(context.Background(), Request{SessionID: "nope", Message: "hello"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, KindInvalidSession, resp.Error.Kind)
}
