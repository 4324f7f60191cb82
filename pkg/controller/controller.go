// Package controller is the Conversation Controller (spec.md §4.8): it
// loads or creates a session, classifies the turn's intent, dispatches
// to compile/build/execute or to one of the exploration analyzers, and
// returns a structured per-turn response. Grounded on the teacher's
// pkg/chat.ChatService shape (a service struct wrapping a store handle
// plus its collaborating components, exposing one call per protocol
// step), generalized here to the five-step turn protocol of spec.md §4.8.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/raro-catalog/bibliofind/internal/cache"
	"github.com/raro-catalog/bibliofind/internal/store"
	execengine "github.com/raro-catalog/bibliofind/pkg/exec"
	"github.com/raro-catalog/bibliofind/pkg/oracle"
	"github.com/raro-catalog/bibliofind/pkg/planner"
	"github.com/raro-catalog/bibliofind/pkg/session"
	"github.com/raro-catalog/bibliofind/pkg/sqlbuild"
)

// Request is the turn interface's inbound shape (spec.md §6).
type Request struct {
	SessionID string
	UserID    string
	Message   string
}

// Response is the turn interface's outbound shape (spec.md §6).
type Response struct {
	SessionID           string
	Message             string
	CandidateSet        *execengine.CandidateSet
	Overview            *execengine.Overview
	SuggestedFollowups  []string
	ClarificationNeeded bool
	PhaseAfter          session.Phase
	Error               *TurnError
}

// Controller wires the Plan Compiler, SQL Builder, Executor, and
// Session Store behind the single per-turn entry point HandleTurn.
type Controller struct {
	sessions    *session.Store
	bibliostore *store.Store
	compiler    *planner.Compiler
	intentCache *cache.Store
	oracle      oracle.Oracle
}

// New builds a Controller over its collaborating components.
func New(sessions *session.Store, bibliostore *store.Store, compiler *planner.Compiler, intentCache *cache.Store, o oracle.Oracle) *Controller {
	return &Controller{sessions: sessions, bibliostore: bibliostore, compiler: compiler, intentCache: intentCache, oracle: o}
}

// HandleTurn implements spec.md §4.8's five-step per-turn protocol. On
// cancellation before execute, no session mutation occurs (spec.md
// §4.8 "Cancellation").
func (c *Controller) HandleTurn(ctx context.Context, req Request) Response {
	sessionID := req.SessionID
	if sessionID == "" {
		id, err := c.sessions.CreateSession(req.UserID)
		if err != nil {
			return errorResponse(KindStoreError, err.Error())
		}
		sessionID = id
	}

	lock := c.sessions.Lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cs, err := c.sessions.LoadSession(sessionID, false)
	if err != nil {
		var sErr *session.Error
		if errors.As(err, &sErr) {
			return errorResponse(KindInvalidSession, sErr.Message)
		}
		return errorResponse(KindStoreError, err.Error())
	}

	intent, err := classifyIntent(ctx, c.oracle, c.intentCache, cs.Phase, req.Message)
	if err != nil {
		return errorResponse(KindOracleUnavailable, err.Error())
	}

	if ctx.Err() != nil {
		return errorResponse(KindStoreError, "turn cancelled before execute")
	}

	resp := c.dispatch(ctx, &cs, intent, req.Message)
	resp.SessionID = sessionID
	if resp.Error != nil {
		return resp
	}

	if err := c.sessions.AppendMessage(sessionID, session.Message{Role: session.RoleUser, Content: req.Message}); err != nil {
		return errorResponse(KindStoreError, err.Error())
	}
	if err := c.sessions.AppendMessage(sessionID, session.Message{Role: session.RoleAssistant, Content: resp.Message}); err != nil {
		return errorResponse(KindStoreError, err.Error())
	}

	resp.PhaseAfter = cs.Phase
	return resp
}

// dispatch implements spec.md §4.8 step 3's dispatch table. cs is
// mutated in place (phase transitions, active subgroup); the handlers
// persist those changes through the session store themselves.
func (c *Controller) dispatch(ctx context.Context, cs *session.ChatSession, intent Intent, turnText string) Response {
	switch {
	case intent == IntentNewQuery:
		return c.handleSearch(ctx, cs, turnText, true)
	case cs.Phase == session.PhaseQueryDefinition && intent == IntentRefinement:
		return c.handleSearch(ctx, cs, turnText, false)
	case intent == IntentOverview:
		return c.handleOverview(ctx, cs)
	case intent == IntentAnalytic:
		return c.handleAnalytic(ctx, cs, turnText)
	case intent == IntentRefinement:
		return c.handleSearch(ctx, cs, turnText, false)
	}
	return errorResponse(KindCompilationFailed, fmt.Sprintf("unhandled intent %q", intent))
}

// resetToQueryDefinition clears cs's active subgroup and drives it back to
// query_definition, persisting both through the session store. Called
// whenever a new_query turn's search fails to produce a usable result: a
// new_query classification abandons whatever subgroup corpus_exploration
// was built around (spec.md §4.8's corpus_exploration → query_definition
// transition), regardless of whether the new search itself succeeds.
func (c *Controller) resetToQueryDefinition(cs *session.ChatSession) error {
	if cs.ActiveSubgroup == nil && cs.Phase == session.PhaseQueryDefinition {
		return nil
	}
	if err := c.sessions.ClearActiveSubgroup(cs.SessionID); err != nil {
		return err
	}
	if err := c.sessions.SetPhase(cs.SessionID, session.PhaseQueryDefinition); err != nil {
		return err
	}
	cs.Phase = session.PhaseQueryDefinition
	cs.ActiveSubgroup = nil
	return nil
}

func (c *Controller) handleSearch(ctx context.Context, cs *session.ChatSession, turnText string, isNewQuery bool) Response {
	plan, err := c.compiler.Compile(ctx, turnText, planner.Options{})
	if err != nil {
		var cErr *planner.CompilationError
		if errors.As(err, &cErr) && cErr.Kind == planner.KindEmptyPlan {
			if isNewQuery {
				if rErr := c.resetToQueryDefinition(cs); rErr != nil {
					return errorResponse(KindStoreError, rErr.Error())
				}
			}
			return Response{Message: "Could you narrow that down? Try naming a place, publisher, date, or subject.", ClarificationNeeded: true}
		}
		return errorResponse(KindCompilationFailed, err.Error())
	}

	built, err := sqlbuild.Build(plan)
	if err != nil {
		return errorResponse(KindCompilationFailed, err.Error())
	}

	set, err := execengine.Execute(ctx, c.bibliostore, plan, built)
	if err != nil {
		return errorResponse(KindStoreError, err.Error())
	}

	if len(set.Candidates) == 0 {
		// spec.md §4.8: a refinement's empty result leaves phase and
		// subgroup untouched (the user can keep narrowing). A new_query's
		// empty result still abandons the old subgroup: it was a
		// different search, not a refinement of the current one.
		if isNewQuery {
			if rErr := c.resetToQueryDefinition(cs); rErr != nil {
				return errorResponse(KindStoreError, rErr.Error())
			}
		}
		return Response{Message: set.Reason, CandidateSet: &set}
	}

	ids := make([]string, len(set.Candidates))
	for i, cand := range set.Candidates {
		ids[i] = cand.RecordID
	}
	sub := session.ActiveSubgroup{DefiningQuery: turnText, FilterSummary: filterSummary(plan), RecordIDs: ids, CandidateCount: set.TotalCount}
	if err := c.sessions.SetActiveSubgroup(cs.SessionID, sub); err != nil {
		return errorResponse(KindStoreError, err.Error())
	}
	if err := c.sessions.SetPhase(cs.SessionID, session.PhaseCorpusExploration); err != nil {
		return errorResponse(KindStoreError, err.Error())
	}
	cs.Phase = session.PhaseCorpusExploration
	cs.ActiveSubgroup = &sub

	return Response{
		Message:      fmt.Sprintf("Found %d matching record(s).", set.TotalCount),
		CandidateSet: &set,
	}
}

func (c *Controller) handleOverview(ctx context.Context, cs *session.ChatSession) Response {
	if cs.ActiveSubgroup == nil {
		return Response{Message: "There's no active result set to summarize yet. Try a search first.", ClarificationNeeded: true}
	}
	ov, err := execengine.BuildOverview(ctx, c.bibliostore, cs.ActiveSubgroup.RecordIDs)
	if err != nil {
		return errorResponse(KindStoreError, err.Error())
	}
	return Response{Message: fmt.Sprintf("%d records in the current result set.", ov.Count), Overview: &ov}
}

func (c *Controller) handleAnalytic(ctx context.Context, cs *session.ChatSession, turnText string) Response {
	if cs.ActiveSubgroup == nil {
		return Response{Message: "There's no active result set to analyze yet. Try a search first.", ClarificationNeeded: true}
	}
	// The exploration analyzer answers structured questions over the
	// active subgroup; absent a richer question parser, the overview
	// aggregation is the analyzer's data source for the current scope
	// (spec.md §4.6 "a parallel analyzer operates over an active subgroup").
	ov, err := execengine.BuildOverview(ctx, c.bibliostore, cs.ActiveSubgroup.RecordIDs)
	if err != nil {
		return errorResponse(KindStoreError, err.Error())
	}
	return Response{Message: fmt.Sprintf("Looking at %q within the current %d-record result set.", turnText, ov.Count), Overview: &ov}
}

func filterSummary(plan interface{ Empty() bool }) string {
	if plan.Empty() {
		return "no filters"
	}
	return "filtered search"
}

func errorResponse(kind ErrorKind, message string) Response {
	return Response{Error: &TurnError{Kind: kind, Message: message}}
}
