package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raro-catalog/bibliofind/internal/cache"
	"github.com/raro-catalog/bibliofind/pkg/oracle"
	"github.com/raro-catalog/bibliofind/pkg/session"
)

// Intent is the controller's per-turn classification (spec.md §4.8).
type Intent string

const (
	IntentNewQuery   Intent = "new_query"
	IntentRefinement Intent = "refinement"
	IntentOverview   Intent = "overview"
	IntentAnalytic   Intent = "analytic"
)

type intentDecision struct {
	Intent Intent `json:"intent"`
}

// overviewHeuristicWords are the fixed lexical triggers for the
// "overview" intent within corpus_exploration (spec.md §4.8: "a fixed
// heuristic over the turn text"), checked before the oracle call so the
// common case never needs a round trip.
var overviewHeuristicWords = []string{"overview", "summary", "summarize", "breakdown", "how many", "statistics"}

// classifyIntent implements spec.md §4.8 step 2: classification against
// the current phase, cached by (phase, turn_text), using the fixed
// overview heuristic before falling back to the oracle.
func classifyIntent(ctx context.Context, o oracle.Oracle, intentCache *cache.Store, phase session.Phase, turnText string) (Intent, error) {
	if phase == session.PhaseCorpusExploration && matchesOverviewHeuristic(turnText) {
		return IntentOverview, nil
	}

	key := string(phase) + "\x00" + turnText
	var cached intentDecision
	if hit, err := intentCache.Get(key, &cached); err != nil {
		return "", fmt.Errorf("controller: intent cache lookup: %w", err)
	} else if hit {
		return cached.Intent, nil
	}

	decision, err := resolveIntent(ctx, o, phase, turnText)
	if err != nil {
		return "", err
	}
	if err := intentCache.Put(key, decision); err != nil {
		return "", fmt.Errorf("controller: intent cache store: %w", err)
	}
	return decision.Intent, nil
}

func matchesOverviewHeuristic(turnText string) bool {
	lower := strings.ToLower(turnText)
	for _, w := range overviewHeuristicWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func resolveIntent(ctx context.Context, o oracle.Oracle, phase session.Phase, turnText string) (intentDecision, error) {
	prompt := intentPrompt(phase, turnText, "")
	raw, err := o.Complete(ctx, prompt)
	if err != nil {
		return intentDecision{}, fmt.Errorf("controller: oracle_unavailable: %w", err)
	}

	decision, verr := parseIntent(raw, phase)
	if verr == nil {
		return decision, nil
	}

	raw, err = o.Complete(ctx, intentPrompt(phase, turnText, verr.Error()))
	if err != nil {
		return intentDecision{}, fmt.Errorf("controller: oracle_unavailable: %w", err)
	}
	decision, verr = parseIntent(raw, phase)
	if verr != nil {
		// Default to the phase's safest interpretation rather than
		// failing the turn outright on a second classification failure.
		if phase == session.PhaseCorpusExploration {
			return intentDecision{Intent: IntentAnalytic}, nil
		}
		return intentDecision{Intent: IntentNewQuery}, nil
	}
	return decision, nil
}

func parseIntent(raw string, _ session.Phase) (intentDecision, error) {
	var d intentDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &d); err != nil {
		return intentDecision{}, fmt.Errorf("response is not valid JSON: %w", err)
	}
	switch d.Intent {
	case IntentNewQuery, IntentRefinement, IntentOverview, IntentAnalytic:
	default:
		return intentDecision{}, fmt.Errorf("intent %q is not one of the enumerated values", d.Intent)
	}
	return d, nil
}

// intentPrompt asks the oracle to pick among all four enumerated
// intents regardless of current phase: a corpus_exploration turn can
// still be classified new_query, which is exactly the signal that
// drives the corpus_exploration → query_definition transition
// (spec.md §4.8).
func intentPrompt(phase session.Phase, turnText, repairHint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify the user's turn in a bibliographic search conversation currently in the %s phase.\n", phase)
	fmt.Fprintf(&b, "Turn: %q\n", turnText)
	b.WriteString("Respond with exactly one JSON object: {\"intent\": \"new_query|refinement|overview|analytic\"}.\n")
	b.WriteString("new_query: an unrelated new search. refinement: narrows the current search. overview: requests a statistical summary of the current result set. analytic: asks a specific question about the current result set.\n")
	if repairHint != "" {
		fmt.Fprintf(&b, "Your previous response failed validation: %s. Return only the corrected JSON object.\n", repairHint)
	}
	return b.String()
}
