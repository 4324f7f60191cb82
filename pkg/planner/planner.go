// Package planner is the Plan Compiler (spec.md §4.4): natural-language
// query text compiled into a validated planquery.QueryPlan via a cached,
// oracle-backed protocol. Grounded on the same cache-then-oracle-then-
// validate-with-repair-retry shape used by pkg/aliasmap's offline
// alias-decision resolution, generalized here to a single per-query-text
// compile call instead of a batch over a frequency table.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	validatorpkg "github.com/go-playground/validator/v10"

	"github.com/raro-catalog/bibliofind/internal/cache"
	"github.com/raro-catalog/bibliofind/pkg/oracle"
	"github.com/raro-catalog/bibliofind/pkg/planquery"
)

// structValidator is shared across calls; go-playground/validator's
// Validate type is safe for concurrent use once built.
var structValidator = validatorpkg.New()

const planSchemaVersion = 1

// Options configures one Compile call.
type Options struct {
	// SubjectHints, when non-empty, are offered to the oracle as
	// domain-vocabulary context on a subject-hints retry (spec.md §4.4
	// step 4, §9 Open Question: recover plausible SUBJECT filters for
	// domain vocabulary when the first pass returns zero filters).
	SubjectHints []string
	// EnableSubjectHintsRetry toggles step 4 of the protocol. Off by
	// default so compiler behavior stays deterministic in tests that
	// don't supply hints.
	EnableSubjectHintsRetry bool
}

// Compiler is the Plan Compiler: a cached, oracle-backed compile(query_text).
type Compiler struct {
	oracle oracle.Oracle
	cache  *cache.Store
}

// New builds a Compiler over a shared oracle client and plan cache.
func New(o oracle.Oracle, planCache *cache.Store) *Compiler {
	return &Compiler{oracle: o, cache: planCache}
}

// Compile implements spec.md §4.4's five-step protocol: cache lookup,
// oracle call, validate-with-one-repair-retry, optional subject-hints
// retry on an empty plan, cache-and-return.
func (c *Compiler) Compile(ctx context.Context, queryText string, opts Options) (planquery.QueryPlan, error) {
	var cached planquery.QueryPlan
	if hit, err := c.cache.Get(queryText, &cached); err != nil {
		return planquery.QueryPlan{}, fmt.Errorf("planner: cache lookup: %w", err)
	} else if hit {
		return cached, nil
	}

	plan, err := c.resolvePlan(ctx, queryText, "")
	if err != nil {
		return planquery.QueryPlan{}, err
	}

	if plan.Empty() && isNonTrivial(queryText) && opts.EnableSubjectHintsRetry && len(opts.SubjectHints) > 0 {
		hinted, herr := c.resolvePlan(ctx, queryText, subjectHintContext(opts.SubjectHints))
		if herr == nil && !hinted.Empty() {
			plan = hinted
		}
	}

	if plan.Empty() && isNonTrivial(queryText) {
		// Cache the empty plan too: repeat queries should not re-invoke the
		// oracle just to rediscover the same empty result (spec.md §4.4
		// "the cache guarantees stable plans for repeat inputs").
		if err := c.cache.Put(queryText, plan); err != nil {
			return planquery.QueryPlan{}, fmt.Errorf("planner: cache store: %w", err)
		}
		return plan, emptyPlan(queryText)
	}

	if err := c.cache.Put(queryText, plan); err != nil {
		return planquery.QueryPlan{}, fmt.Errorf("planner: cache store: %w", err)
	}
	return plan, nil
}

// resolvePlan runs one oracle call (with its own validate+repair-retry
// pair) and returns a schema-valid plan or a *CompilationError.
func (c *Compiler) resolvePlan(ctx context.Context, queryText, extraContext string) (planquery.QueryPlan, error) {
	prompt := compilePrompt(queryText, extraContext, "")
	raw, err := c.oracle.Complete(ctx, prompt)
	if err != nil {
		return planquery.QueryPlan{}, oracleUnavailable(err)
	}

	plan, verr := parsePlan(raw, queryText)
	if verr == nil {
		return plan, nil
	}

	repairPrompt := compilePrompt(queryText, extraContext, verr.Error())
	raw, err = c.oracle.Complete(ctx, repairPrompt)
	if err != nil {
		return planquery.QueryPlan{}, oracleUnavailable(err)
	}

	plan, verr = parsePlan(raw, queryText)
	if verr != nil {
		return planquery.QueryPlan{}, schemaViolation(verr.Error())
	}
	return plan, nil
}

// parsePlan decodes and validates one oracle response against the
// QueryPlan schema (spec.md §4.4 step 3).
func parsePlan(raw, queryText string) (planquery.QueryPlan, error) {
	var plan planquery.QueryPlan
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &plan); err != nil {
		return planquery.QueryPlan{}, fmt.Errorf("response is not valid JSON: %w", err)
	}

	if err := structValidator.Struct(plan); err != nil {
		return planquery.QueryPlan{}, fmt.Errorf("plan failed struct validation: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return planquery.QueryPlan{}, err
	}

	plan.Version = planSchemaVersion
	plan.QueryText = queryText
	return plan, nil
}

func isNonTrivial(queryText string) bool {
	return len(strings.Fields(queryText)) > 3
}

func subjectHintContext(hints []string) string {
	return "Frequent subject headings in this corpus: " + strings.Join(hints, "; ")
}

func compilePrompt(queryText, extraContext, repairHint string) string {
	var b strings.Builder
	b.WriteString("You translate a bibliographic search request into a structured query plan.\n")
	fmt.Fprintf(&b, "Request: %q\n", queryText)
	b.WriteString("Enumerated fields: PUBLISHER, IMPRINT_PLACE, YEAR, LANGUAGE, TITLE, SUBJECT, AGENT_NORM, AGENT_ROLE, AGENT_TYPE, COUNTRY.\n")
	b.WriteString("Enumerated operators: EQUALS, CONTAINS, IN, RANGE, OVERLAPS, GTE, LTE.\n")
	b.WriteString("Respond with exactly one JSON object: {\"filters\": [{\"field\": ..., \"op\": ..., \"value\": ..., \"notes\": \"\"}], \"soft_filters\": [], \"limit\": null}.\n")
	b.WriteString("YEAR RANGE/OVERLAPS values are {\"start\": int, \"end\": int}; other fields take a string or list of strings.\n")
	if extraContext != "" {
		b.WriteString(extraContext + "\n")
	}
	if repairHint != "" {
		fmt.Fprintf(&b, "Your previous response failed validation: %s. Return only the corrected JSON object.\n", repairHint)
	}
	return b.String()
}
