package planner

import "fmt"

// CompilationErrorKind enumerates the plan compiler's failure modes (spec.md §4.4/§7).
type CompilationErrorKind string

const (
	KindOracleUnavailable CompilationErrorKind = "oracle_unavailable"
	KindSchemaViolation   CompilationErrorKind = "schema_violation"
	KindEmptyPlan         CompilationErrorKind = "empty_plan"
)

// CompilationError is returned by Compile when no usable QueryPlan could
// be produced. EmptyPlan is informational: the controller may use it to
// trigger a clarification turn instead of surfacing a hard failure.
type CompilationError struct {
	Kind    CompilationErrorKind
	Message string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("planner: %s: %s", e.Kind, e.Message)
}

func oracleUnavailable(err error) *CompilationError {
	return &CompilationError{Kind: KindOracleUnavailable, Message: err.Error()}
}

func schemaViolation(msg string) *CompilationError {
	return &CompilationError{Kind: KindSchemaViolation, Message: msg}
}

func emptyPlan(queryText string) *CompilationError {
	return &CompilationError{Kind: KindEmptyPlan, Message: "no filters recovered for: " + queryText}
}
