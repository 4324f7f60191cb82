package controller

import "fmt"

// ErrorKind enumerates the turn-response error taxonomy (spec.md §6/§7).
type ErrorKind string

const (
	KindCompilationFailed ErrorKind = "compilation_failed"
	KindStoreError        ErrorKind = "store_error"
	KindOracleUnavailable ErrorKind = "oracle_unavailable"
	KindRateLimited       ErrorKind = "rate_limited"
	KindInvalidSession    ErrorKind = "invalid_session"
)

// TurnError is the structured error surfaced at the turn boundary.
type TurnError struct {
	Kind    ErrorKind
	Message string
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("controller: %s: %s", e.Kind, e.Message)
}
