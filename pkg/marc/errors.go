package marc

import "fmt"

// ParseErrorKind enumerates the ways Parse can fail (spec.md §4.1/§7).
type ParseErrorKind string

const (
	ErrMissingRecordID     ParseErrorKind = "missing_record_id"
	ErrMalformedStructure  ParseErrorKind = "malformed_structure"
)

// ParseError is returned by Parse only when the record id cannot be
// extracted. A record whose wire structure cannot be read at all yields
// a MalformedStructureError from Reader.Next instead; AsParseError
// converts it to a ParseError with Kind ErrMalformedStructure.
type ParseError struct {
	Kind     ParseErrorKind
	Location string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("marc: parse error (%s) at %s", e.Kind, e.Location)
}

// MalformedStructureError is returned by Reader.Next when a logical
// record's ISO 2709 framing cannot be decoded at all (truncated leader,
// bad directory, etc). It carries ErrMalformedStructure.
type MalformedStructureError struct {
	Reason string
}

func (e *MalformedStructureError) Error() string {
	return fmt.Sprintf("marc: malformed record structure: %s", e.Reason)
}

// AsParseError converts a MalformedStructureError into the taxonomy's
// ParseError shape for callers that want a uniform error kind.
func (e *MalformedStructureError) AsParseError() *ParseError {
	return &ParseError{Kind: ErrMalformedStructure, Location: e.Reason}
}
