// Package planquery defines the structured query plan vocabulary shared by
// the plan compiler, SQL builder, and executor: the enumerated filter
// fields and operators, and the QueryPlan value itself.
package planquery

import "fmt"

// Field is the enumerated set of queryable bibliographic fields.
type Field string

const (
	FieldPublisher    Field = "PUBLISHER"
	FieldImprintPlace Field = "IMPRINT_PLACE"
	FieldYear         Field = "YEAR"
	FieldLanguage     Field = "LANGUAGE"
	FieldTitle        Field = "TITLE"
	FieldSubject      Field = "SUBJECT"
	FieldAgentNorm    Field = "AGENT_NORM"
	FieldAgentRole    Field = "AGENT_ROLE"
	FieldAgentType    Field = "AGENT_TYPE"
	FieldCountry      Field = "COUNTRY"
)

// validFields is the closed set accepted by Field.Valid.
var validFields = map[Field]bool{
	FieldPublisher: true, FieldImprintPlace: true, FieldYear: true,
	FieldLanguage: true, FieldTitle: true, FieldSubject: true,
	FieldAgentNorm: true, FieldAgentRole: true, FieldAgentType: true,
	FieldCountry: true,
}

// Valid reports whether f is one of the enumerated fields.
func (f Field) Valid() bool { return validFields[f] }

// Op is the enumerated set of filter operators.
type Op string

const (
	OpEquals   Op = "EQUALS"
	OpContains Op = "CONTAINS"
	OpIn       Op = "IN"
	OpRange    Op = "RANGE"
	OpOverlaps Op = "OVERLAPS"
	OpGTE      Op = "GTE"
	OpLTE      Op = "LTE"
)

var validOps = map[Op]bool{
	OpEquals: true, OpContains: true, OpIn: true, OpRange: true,
	OpOverlaps: true, OpGTE: true, OpLTE: true,
}

// Valid reports whether o is one of the enumerated operators.
func (o Op) Valid() bool { return validOps[o] }

// RangeValue is the value shape for RANGE/OVERLAPS filters on YEAR.
type RangeValue struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Filter is a single typed predicate within a QueryPlan.
type Filter struct {
	Field Field       `json:"field" validate:"required"`
	Op    Op          `json:"op" validate:"required"`
	Value interface{} `json:"value"`
	Notes string      `json:"notes,omitempty"`
}

// Validate checks Filter against the closed field/op enumerations and the
// per-field value-type contract described in spec.md §3.3/§4.5.
func (f Filter) Validate() error {
	if !f.Field.Valid() {
		return fmt.Errorf("planquery: unknown field %q", f.Field)
	}
	if !f.Op.Valid() {
		return fmt.Errorf("planquery: unknown op %q", f.Op)
	}
	switch f.Field {
	case FieldYear:
		switch f.Op {
		case OpRange, OpOverlaps:
			if _, ok := asRange(f.Value); !ok {
				return fmt.Errorf("planquery: YEAR %s requires {start,end}", f.Op)
			}
		case OpGTE, OpLTE, OpEquals:
			if _, ok := asInt(f.Value); !ok {
				return fmt.Errorf("planquery: YEAR %s requires an integer year", f.Op)
			}
		default:
			return fmt.Errorf("planquery: YEAR does not support op %s", f.Op)
		}
	case FieldAgentType:
		if f.Op != OpEquals && f.Op != OpIn {
			return fmt.Errorf("planquery: AGENT_TYPE does not support op %s", f.Op)
		}
	default:
		if _, ok := f.Value.(string); !ok {
			if _, ok := asStringSlice(f.Value); !ok {
				return fmt.Errorf("planquery: %s requires a string or string-list value", f.Field)
			}
		}
	}
	return nil
}

// AsRange returns the {start,end} pair for a YEAR RANGE/OVERLAPS filter.
func (f Filter) AsRange() (RangeValue, bool) { return asRange(f.Value) }

// AsString returns the string value for string-typed filters.
func (f Filter) AsString() (string, bool) {
	s, ok := f.Value.(string)
	return s, ok
}

// AsStringSlice returns the []string value for IN-typed filters.
func (f Filter) AsStringSlice() ([]string, bool) { return asStringSlice(f.Value) }

// AsInt returns the integer value for single-year comparisons.
func (f Filter) AsInt() (int, bool) { return asInt(f.Value) }

func asRange(v interface{}) (RangeValue, bool) {
	switch t := v.(type) {
	case RangeValue:
		return t, true
	case map[string]interface{}:
		start, ok1 := asInt(t["start"])
		end, ok2 := asInt(t["end"])
		if ok1 && ok2 {
			return RangeValue{Start: start, End: end}, true
		}
	}
	return RangeValue{}, false
}

func asInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}

func asStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// QueryPlan is the validated, schema-checked output of the Plan Compiler.
type QueryPlan struct {
	Version     int                    `json:"version"`
	QueryText   string                 `json:"query_text"`
	Filters     []Filter               `json:"filters"`
	SoftFilters []Filter               `json:"soft_filters,omitempty"`
	Limit       *int                   `json:"limit,omitempty"`
	Debug       map[string]interface{} `json:"debug,omitempty"`
}

// Validate checks every hard and soft filter against the enumerations.
func (p QueryPlan) Validate() error {
	for i, f := range p.Filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("planquery: filters[%d]: %w", i, err)
		}
	}
	for i, f := range p.SoftFilters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("planquery: soft_filters[%d]: %w", i, err)
		}
	}
	return nil
}

// Empty reports whether the plan carries no hard filters.
func (p QueryPlan) Empty() bool { return len(p.Filters) == 0 }
