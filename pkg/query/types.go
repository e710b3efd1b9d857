// Package query filters SYSCONF entries by field conditions such as
// type=Long, name^=IPL. or length>4.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/sysconf/pkg/codec"
	"github.com/ssargent/sysconf/pkg/store"
)

// Queryable fields
const (
	FieldName   = "name"
	FieldType   = "type"
	FieldLength = "length"
	FieldOffset = "offset"
)

// Operators, two-character forms first so they win over "=", ">" and "<"
// at the same position
var operators = []string{"^=", ">=", "<=", "!=", "=", ">", "<"}

// FieldQuery represents a single field-based query condition
type FieldQuery struct {
	Field    string // Field name to query: name, type, length or offset
	Operator string // Comparison operator: "=", "!=", ">", "<", ">=", "<=", "^=" (prefix)
	Value    string // Value to compare against
}

// Validate checks if the query is properly formed
func (q *FieldQuery) Validate() error {
	if q.Field == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if q.Operator == "" {
		return fmt.Errorf("operator cannot be empty")
	}

	switch q.Field {
	case FieldName:
		if q.Operator != "=" && q.Operator != "!=" && q.Operator != "^=" {
			return fmt.Errorf("invalid operator for name: %s", q.Operator)
		}
	case FieldType:
		if q.Operator != "=" && q.Operator != "!=" {
			return fmt.Errorf("invalid operator for type: %s", q.Operator)
		}
		if _, err := codec.ParseTypeClass(q.Value); err != nil {
			return err
		}
	case FieldLength, FieldOffset:
		if q.Operator == "^=" {
			return fmt.Errorf("invalid operator for %s: %s", q.Field, q.Operator)
		}
		if _, err := strconv.ParseInt(q.Value, 0, 64); err != nil {
			return fmt.Errorf("%s must be numeric: %w", q.Field, err)
		}
	default:
		return fmt.Errorf("unknown field: %s", q.Field)
	}

	return nil
}

// Parse reads a condition such as "length>=4". The first operator in s
// splits field from value.
func Parse(s string) (FieldQuery, error) {
	at, op := -1, ""
	for _, candidate := range operators {
		if i := strings.Index(s, candidate); i > 0 && (at < 0 || i < at) {
			at, op = i, candidate
		}
	}
	if at < 0 {
		return FieldQuery{}, fmt.Errorf("no operator in condition %q", s)
	}

	q := FieldQuery{
		Field:    strings.TrimSpace(s[:at]),
		Operator: op,
		Value:    strings.TrimSpace(s[at+len(op):]),
	}
	return q, q.Validate()
}

// Match reports whether e satisfies q. q must be valid.
func (q *FieldQuery) Match(e store.Entry) bool {
	switch q.Field {
	case FieldName:
		return compareString(e.Name, q.Operator, q.Value)
	case FieldType:
		return compareString(e.Class.String(), q.Operator, q.Value)
	case FieldLength:
		return compareInt(int64(len(e.Value)), q.Operator, q.Value)
	case FieldOffset:
		return compareInt(int64(e.Offset), q.Operator, q.Value)
	default:
		return false
	}
}

func compareString(have, op, want string) bool {
	switch op {
	case "=":
		return have == want
	case "!=":
		return have != want
	case "^=":
		return strings.HasPrefix(have, want)
	default:
		return false
	}
}

func compareInt(have int64, op, text string) bool {
	want, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return false
	}

	switch op {
	case "=":
		return have == want
	case "!=":
		return have != want
	case ">":
		return have > want
	case "<":
		return have < want
	case ">=":
		return have >= want
	case "<=":
		return have <= want
	default:
		return false
	}
}

// Filter returns the entries matching every query, keeping their order
func Filter(entries []store.Entry, queries []FieldQuery) []store.Entry {
	out := make([]store.Entry, 0, len(entries))
	for _, e := range entries {
		matched := true
		for i := range queries {
			if !queries[i].Match(e) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, e)
		}
	}
	return out
}
