package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ValidationError describes a rejected filter definition. Code is a
// stable string callers can branch on.
type ValidationError struct {
	Code   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Code, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Validation error codes.
const (
	ErrCodeEmptyFilter      = "ERR_EMPTY_FILTER"
	ErrCodeUnknownNamespace = "ERR_UNKNOWN_NAMESPACE"
	ErrCodeBadOperator      = "ERR_UNSUPPORTED_OPERATOR"
	ErrCodeBadValue         = "ERR_INVALID_VALUE"
)

// Column names after the namespace prefix must be plain identifiers so
// the query builder can interpolate them safely.
var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks a filter definition and returns the normalized clause
// list. It is pure: the same input always yields the same ordered output,
// which is what makes Fingerprint usable as a change-detection value.
func Validate(definition []Clause) (ClauseList, error) {
	if len(definition) == 0 {
		return nil, &ValidationError{Code: ErrCodeEmptyFilter, Reason: "filter definition has no clauses"}
	}

	out := make(ClauseList, 0, len(definition))
	for _, c := range definition {
		ns, col, ok := splitField(c.Field)
		if !ok {
			return nil, &ValidationError{Code: ErrCodeUnknownNamespace, Field: c.Field,
				Reason: fmt.Sprintf("field must be prefixed with %q or %q", NamespaceEmployees+".", NamespaceCompanies+".")}
		}
		if ns != NamespaceEmployees && ns != NamespaceCompanies {
			return nil, &ValidationError{Code: ErrCodeUnknownNamespace, Field: c.Field,
				Reason: fmt.Sprintf("unknown namespace %q", ns)}
		}
		if !identRe.MatchString(col) {
			return nil, &ValidationError{Code: ErrCodeUnknownNamespace, Field: c.Field,
				Reason: "field name is not a valid column identifier"}
		}
		if !c.Operator.IsValid() {
			return nil, &ValidationError{Code: ErrCodeBadOperator, Field: c.Field,
				Reason: fmt.Sprintf("unsupported operator %q", c.Operator)}
		}
		if err := validateValue(c); err != nil {
			return nil, err
		}
		out = append(out, Clause{Field: c.Field, Operator: c.Operator, Value: c.Value})
	}
	return out, nil
}

func splitField(field string) (ns, col string, ok bool) {
	idx := strings.IndexByte(field, '.')
	if idx <= 0 || idx == len(field)-1 {
		return "", "", false
	}
	return field[:idx], field[idx+1:], true
}

func validateValue(c Clause) error {
	switch c.Operator {
	case OpIn, OpNotIn:
		arr, ok := asArray(c.Value)
		if !ok {
			return &ValidationError{Code: ErrCodeBadValue, Field: c.Field,
				Reason: fmt.Sprintf("operator %q requires an array value", c.Operator)}
		}
		if len(arr) == 0 {
			return &ValidationError{Code: ErrCodeBadValue, Field: c.Field,
				Reason: fmt.Sprintf("operator %q requires a non-empty array", c.Operator)}
		}
		for _, v := range arr {
			if !isScalar(v) {
				return &ValidationError{Code: ErrCodeBadValue, Field: c.Field,
					Reason: "array elements must be scalar"}
			}
		}
	case OpGte, OpLte:
		if _, ok := asNumber(c.Value); !ok {
			return &ValidationError{Code: ErrCodeBadValue, Field: c.Field,
				Reason: fmt.Sprintf("operator %q requires a numeric value", c.Operator)}
		}
	case OpEq:
		if !isScalar(c.Value) {
			return &ValidationError{Code: ErrCodeBadValue, Field: c.Field,
				Reason: "operator \"eq\" requires a scalar value"}
		}
	}
	return nil
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch arr := v.(type) {
	case []interface{}:
		return arr, true
	case []string:
		out := make([]interface{}, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int64, json.Number:
		return true
	}
	return false
}

// ==========================================
// FINGERPRINT
// ==========================================

// Fingerprint returns a deterministic hash of a clause list. Clauses are
// canonically ordered by (field, operator, value) before hashing, so two
// definitions that differ only in clause order produce the same value.
// The fingerprint doubles as a change-detection value for cached
// snapshot decisions, so it must be stable across processes.
func Fingerprint(clauses ClauseList) string {
	canon := make([]string, 0, len(clauses))
	for _, c := range clauses {
		valueJSON, _ := json.Marshal(c.Value)
		canon = append(canon, c.Field+"\x00"+string(c.Operator)+"\x00"+string(valueJSON))
	}
	sort.Strings(canon)

	h := sha256.New()
	for _, entry := range canon {
		h.Write([]byte(entry))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
