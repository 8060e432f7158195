// Package segment provides declarative audience filters for outbound
// campaigns: clause validation, deterministic fingerprinting, and
// translation into SQL predicates over the employee/company tables.
package segment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ==========================================
// OPERATORS
// ==========================================

// Operator represents a comparison operator in a filter clause.
type Operator string

const (
	OpEq    Operator = "eq"
	OpIn    Operator = "in"
	OpNotIn Operator = "not_in"
	OpGte   Operator = "gte"
	OpLte   Operator = "lte"
)

// IsValid reports whether op is one of the supported operators.
func (op Operator) IsValid() bool {
	switch op {
	case OpEq, OpIn, OpNotIn, OpGte, OpLte:
		return true
	}
	return false
}

// ==========================================
// FIELD NAMESPACES
// ==========================================

// Filter fields are namespaced by the entity family they address.
// The employee family and the company family are joined on
// employees.company_id at query time.
const (
	NamespaceEmployees = "employees"
	NamespaceCompanies = "companies"
)

// ==========================================
// CLAUSES
// ==========================================

// Clause is a single typed filter condition. Clauses are immutable once
// validated; Validate returns a fresh list the caller owns.
type Clause struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// ClauseList is an ordered, validated list of clauses.
type ClauseList []Clause

// ==========================================
// SEGMENTS
// ==========================================

// Segment is a named, filter-defined audience selector. Version is the
// only field mutated after creation; the snapshot workflow owns version
// bumps exclusively.
type Segment struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Locale           string          `json:"locale" db:"locale"`
	FilterDefinition json.RawMessage `json:"filter_definition" db:"filter_definition"`
	Version          int             `json:"version" db:"version"`
	Description      string          `json:"description,omitempty" db:"description"`
	CreatedBy        *uuid.UUID      `json:"created_by,omitempty" db:"created_by"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}
