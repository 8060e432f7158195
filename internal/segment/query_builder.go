package segment

import (
	"fmt"
	"strings"
)

// QueryBuilder compiles a validated clause list into a parameterized SQL
// query over the employees/companies join. It never interpolates caller
// values into SQL text; everything flows through positional args.
type QueryBuilder struct {
	args       []interface{}
	argCounter int
}

// NewQueryBuilder creates a new QueryBuilder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{args: make([]interface{}, 0), argCounter: 1}
}

const memberColumns = `
	SELECT e.id, e.company_id, e.first_name, e.last_name, e.email, e.position,
		c.name, c.domain, c.industry, c.employee_count
	FROM employees e
	JOIN companies c ON e.company_id = c.id
`

// nextArg registers a query argument and returns its placeholder.
func (qb *QueryBuilder) nextArg(value interface{}) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

// BuildQuery builds the member-selection query for a clause list.
func (qb *QueryBuilder) BuildQuery(clauses ClauseList) (string, []interface{}, error) {
	where, err := qb.buildWhere(clauses)
	if err != nil {
		return "", nil, err
	}
	query := memberColumns + "WHERE " + where + "\nORDER BY e.id"
	return query, qb.args, nil
}

// BuildCountQuery builds a COUNT query over the same predicate. The
// workflow runs this before any snapshot write so size caps are enforced
// without touching storage.
func (qb *QueryBuilder) BuildCountQuery(clauses ClauseList) (string, []interface{}, error) {
	where, err := qb.buildWhere(clauses)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT COUNT(*) FROM employees e JOIN companies c ON e.company_id = c.id\nWHERE " + where
	return query, qb.args, nil
}

func (qb *QueryBuilder) buildWhere(clauses ClauseList) (string, error) {
	// Reset state
	qb.args = make([]interface{}, 0)
	qb.argCounter = 1

	conditions := []string{"1=1"}
	for _, clause := range clauses {
		sql, err := qb.buildClause(clause)
		if err != nil {
			return "", err
		}
		conditions = append(conditions, sql)
	}
	return strings.Join(conditions, "\n  AND "), nil
}

// buildClause builds SQL for a single clause.
//
// NULL policy: "in" matches only non-NULL values that equal a list
// element; "not_in" is set exclusion, so rows whose field is NULL are
// kept (a NULL was never in the excluded set). This avoids the SQL
// NOT IN pitfall where a NULL silently drops every row.
func (qb *QueryBuilder) buildClause(clause Clause) (string, error) {
	col, err := columnRef(clause.Field)
	if err != nil {
		return "", err
	}

	switch clause.Operator {
	case OpEq:
		return fmt.Sprintf("%s = %s", col, qb.nextArg(clause.Value)), nil
	case OpGte:
		return fmt.Sprintf("%s >= %s", col, qb.nextArg(clause.Value)), nil
	case OpLte:
		return fmt.Sprintf("%s <= %s", col, qb.nextArg(clause.Value)), nil
	case OpIn:
		placeholders, err := qb.listArgs(clause)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s IN (%s)", col, placeholders), nil
	case OpNotIn:
		placeholders, err := qb.listArgs(clause)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col, col, placeholders), nil
	default:
		return "", fmt.Errorf("unsupported operator: %s", clause.Operator)
	}
}

func (qb *QueryBuilder) listArgs(clause Clause) (string, error) {
	arr, ok := asArray(clause.Value)
	if !ok || len(arr) == 0 {
		return "", fmt.Errorf("operator %s requires a non-empty array for field %s", clause.Operator, clause.Field)
	}
	placeholders := make([]string, len(arr))
	for i, v := range arr {
		placeholders[i] = qb.nextArg(v)
	}
	return strings.Join(placeholders, ","), nil
}

// columnRef maps a namespaced field to its table-qualified column.
// Validate has already constrained the column name to a plain
// identifier, so interpolation here is safe.
func columnRef(field string) (string, error) {
	ns, col, ok := splitField(field)
	if !ok {
		return "", fmt.Errorf("malformed field: %s", field)
	}
	switch ns {
	case NamespaceEmployees:
		return "e." + col, nil
	case NamespaceCompanies:
		return "c." + col, nil
	default:
		return "", fmt.Errorf("unknown field namespace: %s", ns)
	}
}
