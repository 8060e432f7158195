package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQueryEq(t *testing.T) {
	qb := NewQueryBuilder()
	query, args, err := qb.BuildQuery(ClauseList{
		{Field: "employees.position", Operator: OpEq, Value: "cto"},
	})
	require.NoError(t, err)
	assert.Contains(t, query, "e.position = $1")
	assert.Contains(t, query, "JOIN companies c ON e.company_id = c.id")
	assert.Contains(t, query, "ORDER BY e.id")
	assert.Equal(t, []interface{}{"cto"}, args)
}

func TestBuildQueryIn(t *testing.T) {
	qb := NewQueryBuilder()
	query, args, err := qb.BuildQuery(ClauseList{
		{Field: "employees.position", Operator: OpIn, Value: []interface{}{"cto", "vp_engineering"}},
	})
	require.NoError(t, err)
	assert.Contains(t, query, "e.position IN ($1,$2)")
	assert.Equal(t, []interface{}{"cto", "vp_engineering"}, args)
}

// not_in keeps NULL rows: the predicate must guard the NOT IN with an
// IS NULL alternative, otherwise a NULL column silently drops the row.
func TestBuildQueryNotInKeepsNulls(t *testing.T) {
	qb := NewQueryBuilder()
	query, args, err := qb.BuildQuery(ClauseList{
		{Field: "companies.industry", Operator: OpNotIn, Value: []interface{}{"gambling", "tobacco"}},
	})
	require.NoError(t, err)
	assert.Contains(t, query, "(c.industry IS NULL OR c.industry NOT IN ($1,$2))")
	assert.Equal(t, []interface{}{"gambling", "tobacco"}, args)
}

func TestBuildQueryRangeOperators(t *testing.T) {
	qb := NewQueryBuilder()
	query, args, err := qb.BuildQuery(ClauseList{
		{Field: "companies.employee_count", Operator: OpGte, Value: float64(50)},
		{Field: "companies.employee_count", Operator: OpLte, Value: float64(500)},
	})
	require.NoError(t, err)
	assert.Contains(t, query, "c.employee_count >= $1")
	assert.Contains(t, query, "c.employee_count <= $2")
	assert.Equal(t, []interface{}{float64(50), float64(500)}, args)
}

func TestBuildQueryArgNumberingAcrossClauses(t *testing.T) {
	qb := NewQueryBuilder()
	query, args, err := qb.BuildQuery(ClauseList{
		{Field: "employees.position", Operator: OpIn, Value: []interface{}{"cto", "ceo"}},
		{Field: "companies.employee_count", Operator: OpGte, Value: float64(10)},
	})
	require.NoError(t, err)
	assert.Contains(t, query, "IN ($1,$2)")
	assert.Contains(t, query, ">= $3")
	assert.Len(t, args, 3)
}

func TestBuildCountQuerySamePredicate(t *testing.T) {
	clauses := ClauseList{
		{Field: "employees.position", Operator: OpEq, Value: "cto"},
		{Field: "companies.industry", Operator: OpNotIn, Value: []interface{}{"gambling"}},
	}

	q1, args1, err := NewQueryBuilder().BuildQuery(clauses)
	require.NoError(t, err)
	q2, args2, err := NewQueryBuilder().BuildCountQuery(clauses)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(q2, "SELECT COUNT(*)"))
	// Same WHERE text and same args; only the projection differs.
	whereIdx1 := strings.Index(q1, "WHERE")
	whereIdx2 := strings.Index(q2, "WHERE")
	require.Positive(t, whereIdx1)
	require.Positive(t, whereIdx2)
	where1 := strings.TrimSpace(strings.TrimSuffix(q1[whereIdx1:], "ORDER BY e.id"))
	assert.Equal(t, where1, strings.TrimSpace(q2[whereIdx2:]))
	assert.Equal(t, args1, args2)
}

func TestBuildQueryRejectsMalformedField(t *testing.T) {
	qb := NewQueryBuilder()
	_, _, err := qb.BuildQuery(ClauseList{
		{Field: "noprefix", Operator: OpEq, Value: "x"},
	})
	assert.Error(t, err)
}

func TestBuilderReusableAcrossBuilds(t *testing.T) {
	qb := NewQueryBuilder()
	_, args, err := qb.BuildQuery(ClauseList{{Field: "employees.email", Operator: OpEq, Value: "a@b.co"}})
	require.NoError(t, err)
	require.Len(t, args, 1)

	query, args, err := qb.BuildQuery(ClauseList{{Field: "employees.email", Operator: OpEq, Value: "c@d.co"}})
	require.NoError(t, err)
	assert.Contains(t, query, "$1")
	assert.NotContains(t, query, "$2")
	assert.Equal(t, []interface{}{"c@d.co"}, args)
}
