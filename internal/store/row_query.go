package store

import (
	"fmt"
	"strings"

	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/models"
)

// RowQuery builds the SQL for one table_rows read. It is the concrete
// query-builder the filter engine targets; field references resolve to
// JSON_EXTRACT expressions over the row payload.
type RowQuery struct {
	tableID string
	wheres  []string
	args    []any
	orders  []string
	limit   int
	offset  int
	exact   bool
}

func NewRowQuery(tableID string) *RowQuery {
	return &RowQuery{tableID: tableID, limit: -1, offset: 0, exact: true}
}

// Column is the scalar SQL expression for a field of the row payload.
func (q *RowQuery) Column(field string) string {
	return fmt.Sprintf(`JSON_EXTRACT(r.data_json, %s)`, jsonPath(field))
}

// Each is the json_each source for array-valued fields.
func (q *RowQuery) Each(field string) string {
	return fmt.Sprintf(`json_each(r.data_json, %s)`, jsonPath(field))
}

func (q *RowQuery) Where(clause string, args ...any) *RowQuery {
	if clause == "" {
		return q
	}
	q.wheres = append(q.wheres, clause)
	q.args = append(q.args, args...)
	return q
}

func (q *RowQuery) Eq(field string, value any) *RowQuery {
	return q.Where(q.Column(field)+" = ?", value)
}

func (q *RowQuery) Neq(field string, value any) *RowQuery {
	col := q.Column(field)
	return q.Where(fmt.Sprintf("(%s IS NULL OR %s != ?)", col, col), value)
}

// ILike matches case-insensitively; pattern uses SQL wildcards.
func (q *RowQuery) ILike(field string, pattern string) *RowQuery {
	return q.Where(fmt.Sprintf("LOWER(CAST(%s AS TEXT)) LIKE ?", q.Column(field)), strings.ToLower(pattern))
}

func (q *RowQuery) Not(clause string, args ...any) *RowQuery {
	if clause == "" {
		return q
	}
	return q.Where("NOT ("+clause+")", args...)
}

// Or combines pre-built clauses disjunctively.
func (q *RowQuery) Or(clauses []string, args ...any) *RowQuery {
	nonEmpty := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		if clause != "" {
			nonEmpty = append(nonEmpty, clause)
		}
	}
	if len(nonEmpty) == 0 {
		return q
	}
	return q.Where("("+strings.Join(nonEmpty, " OR ")+")", args...)
}

func (q *RowQuery) Order(field string, ascending bool) *RowQuery {
	dir := "ASC"
	if !ascending {
		dir = "DESC"
	}
	q.orders = append(q.orders, fmt.Sprintf("%s %s", q.Column(field), dir))
	return q
}

// Range selects rows [from, to] inclusive.
func (q *RowQuery) Range(from int, to int) *RowQuery {
	if from < 0 || to < from {
		return q
	}
	q.offset = from
	q.limit = to - from + 1
	return q
}

func (q *RowQuery) Limit(n int) *RowQuery {
	q.limit = n
	return q
}

// ApplyFilterTree pushes a filter tree into the query. When the tree is
// not fully expressible in SQL the query is widened and Exact() reports
// false so the caller re-checks rows in memory.
func (q *RowQuery) ApplyFilterTree(tree filter.Node, fields []models.Field) *RowQuery {
	clause, args, exact := filter.ToSQL(tree, fields, filter.SQLTarget{
		Column: q.Column,
		Each:   q.Each,
	})
	if !exact {
		q.exact = false
	}
	return q.Where(clause, args...)
}

// Exact reports whether the built SQL fully expresses every filter
// applied so far.
func (q *RowQuery) Exact() bool {
	return q.exact
}

func (q *RowQuery) buildSQL() (string, []any) {
	query := `SELECT r.id, r.table_id, r.data_json, r.create_time, r.update_time
		FROM table_rows r
		WHERE r.table_id = ?`
	args := append([]any{q.tableID}, q.args...)
	for _, clause := range q.wheres {
		query += ` AND ` + clause
	}
	orders := append([]string{}, q.orders...)
	orders = append(orders, "r.create_time", "r.id")
	query += ` ORDER BY ` + strings.Join(orders, ", ")
	if q.limit >= 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.limit, q.offset)
	}
	return query, args
}

// jsonPath quotes a field name as a SQLite JSON path literal.
func jsonPath(field string) string {
	escaped := strings.ReplaceAll(field, `"`, ``)
	escaped = strings.ReplaceAll(escaped, `'`, ``)
	return fmt.Sprintf(`'$."%s"'`, escaped)
}
