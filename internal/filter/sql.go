package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

// SQLTarget abstracts the query builder the tree is pushed into. Column
// yields the scalar SQL expression for a field; Each yields a json_each
// table expression for array-valued (multi-select, attachment) fields.
type SQLTarget struct {
	Column func(field string) string
	Each   func(field string) string
}

// ToSQL translates a filter tree into one parameterized WHERE fragment.
// The boolean result reports whether the fragment is exact: false means
// at least one condition could not be expressed in SQL (computed field,
// unknown operator) and was widened to match-all, so the caller must
// re-check rows in memory. An empty tree yields an empty clause.
func ToSQL(n Node, fields []models.Field, target SQLTarget) (string, []any, bool) {
	return ToSQLAt(n, fields, target, time.Now().UTC())
}

func ToSQLAt(n Node, fields []models.Field, target SQLTarget, now time.Time) (string, []any, bool) {
	meta := fieldsByName(fields)
	clause, args, exact := nodeToSQL(n, meta, target, now)
	return clause, args, exact
}

func fieldsByName(fields []models.Field) map[string]models.Field {
	meta := make(map[string]models.Field, len(fields))
	for _, f := range fields {
		meta[f.Name] = f
	}
	return meta
}

// nodeToSQL returns an empty clause for match-all nodes. Inside an OR
// group a match-all child widens the whole group to match-all; inside an
// AND group only that child is dropped.
func nodeToSQL(n Node, meta map[string]models.Field, target SQLTarget, now time.Time) (string, []any, bool) {
	switch v := n.(type) {
	case nil:
		return "", nil, true
	case Leaf:
		return leafToSQL(v, meta, target, now)
	case Group:
		clauses := make([]string, 0, len(v.Children))
		args := make([]any, 0)
		exact := true
		for _, child := range v.Children {
			clause, childArgs, childExact := nodeToSQL(child, meta, target, now)
			if !childExact {
				exact = false
			}
			if clause == "" {
				if v.ConditionType == models.ConditionOr {
					// One pass-through branch makes the OR vacuous.
					return "", nil, exact && childExact
				}
				continue
			}
			clauses = append(clauses, clause)
			args = append(args, childArgs...)
		}
		if len(clauses) == 0 {
			return "", nil, exact
		}
		joiner := " AND "
		if v.ConditionType == models.ConditionOr {
			joiner = " OR "
		}
		if len(clauses) == 1 {
			return clauses[0], args, exact
		}
		return "(" + strings.Join(clauses, joiner) + ")", args, exact
	default:
		return "", nil, true
	}
}

func leafToSQL(leaf Leaf, meta map[string]models.Field, target SQLTarget, now time.Time) (string, []any, bool) {
	field, known := meta[leaf.Field]
	if known && field.Type.IsComputed() {
		// Computed values are not in the row payload; defer to the
		// in-memory matcher.
		return "", nil, false
	}

	col := target.Column(leaf.Field)

	switch leaf.Operator {
	case OpEqual:
		if known && field.Type == models.FieldTypeMultiSelect {
			return multiSelectContains(leaf, target)
		}
		if known && field.Type == models.FieldTypeCheckbox {
			return fmt.Sprintf("COALESCE(%s, 0) = ?", col), []any{boolArg(leaf.Value)}, true
		}
		return col + " = ?", []any{scalarArg(leaf.Value)}, true
	case OpNotEqual:
		if known && field.Type == models.FieldTypeMultiSelect {
			clause, args, exact := multiSelectContains(leaf, target)
			if clause == "" {
				return clause, args, exact
			}
			return "NOT " + clause, args, exact
		}
		if known && field.Type == models.FieldTypeCheckbox {
			return fmt.Sprintf("COALESCE(%s, 0) != ?", col), []any{boolArg(leaf.Value)}, true
		}
		return fmt.Sprintf("(%s IS NULL OR %s != ?)", col, col), []any{scalarArg(leaf.Value)}, true
	case OpContains:
		return fmt.Sprintf("LOWER(CAST(%s AS TEXT)) LIKE ?", col), []any{likeArg(leaf.Value)}, true
	case OpNotContains:
		return fmt.Sprintf("(%s IS NULL OR LOWER(CAST(%s AS TEXT)) NOT LIKE ?)", col, col), []any{likeArg(leaf.Value)}, true
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		op := comparisonSQL(leaf.Operator)
		if number, ok := toFloat(leaf.Value); ok {
			return fmt.Sprintf("CAST(%s AS REAL) %s ?", col, op), []any{number}, true
		}
		return fmt.Sprintf("%s %s ?", col, op), []any{scalarArg(leaf.Value)}, true
	case OpIsEmpty:
		if known && field.Type.IsSelect() {
			return fmt.Sprintf("(%s IS NULL OR %s = '' OR %s = '[]')", col, col, col), nil, true
		}
		return fmt.Sprintf("(%s IS NULL OR %s = '')", col, col), nil, true
	case OpIsNotEmpty:
		if known && field.Type.IsSelect() {
			return fmt.Sprintf("(%s IS NOT NULL AND %s != '' AND %s != '[]')", col, col, col), nil, true
		}
		return fmt.Sprintf("(%s IS NOT NULL AND %s != '')", col, col), nil, true
	case OpDateEqual:
		day, ok := dayString(leaf.Value)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("DATE(%s) = ?", col), []any{day}, true
	case OpDateBefore:
		day, ok := dayString(leaf.Value)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("DATE(%s) < ?", col), []any{day}, true
	case OpDateAfter:
		day, ok := dayString(leaf.Value)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("DATE(%s) > ?", col), []any{day}, true
	case OpDateOnOrBefore:
		day, ok := dayString(leaf.Value)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("DATE(%s) <= ?", col), []any{day}, true
	case OpDateOnOrAfter:
		day, ok := dayString(leaf.Value)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("DATE(%s) >= ?", col), []any{day}, true
	case OpDateRange:
		start, end, ok := dateRangeBounds(leaf)
		if !ok {
			return "", nil, false
		}
		return fmt.Sprintf("DATE(%s) BETWEEN ? AND ?", col), []any{start, end}, true
	case OpDateToday:
		today := now.Format(time.DateOnly)
		return fmt.Sprintf("DATE(%s) = ?", col), []any{today}, true
	case OpDateNextDays:
		days, ok := toInt(leaf.Value)
		if !ok || days < 0 {
			return "", nil, false
		}
		start := now.Format(time.DateOnly)
		end := now.AddDate(0, 0, days).Format(time.DateOnly)
		return fmt.Sprintf("DATE(%s) BETWEEN ? AND ?", col), []any{start, end}, true
	default:
		// Unknown operators are tolerated as pass-through so legacy
		// persisted filters never break a query.
		return "", nil, true
	}
}

func multiSelectContains(leaf Leaf, target SQLTarget) (string, []any, bool) {
	if target.Each == nil {
		return "", nil, false
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE value = ?)", target.Each(leaf.Field)), []any{scalarArg(leaf.Value)}, true
}

func comparisonSQL(op Operator) string {
	switch op {
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	default:
		return "<="
	}
}

func scalarArg(v any) any {
	switch value := v.(type) {
	case []any:
		if len(value) == 1 {
			return scalarArg(value[0])
		}
		return fmt.Sprintf("%v", value)
	case nil:
		return ""
	default:
		return value
	}
}

func boolArg(v any) int {
	if b, ok := toBool(v); ok && b {
		return 1
	}
	return 0
}

func likeArg(v any) string {
	return "%" + strings.ToLower(fmt.Sprintf("%v", v)) + "%"
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func toBool(v any) (bool, bool) {
	switch value := v.(type) {
	case bool:
		return value, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return false, false
		}
		return parsed, true
	case float64:
		return value != 0, true
	case int:
		return value != 0, true
	default:
		return false, false
	}
}

// dayString normalizes a filter value to a calendar day; time-of-day is
// ignored for all date comparisons.
func dayString(v any) (string, bool) {
	switch value := v.(type) {
	case time.Time:
		return value.UTC().Format(time.DateOnly), true
	case string:
		raw := strings.TrimSpace(value)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC().Format(time.DateOnly), true
			}
		}
		return "", false
	default:
		return "", false
	}
}

func dateRangeBounds(leaf Leaf) (string, string, bool) {
	if m, ok := leaf.Value.(map[string]any); ok {
		start, okStart := dayString(m["start"])
		end, okEnd := dayString(m["end"])
		if okStart && okEnd {
			return start, end, true
		}
		return "", "", false
	}
	start, okStart := dayString(leaf.Value)
	end, okEnd := dayString(leaf.Value2)
	if okStart && okEnd {
		return start, end, true
	}
	return "", "", false
}
