package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/google/cel-go/common/types/ref"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

// RowMatcher evaluates a filter tree against in-memory rows. It is the
// authoritative check when the SQL translation of a tree is inexact
// (computed fields, operators SQL cannot express).
type RowMatcher struct {
	program    cel.Program
	dateFields map[string]struct{}
}

// CompileMatcher builds a matcher for the tree. A nil matcher is
// returned for an empty tree and matches every row.
func CompileMatcher(n Node, fields []models.Field) (*RowMatcher, error) {
	return CompileMatcherAt(n, fields, time.Now().UTC())
}

func CompileMatcherAt(n Node, fields []models.Field, now time.Time) (*RowMatcher, error) {
	if IsEmpty(n) {
		return nil, nil
	}

	meta := fieldsByName(fields)
	expr := nodeToCEL(n, meta, now)

	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("row", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build CEL env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile row filter: %w", issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build row filter program: %w", err)
	}

	dateFields := make(map[string]struct{})
	for _, f := range fields {
		if f.Type == models.FieldTypeDate {
			dateFields[f.Name] = struct{}{}
		}
	}
	return &RowMatcher{program: program, dateFields: dateFields}, nil
}

func (m *RowMatcher) Matches(row map[string]any) (bool, error) {
	if m == nil {
		return true, nil
	}
	out, _, err := m.program.Eval(map[string]any{
		"row": m.normalizeRow(row),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate row filter: %w", err)
	}
	return matcherBool(out)
}

// normalizeRow canonicalizes date values to RFC 3339 so the generated
// timestamp() comparisons can parse them regardless of stored layout.
func (m *RowMatcher) normalizeRow(row map[string]any) map[string]any {
	if len(m.dateFields) == 0 {
		return row
	}
	normalized := make(map[string]any, len(row))
	for key, value := range row {
		if _, ok := m.dateFields[key]; ok {
			if t, ok := parseDateValue(value); ok {
				normalized[key] = t.UTC().Format(time.RFC3339)
				continue
			}
		}
		normalized[key] = value
	}
	return normalized
}

func matcherBool(v ref.Val) (bool, error) {
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("row filter must return bool, got %T", v.Value())
	}
	return b, nil
}

func nodeToCEL(n Node, meta map[string]models.Field, now time.Time) string {
	switch v := n.(type) {
	case nil:
		return "true"
	case Leaf:
		return leafToCEL(v, meta, now)
	case Group:
		parts := make([]string, 0, len(v.Children))
		for _, child := range v.Children {
			parts = append(parts, nodeToCEL(child, meta, now))
		}
		if len(parts) == 0 {
			return "true"
		}
		joiner := " && "
		if v.ConditionType == models.ConditionOr {
			joiner = " || "
		}
		return "(" + strings.Join(parts, joiner) + ")"
	default:
		return "true"
	}
}

func leafToCEL(leaf Leaf, meta map[string]models.Field, now time.Time) string {
	field, known := meta[leaf.Field]
	key := celString(leaf.Field)
	access := fmt.Sprintf("row[%s]", key)
	present := fmt.Sprintf("%s in row", key)

	switch leaf.Operator {
	case OpEqual:
		if known && field.Type == models.FieldTypeMultiSelect {
			return fmt.Sprintf("%s && %s.exists(v, v == %s)", present, access, celLiteral(scalarArg(leaf.Value)))
		}
		if known && field.Type == models.FieldTypeCheckbox {
			b, _ := toBool(leaf.Value)
			return fmt.Sprintf("(%s ? %s : false) == %s", present, access, celLiteral(b))
		}
		return fmt.Sprintf("%s && %s == %s", present, access, celLiteral(scalarArg(leaf.Value)))
	case OpNotEqual:
		if known && field.Type == models.FieldTypeMultiSelect {
			return fmt.Sprintf("!(%s) || !%s.exists(v, v == %s)", present, access, celLiteral(scalarArg(leaf.Value)))
		}
		return fmt.Sprintf("!(%s) || %s != %s", present, access, celLiteral(scalarArg(leaf.Value)))
	case OpContains:
		return fmt.Sprintf("%s && string(%s).matches(%s)", present, access, celString(containsPattern(leaf.Value)))
	case OpNotContains:
		return fmt.Sprintf("!(%s) || !string(%s).matches(%s)", present, access, celString(containsPattern(leaf.Value)))
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		op := comparisonSQL(leaf.Operator)
		if number, ok := toFloat(leaf.Value); ok {
			return fmt.Sprintf("%s && double(%s) %s %s", present, access, op, celDouble(number))
		}
		return fmt.Sprintf("%s && string(%s) %s %s", present, access, op, celLiteral(scalarArg(leaf.Value)))
	case OpIsEmpty:
		if known && field.Type.IsSelect() {
			return fmt.Sprintf("!(%s) || %s == null || size(%s) == 0", present, access, access)
		}
		return fmt.Sprintf("!(%s) || %s == null || %s == \"\"", present, access, access)
	case OpIsNotEmpty:
		if known && field.Type.IsSelect() {
			return fmt.Sprintf("%s && %s != null && size(%s) != 0", present, access, access)
		}
		return fmt.Sprintf("%s && %s != null && %s != \"\"", present, access, access)
	case OpDateEqual:
		return dayWindowCEL(present, access, leaf.Value, 1)
	case OpDateBefore:
		day, ok := dayStart(leaf.Value)
		if !ok {
			return "true"
		}
		return fmt.Sprintf("%s && timestamp(string(%s)) < timestamp(%s)", present, access, celString(day))
	case OpDateAfter:
		// Strictly after the day means on or after the next midnight.
		next, ok := dayStartOffset(leaf.Value, 1)
		if !ok {
			return "true"
		}
		return fmt.Sprintf("%s && timestamp(string(%s)) >= timestamp(%s)", present, access, celString(next))
	case OpDateOnOrBefore:
		next, ok := dayStartOffset(leaf.Value, 1)
		if !ok {
			return "true"
		}
		return fmt.Sprintf("%s && timestamp(string(%s)) < timestamp(%s)", present, access, celString(next))
	case OpDateOnOrAfter:
		day, ok := dayStart(leaf.Value)
		if !ok {
			return "true"
		}
		return fmt.Sprintf("%s && timestamp(string(%s)) >= timestamp(%s)", present, access, celString(day))
	case OpDateRange:
		start, end, ok := dateRangeBounds(leaf)
		if !ok {
			return "true"
		}
		startTS, _ := dayStart(start)
		endNext, _ := dayStartOffset(end, 1)
		return fmt.Sprintf("%s && timestamp(string(%s)) >= timestamp(%s) && timestamp(string(%s)) < timestamp(%s)",
			present, access, celString(startTS), access, celString(endNext))
	case OpDateToday:
		today := now.Format(time.DateOnly)
		return dayWindowCEL(present, access, today, 1)
	case OpDateNextDays:
		days, ok := toInt(leaf.Value)
		if !ok || days < 0 {
			return "true"
		}
		today := now.Format(time.DateOnly)
		return dayWindowCEL(present, access, today, days+1)
	default:
		return "true"
	}
}

// dayWindowCEL matches timestamps in [day, day+span) where span is a
// whole number of days.
func dayWindowCEL(present string, access string, value any, span int) string {
	start, ok := dayStart(value)
	if !ok {
		return "true"
	}
	end, _ := dayStartOffset(value, span)
	return fmt.Sprintf("%s && timestamp(string(%s)) >= timestamp(%s) && timestamp(string(%s)) < timestamp(%s)",
		present, access, celString(start), access, celString(end))
}

func dayStart(v any) (string, bool) {
	return dayStartOffset(v, 0)
}

func dayStartOffset(v any, days int) (string, bool) {
	day, ok := dayString(v)
	if !ok {
		return "", false
	}
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return "", false
	}
	return t.AddDate(0, 0, days).UTC().Format(time.RFC3339), true
}

func parseDateValue(v any) (time.Time, bool) {
	switch value := v.(type) {
	case time.Time:
		return value, true
	case string:
		raw := strings.TrimSpace(value)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly, "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func containsPattern(v any) string {
	return "(?is).*" + escapeRegexMeta(fmt.Sprintf("%v", v)) + ".*"
}

func escapeRegexMeta(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func celString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// celDouble renders a threshold so CEL parses it as a double literal.
// Integral values need the trailing .0 or they parse as int and the
// comparison against double(...) has no overload.
func celDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func celLiteral(v any) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(value)
	case string:
		return celString(value)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'g', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return celString(fmt.Sprintf("%v", value))
	}
}
