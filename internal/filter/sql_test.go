package filter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func testTarget() SQLTarget {
	return SQLTarget{
		Column: func(field string) string {
			return fmt.Sprintf("JSON_EXTRACT(data_json, '$.%s')", field)
		},
		Each: func(field string) string {
			return fmt.Sprintf("json_each(data_json, '$.%s')", field)
		},
	}
}

func testFields() []models.Field {
	return []models.Field{
		{Name: "status", Type: models.FieldTypeSingleSelect, Options: models.FieldOptions{Choices: []string{"active", "paused"}}},
		{Name: "tags", Type: models.FieldTypeMultiSelect},
		{Name: "budget", Type: models.FieldTypeNumber},
		{Name: "approved", Type: models.FieldTypeCheckbox},
		{Name: "launch_date", Type: models.FieldTypeDate},
		{Name: "name", Type: models.FieldTypeText},
		{Name: "total", Type: models.FieldTypeFormula, Options: models.FieldOptions{Expression: `row["budget"] * 2.0`}},
	}
}

func TestToSQL_Equal(t *testing.T) {
	tree := Leaf{Field: "status", Operator: OpEqual, Value: "active"}
	clause, args, exact := ToSQL(tree, testFields(), testTarget())
	if !exact {
		t.Fatalf("expected exact translation")
	}
	if clause != "JSON_EXTRACT(data_json, '$.status') = ?" {
		t.Fatalf("unexpected clause %q", clause)
	}
	if len(args) != 1 || args[0] != "active" {
		t.Fatalf("unexpected args %+v", args)
	}
}

func TestToSQL_MultiSelectUsesJSONEach(t *testing.T) {
	tree := Leaf{Field: "tags", Operator: OpEqual, Value: "launch"}
	clause, args, exact := ToSQL(tree, testFields(), testTarget())
	if !exact {
		t.Fatalf("expected exact translation")
	}
	if !strings.Contains(clause, "EXISTS (SELECT 1 FROM json_each(data_json, '$.tags')") {
		t.Fatalf("expected json_each membership test, got %q", clause)
	}
	if len(args) != 1 || args[0] != "launch" {
		t.Fatalf("unexpected args %+v", args)
	}
}

func TestToSQL_CheckboxCoalesces(t *testing.T) {
	tree := Leaf{Field: "approved", Operator: OpEqual, Value: true}
	clause, args, exact := ToSQL(tree, testFields(), testTarget())
	if !exact {
		t.Fatalf("expected exact translation")
	}
	if !strings.HasPrefix(clause, "COALESCE(") {
		t.Fatalf("checkbox equality should COALESCE missing values, got %q", clause)
	}
	if len(args) != 1 || args[0] != 1 {
		t.Fatalf("unexpected args %+v", args)
	}
}

func TestToSQL_NumericComparisonCasts(t *testing.T) {
	tree := Leaf{Field: "budget", Operator: OpGreaterThan, Value: 1000}
	clause, args, exact := ToSQL(tree, testFields(), testTarget())
	if !exact {
		t.Fatalf("expected exact translation")
	}
	if !strings.Contains(clause, "CAST(") || !strings.Contains(clause, "AS REAL") {
		t.Fatalf("numeric comparison should CAST, got %q", clause)
	}
	if len(args) != 1 || args[0] != float64(1000) {
		t.Fatalf("unexpected args %+v", args)
	}
}

func TestToSQL_ContainsIsCaseInsensitive(t *testing.T) {
	tree := Leaf{Field: "name", Operator: OpContains, Value: "Q3 Launch"}
	clause, args, exact := ToSQL(tree, testFields(), testTarget())
	if !exact {
		t.Fatalf("expected exact translation")
	}
	if !strings.Contains(clause, "LOWER(") || !strings.Contains(clause, "LIKE ?") {
		t.Fatalf("unexpected clause %q", clause)
	}
	if args[0] != "%q3 launch%" {
		t.Fatalf("pattern should be lowercased and wrapped, got %v", args[0])
	}
}

func TestToSQL_ComputedFieldIsInexact(t *testing.T) {
	tree := Leaf{Field: "total", Operator: OpGreaterThan, Value: 10}
	clause, _, exact := ToSQL(tree, testFields(), testTarget())
	if exact {
		t.Fatalf("computed field must mark the translation inexact")
	}
	if clause != "" {
		t.Fatalf("computed field should widen to match-all, got %q", clause)
	}
}

func TestToSQL_AndGroupDropsInexactChildOnly(t *testing.T) {
	tree := Group{
		ConditionType: models.ConditionAnd,
		Children: []Node{
			Leaf{Field: "status", Operator: OpEqual, Value: "active"},
			Leaf{Field: "total", Operator: OpGreaterThan, Value: 10},
		},
	}
	clause, args, exact := ToSQL(tree, testFields(), testTarget())
	if exact {
		t.Fatalf("group with computed child must be inexact")
	}
	if !strings.Contains(clause, "'$.status'") {
		t.Fatalf("exact sibling should still prefilter, got %q", clause)
	}
	if len(args) != 1 {
		t.Fatalf("unexpected args %+v", args)
	}
}

func TestToSQL_OrGroupWithInexactChildIsVacuous(t *testing.T) {
	tree := Group{
		ConditionType: models.ConditionOr,
		Children: []Node{
			Leaf{Field: "status", Operator: OpEqual, Value: "active"},
			Leaf{Field: "total", Operator: OpGreaterThan, Value: 10},
		},
	}
	clause, _, exact := ToSQL(tree, testFields(), testTarget())
	if exact {
		t.Fatalf("OR with unconstrained branch must be inexact")
	}
	if clause != "" {
		t.Fatalf("OR with unconstrained branch must not constrain SQL, got %q", clause)
	}
}

func TestToSQL_DateOperators(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	clause, args, exact := ToSQLAt(Leaf{Field: "launch_date", Operator: OpDateEqual, Value: "2026-03-01T15:30:00Z"}, testFields(), testTarget(), now)
	if !exact || !strings.HasPrefix(clause, "DATE(") {
		t.Fatalf("unexpected date_equal translation: %q exact=%v", clause, exact)
	}
	if args[0] != "2026-03-01" {
		t.Fatalf("time of day should be ignored, got %v", args[0])
	}

	clause, args, exact = ToSQLAt(Leaf{Field: "launch_date", Operator: OpDateToday}, testFields(), testTarget(), now)
	if !exact || args[0] != "2026-03-14" {
		t.Fatalf("date_today should use the injected clock: %q %v", clause, args)
	}

	_, args, exact = ToSQLAt(Leaf{Field: "launch_date", Operator: OpDateNextDays, Value: 7}, testFields(), testTarget(), now)
	if !exact || args[0] != "2026-03-14" || args[1] != "2026-03-21" {
		t.Fatalf("date_next_days bounds wrong: %v", args)
	}

	_, args, exact = ToSQLAt(Leaf{Field: "launch_date", Operator: OpDateRange, Value: map[string]any{"start": "2026-01-01", "end": "2026-01-31"}}, testFields(), testTarget(), now)
	if !exact || args[0] != "2026-01-01" || args[1] != "2026-01-31" {
		t.Fatalf("date_range bounds wrong: %v", args)
	}

	_, _, exact = ToSQLAt(Leaf{Field: "launch_date", Operator: OpDateEqual, Value: "not a date"}, testFields(), testTarget(), now)
	if exact {
		t.Fatalf("unparseable date value must degrade to inexact")
	}
}

func TestToSQL_UnknownOperatorPassesThrough(t *testing.T) {
	clause, _, exact := ToSQL(Leaf{Field: "status", Operator: "frobnicate", Value: "x"}, testFields(), testTarget())
	if !exact || clause != "" {
		t.Fatalf("unknown operator should be tolerated as pass-through: %q exact=%v", clause, exact)
	}
}

func TestToSQL_IsEmptySelect(t *testing.T) {
	clause, _, exact := ToSQL(Leaf{Field: "tags", Operator: OpIsEmpty}, testFields(), testTarget())
	if !exact {
		t.Fatalf("expected exact translation")
	}
	if !strings.Contains(clause, "= '[]'") {
		t.Fatalf("select is_empty should also match the empty list, got %q", clause)
	}
}
