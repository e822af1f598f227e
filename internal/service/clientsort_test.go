package service

import (
	"testing"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func sortTestFields() []models.Field {
	return []models.Field{
		{Name: "status", Type: models.FieldTypeSingleSelect, Options: models.FieldOptions{Choices: []string{"planned", "active", "done"}}},
		{Name: "tags", Type: models.FieldTypeMultiSelect, Options: models.FieldOptions{Choices: []string{"launch", "retention"}}},
		{Name: "budget", Type: models.FieldTypeNumber},
		{Name: "name", Type: models.FieldTypeText},
		{Name: "margin", Type: models.FieldTypeFormula, Options: models.FieldOptions{Expression: `row["budget"] * 0.2`}},
	}
}

func rowWith(id string, data map[string]any) models.Row {
	return models.Row{ID: id, Data: data}
}

func TestShouldUseClientSideSorting(t *testing.T) {
	fields := sortTestFields()
	cases := []struct {
		name  string
		sorts []models.ViewSort
		want  bool
	}{
		{"no sorts", nil, false},
		{"text sort", []models.ViewSort{{FieldName: "name", Direction: models.SortAsc}}, false},
		{"number sort", []models.ViewSort{{FieldName: "budget", Direction: models.SortDesc}}, false},
		{"single select with choices", []models.ViewSort{{FieldName: "status", Direction: models.SortAsc}}, true},
		{"multi select", []models.ViewSort{{FieldName: "tags", Direction: models.SortAsc}}, true},
		{"computed field", []models.ViewSort{{FieldName: "margin", Direction: models.SortAsc}}, true},
		{"unknown field ignored", []models.ViewSort{{FieldName: "ghost", Direction: models.SortAsc}}, false},
		{"mixed set triggers", []models.ViewSort{
			{FieldName: "name", Direction: models.SortAsc},
			{FieldName: "status", Direction: models.SortAsc},
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldUseClientSideSorting(tc.sorts, fields); got != tc.want {
				t.Fatalf("ShouldUseClientSideSorting() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSortRecords_SingleSelectChoiceOrder(t *testing.T) {
	rows := []models.Row{
		rowWith("1", map[string]any{"status": "done"}),
		rowWith("2", map[string]any{"status": "planned"}),
		rowWith("3", map[string]any{"status": "active"}),
	}
	SortRecords(rows, []models.ViewSort{{FieldName: "status", Direction: models.SortAsc}}, sortTestFields())

	want := []string{"2", "3", "1"}
	for i, id := range want {
		if rows[i].ID != id {
			t.Fatalf("choice order wrong at %d: got %s want %s (%+v)", i, rows[i].ID, id, rows)
		}
	}
}

func TestSortRecords_DescendingReversesChoiceOrder(t *testing.T) {
	rows := []models.Row{
		rowWith("1", map[string]any{"status": "planned"}),
		rowWith("2", map[string]any{"status": "done"}),
	}
	SortRecords(rows, []models.ViewSort{{FieldName: "status", Direction: models.SortDesc}}, sortTestFields())
	if rows[0].ID != "2" || rows[1].ID != "1" {
		t.Fatalf("descending select sort wrong: %+v", rows)
	}
}

func TestSortRecords_UnknownChoicesSortLast(t *testing.T) {
	rows := []models.Row{
		rowWith("1", map[string]any{"status": "zzz"}),
		rowWith("2", map[string]any{"status": "done"}),
		rowWith("3", map[string]any{"status": "aaa"}),
	}
	SortRecords(rows, []models.ViewSort{{FieldName: "status", Direction: models.SortAsc}}, sortTestFields())
	if rows[0].ID != "2" {
		t.Fatalf("configured choice should lead: %+v", rows)
	}
	// Unknowns rank after configured choices, lexically among themselves.
	if rows[1].ID != "3" || rows[2].ID != "1" {
		t.Fatalf("unknown choices should sort lexically after: %+v", rows)
	}
}

func TestSortRecords_MultiSelectUsesFirstValue(t *testing.T) {
	rows := []models.Row{
		rowWith("1", map[string]any{"tags": []any{"retention", "launch"}}),
		rowWith("2", map[string]any{"tags": []any{"launch"}}),
	}
	SortRecords(rows, []models.ViewSort{{FieldName: "tags", Direction: models.SortAsc}}, sortTestFields())
	if rows[0].ID != "2" || rows[1].ID != "1" {
		t.Fatalf("multi-select should order by leading value: %+v", rows)
	}
}

func TestSortRecords_NilRanksLast(t *testing.T) {
	rows := []models.Row{
		rowWith("1", map[string]any{}),
		rowWith("2", map[string]any{"budget": 5.0}),
		rowWith("3", map[string]any{"budget": 1.0}),
	}
	SortRecords(rows, []models.ViewSort{{FieldName: "budget", Direction: models.SortAsc}}, sortTestFields())
	if rows[0].ID != "3" || rows[1].ID != "2" || rows[2].ID != "1" {
		t.Fatalf("missing value should rank last: %+v", rows)
	}
}

func TestSortRecords_MultiKeyAndStability(t *testing.T) {
	rows := []models.Row{
		rowWith("1", map[string]any{"status": "active", "budget": 100.0}),
		rowWith("2", map[string]any{"status": "active", "budget": 50.0}),
		rowWith("3", map[string]any{"status": "planned", "budget": 200.0}),
		rowWith("4", map[string]any{"status": "active", "budget": 50.0}),
	}
	SortRecords(rows, []models.ViewSort{
		{FieldName: "status", Direction: models.SortAsc},
		{FieldName: "budget", Direction: models.SortAsc},
	}, sortTestFields())

	want := []string{"3", "2", "4", "1"}
	for i, id := range want {
		if rows[i].ID != id {
			t.Fatalf("multi-key order wrong at %d: got %s want %s", i, rows[i].ID, id)
		}
	}
}

func TestSortRecords_TextIsCaseInsensitive(t *testing.T) {
	rows := []models.Row{
		rowWith("1", map[string]any{"name": "beta"}),
		rowWith("2", map[string]any{"name": "Alpha"}),
	}
	SortRecords(rows, []models.ViewSort{{FieldName: "name", Direction: models.SortAsc}}, sortTestFields())
	if rows[0].ID != "2" {
		t.Fatalf("text sort should ignore case: %+v", rows)
	}
}
