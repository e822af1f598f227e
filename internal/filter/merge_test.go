package filter

import (
	"testing"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func TestMergeFilters_BaseAlwaysWins(t *testing.T) {
	base := []Config{{Field: "status", Operator: OpEqual, Value: "active"}}
	blockFilters := []Config{
		{Field: "status", Operator: OpEqual, Value: "archived"},
		{Field: "channel", Operator: OpEqual, Value: "email"},
	}
	temporary := []Config{
		{Field: "channel", Operator: OpEqual, Value: "social"},
		{Field: "owner", Operator: OpEqual, Value: "sam"},
	}

	merged := MergeFilters(base, blockFilters, temporary)
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged filters, got %d: %+v", len(merged), merged)
	}
	if merged[0].Field != "status" || merged[0].Value != "active" {
		t.Fatalf("base filter must survive: %+v", merged[0])
	}
	if merged[1].Field != "channel" || merged[1].Value != "email" {
		t.Fatalf("block filter should beat temporary for channel: %+v", merged[1])
	}
	if merged[2].Field != "owner" || merged[2].Value != "sam" {
		t.Fatalf("temporary filter on untouched field should pass: %+v", merged[2])
	}
}

func TestMergeFilters_EmptySources(t *testing.T) {
	merged := MergeFilters(nil, nil, nil)
	if len(merged) != 0 {
		t.Fatalf("expected empty merge, got %+v", merged)
	}
}

func TestMergeQuickFilters_UserOverridesDefaults(t *testing.T) {
	defaults := []Config{
		{Field: "status", Operator: OpEqual, Value: "active"},
		{Field: "channel", Operator: OpEqual, Value: "email"},
	}
	user := []Config{
		{Field: "status", Operator: OpEqual, Value: "paused"},
	}

	merged := MergeQuickFilters(defaults, user)
	if len(merged) != 2 {
		t.Fatalf("expected 2 filters, got %d: %+v", len(merged), merged)
	}
	if merged[0].Field != "channel" {
		t.Fatalf("untouched default should remain: %+v", merged[0])
	}
	if merged[1].Field != "status" || merged[1].Value != "paused" {
		t.Fatalf("user filter should replace the status default: %+v", merged[1])
	}
}

func TestMergeQuickFilters_NoUserFilters(t *testing.T) {
	defaults := []Config{{Field: "status", Operator: OpEqual, Value: "active"}}
	merged := MergeQuickFilters(defaults, nil)
	if len(merged) != 1 || merged[0].Value != "active" {
		t.Fatalf("defaults should pass through untouched: %+v", merged)
	}
}

func TestDeriveDefaultValues_EqualityOnly(t *testing.T) {
	fields := []models.Field{
		{Name: "status", Type: models.FieldTypeSingleSelect},
		{Name: "budget", Type: models.FieldTypeNumber},
		{Name: "total", Type: models.FieldTypeFormula, Options: models.FieldOptions{Expression: `row["budget"] * 2.0`}},
	}
	active := []Config{
		{Field: "status", Operator: OpEqual, Value: "active"},
		{Field: "budget", Operator: OpGreaterThan, Value: 100},
		{Field: "total", Operator: OpEqual, Value: 42},
	}

	defaults := DeriveDefaultValues(active, fields)
	if len(defaults) != 1 {
		t.Fatalf("expected only the status default, got %+v", defaults)
	}
	if defaults["status"] != "active" {
		t.Fatalf("unexpected status default %v", defaults["status"])
	}
}

func TestDeriveDefaultValues_SingleElementArray(t *testing.T) {
	fields := []models.Field{{Name: "tags", Type: models.FieldTypeMultiSelect}}
	active := []Config{
		{Field: "tags", Operator: OpEqual, Value: []any{"launch"}},
	}
	defaults := DeriveDefaultValues(active, fields)
	if defaults["tags"] != "launch" {
		t.Fatalf("single-element array should unwrap, got %+v", defaults)
	}

	active = []Config{
		{Field: "tags", Operator: OpEqual, Value: []any{"launch", "retention"}},
	}
	defaults = DeriveDefaultValues(active, fields)
	if _, ok := defaults["tags"]; ok {
		t.Fatalf("multi-element array must not derive a default: %+v", defaults)
	}
}

func TestDeriveDefaultValues_ConflictDropsField(t *testing.T) {
	fields := []models.Field{{Name: "status", Type: models.FieldTypeSingleSelect}}
	active := []Config{
		{Field: "status", Operator: OpEqual, Value: "active"},
		{Field: "status", Operator: OpEqual, Value: "paused"},
	}
	defaults := DeriveDefaultValues(active, fields)
	if _, ok := defaults["status"]; ok {
		t.Fatalf("conflicting equality filters must drop the field: %+v", defaults)
	}
}
