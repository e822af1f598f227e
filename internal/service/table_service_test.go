package service

import (
	"context"
	"errors"
	"testing"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func TestCreateField_Validation(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	tables := NewTableService(env.store)
	table, err := tables.CreateTable(ctx, "Campaigns")
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	budget, err := tables.CreateField(ctx, models.Field{TableID: table.ID, Name: "budget", Type: models.FieldTypeNumber})
	if err != nil {
		t.Fatalf("CreateField() error = %v", err)
	}
	if budget.ID == "" {
		t.Fatalf("created field should carry an id")
	}

	if _, err := tables.CreateField(ctx, models.Field{TableID: table.ID, Name: "Budget", Type: models.FieldTypeText}); !errors.Is(err, ErrFieldExists) {
		t.Fatalf("duplicate name check is case-insensitive: err = %v", err)
	}
	if _, err := tables.CreateField(ctx, models.Field{TableID: table.ID, Name: "  ", Type: models.FieldTypeText}); !errors.Is(err, ErrInvalidFieldName) {
		t.Fatalf("blank field name: err = %v", err)
	}
	if _, err := tables.CreateField(ctx, models.Field{TableID: table.ID, Name: "x", Type: "hologram"}); !errors.Is(err, ErrInvalidFieldType) {
		t.Fatalf("unknown field type: err = %v", err)
	}
}

func TestCreateField_FormulaCompiledAgainstSiblings(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	tables := NewTableService(env.store)
	table, err := tables.CreateTable(ctx, "Campaigns")
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	if _, err := tables.CreateField(ctx, models.Field{TableID: table.ID, Name: "budget", Type: models.FieldTypeNumber}); err != nil {
		t.Fatalf("CreateField() error = %v", err)
	}

	_, err = tables.CreateField(ctx, models.Field{
		TableID: table.ID, Name: "margin", Type: models.FieldTypeFormula,
		Options: models.FieldOptions{Expression: `row["budget"] * 0.2`},
	})
	if err != nil {
		t.Fatalf("valid formula should save: %v", err)
	}

	_, err = tables.CreateField(ctx, models.Field{
		TableID: table.ID, Name: "broken", Type: models.FieldTypeFormula,
		Options: models.FieldOptions{Expression: `row["ghost"] * 2.0`},
	})
	if err == nil {
		t.Fatalf("formula over an unknown field must be rejected at save time")
	}

	// Formulas cannot reference other formulas.
	_, err = tables.CreateField(ctx, models.Field{
		TableID: table.ID, Name: "double_margin", Type: models.FieldTypeFormula,
		Options: models.FieldOptions{Expression: `row["margin"] * 2.0`},
	})
	if err == nil {
		t.Fatalf("formula over a computed sibling must be rejected")
	}
}

func TestUpdateFieldOptions_RecompilesFormula(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	tables := NewTableService(env.store)
	table, err := tables.CreateTable(ctx, "Campaigns")
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	if _, err := tables.CreateField(ctx, models.Field{TableID: table.ID, Name: "budget", Type: models.FieldTypeNumber}); err != nil {
		t.Fatalf("CreateField() error = %v", err)
	}
	margin, err := tables.CreateField(ctx, models.Field{
		TableID: table.ID, Name: "margin", Type: models.FieldTypeFormula,
		Options: models.FieldOptions{Expression: `row["budget"] * 0.2`},
	})
	if err != nil {
		t.Fatalf("CreateField() error = %v", err)
	}

	if err := tables.UpdateFieldOptions(ctx, margin.ID, models.FieldOptions{Expression: `row["budget"] * 0.3`}); err != nil {
		t.Fatalf("valid expression update should save: %v", err)
	}
	if err := tables.UpdateFieldOptions(ctx, margin.ID, models.FieldOptions{Expression: `row["ghost"]`}); err == nil {
		t.Fatalf("invalid expression update must be rejected")
	}
	// The field being updated is excluded from its own sibling set.
	if err := tables.UpdateFieldOptions(ctx, margin.ID, models.FieldOptions{Expression: `row["margin"]`}); err == nil {
		t.Fatalf("self-reference must be rejected")
	}
}
