package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SophieEDesign/marketinghub/internal/db"
	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/richtext"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

type testEnv struct {
	store     *store.SQLStore
	broadcast *filter.Broadcast
	records   *RecordService
	pages     *PageService
	views     *ViewService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := store.New(database)
	b := filter.NewBroadcast()
	return &testEnv{
		store:     s,
		broadcast: b,
		records:   NewRecordService(s, b),
		pages:     NewPageService(s, b, richtext.NewService()),
		views:     NewViewService(s),
	}
}

// createCampaignTable sets up the schema most service tests share: a
// choice-ordered select, a multi select, plain text and number fields,
// and one formula field derived from the budget.
func (e *testEnv) createCampaignTable(t *testing.T, ctx context.Context) models.Table {
	t.Helper()
	table, err := e.store.CreateTable(ctx, "Campaigns")
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	fields := []models.Field{
		{TableID: table.ID, Name: "name", Type: models.FieldTypeText, OrderIndex: 0},
		{TableID: table.ID, Name: "status", Type: models.FieldTypeSingleSelect, OrderIndex: 1,
			Options: models.FieldOptions{Choices: []string{"planned", "active", "done"}}},
		{TableID: table.ID, Name: "channel", Type: models.FieldTypeText, OrderIndex: 2},
		{TableID: table.ID, Name: "tags", Type: models.FieldTypeMultiSelect, OrderIndex: 3,
			Options: models.FieldOptions{Choices: []string{"launch", "retention"}}},
		{TableID: table.ID, Name: "budget", Type: models.FieldTypeNumber, OrderIndex: 4},
		{TableID: table.ID, Name: "margin", Type: models.FieldTypeFormula, OrderIndex: 5,
			Options: models.FieldOptions{Expression: `row["budget"] * 0.2`}},
	}
	for _, f := range fields {
		if _, err := e.store.CreateField(ctx, f); err != nil {
			t.Fatalf("create field %s: %v", f.Name, err)
		}
	}
	return table
}

func (e *testEnv) seedRow(t *testing.T, ctx context.Context, tableID string, data map[string]any) models.Row {
	t.Helper()
	row, err := e.store.CreateRow(ctx, tableID, data)
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}
	return row
}

func rowNames(rows []models.Row) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		name, _ := r.Data["name"].(string)
		names = append(names, name)
	}
	return names
}

func adminContext() MutationContext {
	return MutationContext{Role: models.RoleAdmin}
}
