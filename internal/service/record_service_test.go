package service

import (
	"context"
	"errors"
	"testing"

	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/perm"
)

func seedStandardCampaigns(t *testing.T, env *testEnv, ctx context.Context, tableID string) {
	t.Helper()
	env.seedRow(t, ctx, tableID, map[string]any{"name": "Spring Launch", "status": "active", "channel": "email", "budget": 1000.0})
	env.seedRow(t, ctx, tableID, map[string]any{"name": "Summer Teaser", "status": "planned", "channel": "social", "budget": 400.0})
	env.seedRow(t, ctx, tableID, map[string]any{"name": "Winter Recap", "status": "done", "channel": "email", "budget": 2500.0})
	env.seedRow(t, ctx, tableID, map[string]any{"name": "Fall Push", "status": "active", "channel": "social", "budget": 150.0})
}

func TestListRecords_BaseFilters(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	rows, err := env.records.ListRecords(ctx, ListRecordsInput{
		TableID:     table.ID,
		BaseFilters: []filter.Config{{Field: "status", Operator: filter.OpEqual, Value: "active"}},
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 active rows, got %v", rowNames(rows))
	}
	for _, row := range rows {
		if row.Data["status"] != "active" {
			t.Fatalf("non-active row leaked through: %v", row.Data)
		}
	}
}

func TestListRecords_ViewFilters(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	view, err := env.views.CreateView(ctx, table.ID, "Email campaigns", models.ViewTypeGrid)
	if err != nil {
		t.Fatalf("CreateView() error = %v", err)
	}
	err = env.views.SaveFilters(ctx, view.ID, nil, []models.ViewFilter{
		{FieldName: "channel", Operator: string(filter.OpEqual), Value: "email"},
	})
	if err != nil {
		t.Fatalf("SaveFilters() error = %v", err)
	}

	rows, err := env.records.ListRecords(ctx, ListRecordsInput{ViewID: view.ID})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 email rows, got %v", rowNames(rows))
	}
}

func TestListRecords_QuickFiltersReplaceViewDefaults(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	view, err := env.views.CreateView(ctx, table.ID, "Active", models.ViewTypeGrid)
	if err != nil {
		t.Fatalf("CreateView() error = %v", err)
	}
	err = env.views.SaveFilters(ctx, view.ID, nil, []models.ViewFilter{
		{FieldName: "status", Operator: string(filter.OpEqual), Value: "active"},
	})
	if err != nil {
		t.Fatalf("SaveFilters() error = %v", err)
	}

	rows, err := env.records.ListRecords(ctx, ListRecordsInput{
		ViewID:       view.ID,
		QuickFilters: []filter.Config{{Field: "status", Operator: filter.OpEqual, Value: "done"}},
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Data["name"] != "Winter Recap" {
		t.Fatalf("quick filter should replace the view default, got %v", rowNames(rows))
	}
}

func TestListRecords_BroadcastNarrowsTargets(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	env.broadcast.Update("page-1", filter.BlockState{
		BlockID:   "filter-block",
		TargetAll: true,
		TableID:   table.ID,
		Filters:   []filter.Config{{Field: "channel", Operator: filter.OpEqual, Value: "social"}},
	})

	rows, err := env.records.ListRecords(ctx, ListRecordsInput{
		TableID: table.ID,
		PageID:  "page-1",
		BlockID: "grid-block",
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 social rows, got %v", rowNames(rows))
	}

	// The same read without page context sees everything.
	rows, err = env.records.ListRecords(ctx, ListRecordsInput{TableID: table.ID})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("page-free read must not be narrowed, got %v", rowNames(rows))
	}
}

func TestListRecords_BroadcastOrGroupKeepsStructure(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	page, err := env.pages.CreatePage(ctx, "Dashboard")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	_, err = env.pages.AddBlock(ctx, models.Block{
		PageID: page.ID,
		Type:   "filter",
		Config: map[string]any{
			"table_id":       table.ID,
			"target_blocks":  "all",
			"condition_type": "OR",
			"filters": []any{
				map[string]any{"field": "channel", "operator": filter.OpEqual, "value": "email"},
				map[string]any{"field": "status", "operator": filter.OpEqual, "value": "planned"},
			},
		},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}

	// email OR planned matches three campaigns; the flat per-field
	// collapse would AND the two conditions and match none.
	rows, err := env.records.ListRecords(ctx, ListRecordsInput{
		TableID: table.ID,
		PageID:  page.ID,
		BlockID: "grid-block",
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows from the OR emission, got %v", rowNames(rows))
	}
}

func TestListRecords_BaseFiltersBeatTemporary(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	rows, err := env.records.ListRecords(ctx, ListRecordsInput{
		TableID:          table.ID,
		BaseFilters:      []filter.Config{{Field: "status", Operator: filter.OpEqual, Value: "active"}},
		TemporaryFilters: []filter.Config{{Field: "status", Operator: filter.OpEqual, Value: "done"}},
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("hard-coded block filter must win over temporary, got %v", rowNames(rows))
	}
	for _, row := range rows {
		if row.Data["status"] != "active" {
			t.Fatalf("temporary filter overrode the base filter: %v", row.Data)
		}
	}
}

func TestListRecords_FormulaFilterFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	// margin is budget * 0.2: only the 2500 and 1000 budgets clear 150.
	rows, err := env.records.ListRecords(ctx, ListRecordsInput{
		TableID:     table.ID,
		BaseFilters: []filter.Config{{Field: "margin", Operator: filter.OpGreaterThan, Value: 150}},
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows above the margin threshold, got %v", rowNames(rows))
	}
	for _, row := range rows {
		margin, ok := row.Data["margin"].(float64)
		if !ok || margin <= 150 {
			t.Fatalf("row with margin %v leaked through", row.Data["margin"])
		}
	}

	// A whole-number boundary must match itself: margin of the 1000
	// budget is exactly 200.
	rows, err = env.records.ListRecords(ctx, ListRecordsInput{
		TableID:     table.ID,
		BaseFilters: []filter.Config{{Field: "margin", Operator: filter.OpGreaterThanOrEqual, Value: 200}},
	})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows at or above the boundary, got %v", rowNames(rows))
	}
}

func TestListRecords_ClientSideSortByChoiceOrder(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	view, err := env.views.CreateView(ctx, table.ID, "By status", models.ViewTypeGrid)
	if err != nil {
		t.Fatalf("CreateView() error = %v", err)
	}
	err = env.views.SaveSorts(ctx, view.ID, []models.ViewSort{
		{FieldName: "status", Direction: models.SortAsc},
		{FieldName: "budget", Direction: models.SortAsc},
	})
	if err != nil {
		t.Fatalf("SaveSorts() error = %v", err)
	}

	rows, err := env.records.ListRecords(ctx, ListRecordsInput{ViewID: view.ID})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	want := []string{"Summer Teaser", "Fall Push", "Spring Launch", "Winter Recap"}
	got := rowNames(rows)
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("choice-order sort wrong: got %v, want %v", got, want)
		}
	}
}

func TestListRecords_Pagination(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	seedStandardCampaigns(t, env, ctx, table.ID)

	view, err := env.views.CreateView(ctx, table.ID, "By budget", models.ViewTypeGrid)
	if err != nil {
		t.Fatalf("CreateView() error = %v", err)
	}
	err = env.views.SaveSorts(ctx, view.ID, []models.ViewSort{
		{FieldName: "budget", Direction: models.SortAsc},
	})
	if err != nil {
		t.Fatalf("SaveSorts() error = %v", err)
	}

	page1, err := env.records.ListRecords(ctx, ListRecordsInput{ViewID: view.ID, Limit: 2})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	page2, err := env.records.ListRecords(ctx, ListRecordsInput{ViewID: view.ID, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected 2+2 rows, got %v / %v", rowNames(page1), rowNames(page2))
	}
	if page1[0].Data["name"] != "Fall Push" || page2[1].Data["name"] != "Winter Recap" {
		t.Fatalf("pagination order wrong: %v then %v", rowNames(page1), rowNames(page2))
	}
}

func TestCreateRecord_PermissionCascade(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)

	// Default page permissions open create to both roles.
	if _, err := env.records.CreateRecord(ctx, table.ID, map[string]any{"name": "A"}, nil, MutationContext{Role: models.RoleEditor}); err != nil {
		t.Fatalf("editor create should pass defaults: %v", err)
	}

	adminOnly := perm.RecordActionPermissions{Create: perm.PermissionAdmin, Delete: perm.PermissionAdmin}
	_, err := env.records.CreateRecord(ctx, table.ID, map[string]any{"name": "B"}, nil, MutationContext{
		Role:      models.RoleEditor,
		PagePerms: &adminOnly,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("editor create against admin-only page: err = %v", err)
	}

	viewOnly := perm.BlockPermissions{Mode: perm.BlockModeView, AllowInlineCreate: true}
	_, err = env.records.CreateRecord(ctx, table.ID, map[string]any{"name": "C"}, nil, MutationContext{
		Role:  models.RoleAdmin,
		Block: &viewOnly,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("view-mode block must deny create even for admin: err = %v", err)
	}
}

func TestCreateRecord_PrefillsFromActiveFilters(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)

	active := []filter.Config{
		{Field: "status", Operator: filter.OpEqual, Value: "active"},
		{Field: "budget", Operator: filter.OpGreaterThan, Value: 100},
		{Field: "margin", Operator: filter.OpEqual, Value: 42},
	}
	row, err := env.records.CreateRecord(ctx, table.ID, map[string]any{"name": "Prefilled"}, active, adminContext())
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if row.Data["status"] != "active" {
		t.Fatalf("equality filter should prefill status, got %v", row.Data)
	}
	if _, ok := row.Data["budget"]; ok {
		t.Fatalf("non-equality filter must not prefill: %v", row.Data)
	}

	stored, err := env.store.GetRowByID(ctx, row.ID)
	if err != nil {
		t.Fatalf("GetRowByID() error = %v", err)
	}
	if _, ok := stored.Data["margin"]; ok {
		t.Fatalf("computed field must never be stored: %v", stored.Data)
	}
}

func TestUpdateRecord_MergesAndDeletes(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	row := env.seedRow(t, ctx, table.ID, map[string]any{"name": "Spring Launch", "status": "active", "channel": "email"})

	updated, err := env.records.UpdateRecord(ctx, row.ID, map[string]any{
		"status":  "done",
		"channel": nil,
	}, adminContext())
	if err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
	if updated.Data["status"] != "done" || updated.Data["name"] != "Spring Launch" {
		t.Fatalf("partial update should merge over existing data: %v", updated.Data)
	}
	if _, ok := updated.Data["channel"]; ok {
		t.Fatalf("nil value should delete the key: %v", updated.Data)
	}

	viewOnly := perm.BlockPermissions{Mode: perm.BlockModeView}
	_, err = env.records.UpdateRecord(ctx, row.ID, map[string]any{"status": "planned"}, MutationContext{
		Role:  models.RoleAdmin,
		Block: &viewOnly,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("view-mode block must deny edits: err = %v", err)
	}
}

func TestDeleteRecord_AdminOnlyByDefault(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	row := env.seedRow(t, ctx, table.ID, map[string]any{"name": "Doomed"})

	err := env.records.DeleteRecord(ctx, row.ID, MutationContext{Role: models.RoleEditor})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("editor delete against default page perms: err = %v", err)
	}
	if err := env.records.DeleteRecord(ctx, row.ID, adminContext()); err != nil {
		t.Fatalf("admin delete should pass: %v", err)
	}
}

func TestGetRecord_ComputesFormulaFields(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	table := env.createCampaignTable(t, ctx)
	row := env.seedRow(t, ctx, table.ID, map[string]any{"name": "Spring Launch", "budget": 1000.0})

	got, err := env.records.GetRecord(ctx, row.ID, adminContext())
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if got.Data["margin"] != 200.0 {
		t.Fatalf("formula field should be computed on read, got %v", got.Data["margin"])
	}

	noOpen := perm.BlockPermissions{Mode: perm.BlockModeEdit, AllowOpenRecord: false}
	_, err = env.records.GetRecord(ctx, row.ID, MutationContext{Role: models.RoleAdmin, Block: &noOpen})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("open-record flag must gate reads: err = %v", err)
	}
}
