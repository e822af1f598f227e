package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/perm"
)

func TestCreatePage_Validation(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)

	if _, err := env.pages.CreatePage(ctx, "   "); !errors.Is(err, ErrInvalidPageName) {
		t.Fatalf("blank page name: err = %v", err)
	}
	page, err := env.pages.CreatePage(ctx, "  Campaign overview  ")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	if page.Name != "Campaign overview" {
		t.Fatalf("page name should be trimmed, got %q", page.Name)
	}
}

func TestAddBlock_NormalizesInvalidConfig(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	page, err := env.pages.CreatePage(ctx, "Dashboard")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}

	created, err := env.pages.AddBlock(ctx, models.Block{
		PageID: page.ID,
		Type:   "chart",
		Config: map[string]any{"chart_type": "line"},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}
	if created.Config["chart_type"] != "bar" {
		t.Fatalf("invalid chart config should reset to defaults, got %v", created.Config)
	}
	if created.Sizing != models.BlockSizingContent {
		t.Fatalf("sizing should collapse to content, got %v", created.Sizing)
	}

	if _, err := env.pages.AddBlock(ctx, models.Block{PageID: page.ID, Type: "widget"}); !errors.Is(err, ErrInvalidBlockType) {
		t.Fatalf("unknown block type: err = %v", err)
	}
}

func TestAddBlock_FilterBlockAutoPublishes(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	page, err := env.pages.CreatePage(ctx, "Dashboard")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}

	created, err := env.pages.AddBlock(ctx, models.Block{
		PageID: page.ID,
		Type:   "filter",
		Config: map[string]any{
			"table_id":      "campaigns",
			"target_blocks": "all",
			"filters": []any{
				map[string]any{"field": "status", "operator": filter.OpEqual, "value": "active"},
			},
		},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}

	got := env.broadcast.FiltersFor(page.ID, "grid-block", "campaigns")
	if len(got) != 1 || got[0].Field != "status" || got[0].Value != "active" {
		t.Fatalf("filter block should publish on create, got %+v", got)
	}

	// The emission dies with the block.
	if err := env.pages.DeleteBlock(ctx, created.ID); err != nil {
		t.Fatalf("DeleteBlock() error = %v", err)
	}
	if got := env.broadcast.FiltersFor(page.ID, "grid-block", "campaigns"); len(got) != 0 {
		t.Fatalf("deleted block should withdraw its emission, got %+v", got)
	}
}

func TestPublishFilterBlock(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	page, err := env.pages.CreatePage(ctx, "Dashboard")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	created, err := env.pages.AddBlock(ctx, models.Block{
		PageID: page.ID,
		Type:   "filter",
		Config: map[string]any{"table_id": "campaigns", "target_blocks": "all"},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}

	selections := []filter.Config{{Field: "channel", Operator: filter.OpEqual, Value: "email"}}
	changed, err := env.pages.PublishFilterBlock(ctx, created.ID, selections)
	if err != nil {
		t.Fatalf("PublishFilterBlock() error = %v", err)
	}
	if !changed {
		t.Fatalf("new selections must report a change")
	}
	// Re-publishing the same selections is a no-op.
	changed, err = env.pages.PublishFilterBlock(ctx, created.ID, selections)
	if err != nil {
		t.Fatalf("PublishFilterBlock() error = %v", err)
	}
	if changed {
		t.Fatalf("identical re-publish must be suppressed")
	}

	grid, err := env.pages.AddBlock(ctx, models.Block{
		PageID: page.ID,
		Type:   "grid",
		Config: map[string]any{"table_id": "campaigns"},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}
	if _, err := env.pages.PublishFilterBlock(ctx, grid.ID, nil); !errors.Is(err, ErrInvalidBlockType) {
		t.Fatalf("publishing through a non-filter block: err = %v", err)
	}
}

func TestDeletePage_DropsBroadcastRegistry(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	page, err := env.pages.CreatePage(ctx, "Dashboard")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	_, err = env.pages.AddBlock(ctx, models.Block{
		PageID: page.ID,
		Type:   "filter",
		Config: map[string]any{
			"table_id":      "campaigns",
			"target_blocks": "all",
			"filters": []any{
				map[string]any{"field": "status", "operator": filter.OpEqual, "value": "active"},
			},
		},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}

	if err := env.pages.DeletePage(ctx, page.ID); err != nil {
		t.Fatalf("DeletePage() error = %v", err)
	}
	if got := env.broadcast.FiltersFor(page.ID, "grid-block", "campaigns"); len(got) != 0 {
		t.Fatalf("deleted page should have no emissions, got %+v", got)
	}
}

func TestUpdateBlockLayout(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	page, err := env.pages.CreatePage(ctx, "Dashboard")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	created, err := env.pages.AddBlock(ctx, models.Block{
		PageID: page.ID,
		Type:   "text",
		Config: map[string]any{"content_json": "hello"},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}

	updated, err := env.pages.UpdateBlockLayout(ctx, created.ID, &models.BlockPosition{X: 2, Y: 1, W: 4, H: 3}, models.BlockSizingFill)
	if err != nil {
		t.Fatalf("UpdateBlockLayout() error = %v", err)
	}
	if updated.Position == nil || updated.Position.W != 4 {
		t.Fatalf("position not persisted: %+v", updated.Position)
	}
	// Text blocks never get fill sizing.
	if updated.Sizing != models.BlockSizingContent {
		t.Fatalf("text block sizing should be forced to content, got %v", updated.Sizing)
	}

	cleared, err := env.pages.UpdateBlockLayout(ctx, created.ID, nil, models.BlockSizingContent)
	if err != nil {
		t.Fatalf("UpdateBlockLayout() error = %v", err)
	}
	if cleared.Position != nil {
		t.Fatalf("nil position should clear the layout, got %+v", cleared.Position)
	}
}

func TestRenderPage(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	page, err := env.pages.CreatePage(ctx, "Dashboard")
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	_, err = env.pages.AddBlock(ctx, models.Block{
		PageID:   page.ID,
		Type:     "text",
		Config:   map[string]any{"content_json": "# Launch plan\n\nSee [the brief](https://example.com)."},
		Position: &models.BlockPosition{X: 0, Y: 0, W: 6, H: 2},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}
	_, err = env.pages.AddBlock(ctx, models.Block{
		PageID:   page.ID,
		Type:     "grid",
		Config:   map[string]any{"table_id": "campaigns"},
		Position: &models.BlockPosition{X: 0, Y: 2, W: 6, H: 4},
	})
	if err != nil {
		t.Fatalf("AddBlock() error = %v", err)
	}

	rendered, err := env.pages.RenderPage(ctx, page.ID)
	if err != nil {
		t.Fatalf("RenderPage() error = %v", err)
	}
	if len(rendered) != 2 {
		t.Fatalf("expected 2 rendered blocks, got %d", len(rendered))
	}
	if rendered[0].Block.Type != "text" {
		t.Fatalf("blocks should come back in layout order, got %s first", rendered[0].Block.Type)
	}
	if !strings.Contains(rendered[0].HTML, "<h1") || !strings.Contains(rendered[0].HTML, "<a href") {
		t.Fatalf("text block should render markdown, got %q", rendered[0].HTML)
	}
	if rendered[1].HTML != "" {
		t.Fatalf("non-text blocks carry no HTML, got %q", rendered[1].HTML)
	}
}

func TestBlockPermissionsFromConfig(t *testing.T) {
	if got := BlockPermissionsFromConfig(map[string]any{}); got != nil {
		t.Fatalf("absent permissions section should yield nil, got %+v", got)
	}

	got := BlockPermissionsFromConfig(map[string]any{
		"permissions": map[string]any{
			"mode":              "view",
			"allowInlineCreate": false,
		},
	})
	if got == nil {
		t.Fatalf("permissions section should decode")
	}
	if got.Mode != perm.BlockModeView || got.AllowInlineCreate {
		t.Fatalf("decoded permissions wrong: %+v", got)
	}
	// Keys the config omits keep their defaults.
	if !got.AllowInlineDelete || !got.AllowOpenRecord {
		t.Fatalf("omitted keys should default to allow: %+v", got)
	}
}
