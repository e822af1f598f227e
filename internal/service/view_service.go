package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

type ViewService struct {
	store *store.SQLStore
}

var (
	ErrInvalidViewName = errors.New("invalid view name")
	ErrInvalidViewType = errors.New("invalid view type")
)

func NewViewService(s *store.SQLStore) *ViewService {
	return &ViewService{store: s}
}

func (s *ViewService) CreateView(ctx context.Context, tableID string, name string, viewType models.ViewType) (models.View, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 128 {
		return models.View{}, ErrInvalidViewName
	}
	if !viewType.IsValid() {
		return models.View{}, ErrInvalidViewType
	}
	return s.store.CreateView(ctx, tableID, name, viewType)
}

func (s *ViewService) GetView(ctx context.Context, id string) (models.View, error) {
	return s.store.GetViewByID(ctx, id)
}

func (s *ViewService) ListViews(ctx context.Context, tableID string) ([]models.View, error) {
	return s.store.ListViews(ctx, tableID)
}

func (s *ViewService) RenameView(ctx context.Context, id string, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 128 {
		return ErrInvalidViewName
	}
	return s.store.RenameView(ctx, id, name)
}

func (s *ViewService) DeleteView(ctx context.Context, id string) error {
	return s.store.DeleteView(ctx, id)
}

// SaveFilters validates and persists a view's filter tree as group and
// filter rows. Filters referencing a group absent from the submitted
// groups are rejected rather than silently detached.
func (s *ViewService) SaveFilters(ctx context.Context, viewID string, groups []models.ViewFilterGroup, filters []models.ViewFilter) error {
	view, err := s.store.GetViewByID(ctx, viewID)
	if err != nil {
		return err
	}
	fields, err := s.store.ListFields(ctx, view.TableID)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
	}
	groupIDs := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		groupIDs[g.ID] = struct{}{}
	}
	for _, f := range filters {
		if _, ok := known[f.FieldName]; !ok {
			return fmt.Errorf("filter references unknown field %q", f.FieldName)
		}
		if f.Operator == "" {
			return fmt.Errorf("filter on %q has no operator", f.FieldName)
		}
		if f.FilterGroupID != nil {
			if _, ok := groupIDs[*f.FilterGroupID]; !ok {
				return fmt.Errorf("filter on %q references unknown group %q", f.FieldName, *f.FilterGroupID)
			}
		}
	}
	return s.store.SaveViewFilters(ctx, viewID, groups, filters)
}

func (s *ViewService) LoadFilters(ctx context.Context, viewID string) ([]models.ViewFilter, []models.ViewFilterGroup, error) {
	return s.store.LoadViewFilters(ctx, viewID)
}

// ResolveFilterTree reconstructs the view's persisted filters as a tree
// ready for SQL push-down or in-memory matching.
func (s *ViewService) ResolveFilterTree(ctx context.Context, viewID string) (filter.Node, error) {
	filters, groups, err := s.store.LoadViewFilters(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return filter.FromViewRows(filters, groups), nil
}

func (s *ViewService) SaveSorts(ctx context.Context, viewID string, sorts []models.ViewSort) error {
	view, err := s.store.GetViewByID(ctx, viewID)
	if err != nil {
		return err
	}
	fields, err := s.store.ListFields(ctx, view.TableID)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
	}
	for _, sort := range sorts {
		if _, ok := known[sort.FieldName]; !ok {
			return fmt.Errorf("sort references unknown field %q", sort.FieldName)
		}
	}
	return s.store.SaveViewSorts(ctx, viewID, sorts)
}

func (s *ViewService) ListSorts(ctx context.Context, viewID string) ([]models.ViewSort, error) {
	return s.store.ListViewSorts(ctx, viewID)
}

func (s *ViewService) SaveFields(ctx context.Context, viewID string, viewFields []models.ViewField) error {
	return s.store.SaveViewFields(ctx, viewID, viewFields)
}

func (s *ViewService) ListFields(ctx context.Context, viewID string) ([]models.ViewField, error) {
	return s.store.ListViewFields(ctx, viewID)
}

func (s *ViewService) SaveGridSettings(ctx context.Context, settings models.GridViewSettings) error {
	switch settings.RowHeight {
	case "short", "medium", "tall":
	case "":
		settings.RowHeight = "short"
	default:
		return fmt.Errorf("invalid row height %q", settings.RowHeight)
	}
	return s.store.UpsertGridViewSettings(ctx, settings)
}

func (s *ViewService) GetGridSettings(ctx context.Context, viewID string) (models.GridViewSettings, error) {
	return s.store.GetGridViewSettings(ctx, viewID)
}
