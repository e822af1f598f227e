package service

import (
	"context"
	"log"

	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/formula"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/perm"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

// RecordService resolves the full filter stack for record reads and
// enforces the permission cascade on record mutations.
type RecordService struct {
	store     *store.SQLStore
	broadcast *filter.Broadcast
}

func NewRecordService(s *store.SQLStore, b *filter.Broadcast) *RecordService {
	return &RecordService{store: s, broadcast: b}
}

// ListRecordsInput carries everything that narrows one record read.
// BaseFilters are the block's hard-coded filters, TemporaryFilters come
// from transient UI state, QuickFilters are the user's per-session
// overrides of the view's own defaults.
type ListRecordsInput struct {
	TableID string
	ViewID  string
	PageID  string
	BlockID string

	BaseFilters      []filter.Config
	TemporaryFilters []filter.Config
	QuickFilters     []filter.Config

	Limit  int
	Offset int
}

func (s *RecordService) ListRecords(ctx context.Context, input ListRecordsInput) ([]models.Row, error) {
	tableID := input.TableID
	var view models.View
	if input.ViewID != "" {
		var err error
		view, err = s.store.GetViewByID(ctx, input.ViewID)
		if err != nil {
			return nil, err
		}
		tableID = view.TableID
	}

	fields, err := s.store.ListFields(ctx, tableID)
	if err != nil {
		return nil, err
	}

	// View defaults, with user quick filters replacing the defaults of
	// any field the user touched.
	var viewTree filter.Node
	if input.ViewID != "" {
		viewFilters, viewGroups, err := s.store.LoadViewFilters(ctx, input.ViewID)
		if err != nil {
			return nil, err
		}
		viewTree = filter.FromViewRows(viewFilters, viewGroups)
		if len(input.QuickFilters) > 0 {
			defaults := filter.TreeToConfigs(viewTree)
			merged := filter.MergeQuickFilters(defaults, input.QuickFilters)
			viewTree = filter.ConfigsToTree(merged, models.ConditionAnd)
		}
	}

	// Block-scoped filters under strict precedence: hard-coded block
	// filters, then filter-block emissions, then transient UI filters.
	// Structured (OR-group) emissions bypass the per-field collapse and
	// AND-combine as whole trees.
	var emitted []filter.Config
	var emittedTree filter.Node
	if input.PageID != "" {
		emitted = s.broadcast.FiltersFor(input.PageID, input.BlockID, tableID)
		emittedTree = s.broadcast.TreeFor(input.PageID, input.BlockID, tableID)
	}
	blockScoped := filter.MergeFilters(input.BaseFilters, emitted, input.TemporaryFilters)
	tree := filter.And([]filter.Node{
		viewTree,
		filter.ConfigsToTree(blockScoped, models.ConditionAnd),
		emittedTree,
	})

	var sorts []models.ViewSort
	if input.ViewID != "" {
		sorts, err = s.store.ListViewSorts(ctx, input.ViewID)
		if err != nil {
			return nil, err
		}
	}
	clientSort := ShouldUseClientSideSorting(sorts, fields)

	q := store.NewRowQuery(tableID).ApplyFilterTree(tree, fields)
	if !clientSort {
		for _, sort := range sorts {
			q.Order(sort.FieldName, sort.Direction != models.SortDesc)
		}
	}

	// Pagination can only be pushed down when SQL alone decides the
	// result set and its order.
	pushPagination := q.Exact() && !clientSort
	if pushPagination && input.Limit > 0 {
		q.Range(input.Offset, input.Offset+input.Limit-1)
	}

	rows, err := s.store.FetchRows(ctx, q)
	if err != nil {
		return nil, err
	}

	// Computed values must exist before the in-memory re-check: inexact
	// SQL usually means the tree touches a computed field.
	s.computeFields(fields, rows)

	if !q.Exact() {
		matcher, err := filter.CompileMatcher(tree, fields)
		if err != nil {
			return nil, err
		}
		kept := rows[:0]
		for _, row := range rows {
			ok, err := matcher.Matches(row.Data)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if clientSort {
		SortRecords(rows, sorts, fields)
	}
	if !pushPagination {
		rows = paginate(rows, input.Offset, input.Limit)
	}
	return rows, nil
}

type MutationContext struct {
	Role      models.Role
	PagePerms *perm.RecordActionPermissions
	Block     *perm.BlockPermissions
}

func (c MutationContext) pagePerms() perm.RecordActionPermissions {
	if c.PagePerms != nil {
		return *c.PagePerms
	}
	return perm.DefaultRecordActionPermissions()
}

// CreateRecord checks the page/block permission cascade and pre-fills
// the new row from the active equality filters so it lands inside the
// filtered view it was created from.
func (s *RecordService) CreateRecord(ctx context.Context, tableID string, data map[string]any, activeFilters []filter.Config, mc MutationContext) (models.Row, error) {
	if !perm.CanCreateRecord(mc.Role, mc.pagePerms(), mc.Block) {
		return models.Row{}, ErrPermissionDenied
	}
	fields, err := s.store.ListFields(ctx, tableID)
	if err != nil {
		return models.Row{}, err
	}

	payload := filter.DeriveDefaultValues(activeFilters, fields)
	for key, value := range data {
		payload[key] = value
	}
	stripComputed(payload, fields)

	row, err := s.store.CreateRow(ctx, tableID, payload)
	if err != nil {
		return models.Row{}, err
	}
	s.computeFields(fields, []models.Row{row})
	return row, nil
}

func (s *RecordService) GetRecord(ctx context.Context, rowID string, mc MutationContext) (models.Row, error) {
	if !perm.CanOpenRecord(mc.Block) {
		return models.Row{}, ErrPermissionDenied
	}
	row, err := s.store.GetRowByID(ctx, rowID)
	if err != nil {
		return models.Row{}, err
	}
	fields, err := s.store.ListFields(ctx, row.TableID)
	if err != nil {
		return models.Row{}, err
	}
	s.computeFields(fields, []models.Row{row})
	return row, nil
}

// UpdateRecord merges a partial payload over the stored row.
func (s *RecordService) UpdateRecord(ctx context.Context, rowID string, data map[string]any, mc MutationContext) (models.Row, error) {
	if !perm.CanEditRecords(mc.Block) {
		return models.Row{}, ErrPermissionDenied
	}
	existing, err := s.store.GetRowByID(ctx, rowID)
	if err != nil {
		return models.Row{}, err
	}
	fields, err := s.store.ListFields(ctx, existing.TableID)
	if err != nil {
		return models.Row{}, err
	}

	payload := make(map[string]any, len(existing.Data)+len(data))
	for key, value := range existing.Data {
		payload[key] = value
	}
	for key, value := range data {
		if value == nil {
			delete(payload, key)
			continue
		}
		payload[key] = value
	}
	stripComputed(payload, fields)

	row, err := s.store.UpdateRow(ctx, rowID, payload)
	if err != nil {
		return models.Row{}, err
	}
	s.computeFields(fields, []models.Row{row})
	return row, nil
}

func (s *RecordService) DeleteRecord(ctx context.Context, rowID string, mc MutationContext) error {
	if !perm.CanDeleteRecord(mc.Role, mc.pagePerms(), mc.Block) {
		return ErrPermissionDenied
	}
	return s.store.DeleteRow(ctx, rowID)
}

// computeFields evaluates formula fields into each row's payload. A
// formula that fails to compile or evaluate yields nil for that field
// instead of failing the whole read.
func (s *RecordService) computeFields(fields []models.Field, rows []models.Row) {
	for _, field := range fields {
		if field.Type != models.FieldTypeFormula {
			continue
		}
		compiled, err := formula.Compile(field.Options.Expression, fields)
		if err != nil {
			log.Printf("formula field %q failed to compile: %v", field.Name, err)
			for i := range rows {
				rows[i].Data[field.Name] = nil
			}
			continue
		}
		for i := range rows {
			value, err := compiled.Eval(rows[i].Data)
			if err != nil {
				value = nil
			}
			rows[i].Data[field.Name] = value
		}
	}
}

func stripComputed(payload map[string]any, fields []models.Field) {
	for _, field := range fields {
		if field.Type.IsComputed() {
			delete(payload, field.Name)
		}
	}
}

func paginate(rows []models.Row, offset int, limit int) []models.Row {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []models.Row{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
