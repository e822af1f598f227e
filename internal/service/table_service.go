package service

import (
	"context"
	"errors"
	"strings"

	"github.com/SophieEDesign/marketinghub/internal/formula"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

type TableService struct {
	store *store.SQLStore
}

var (
	ErrInvalidTableName = errors.New("invalid table name")
	ErrInvalidFieldName = errors.New("invalid field name")
	ErrInvalidFieldType = errors.New("invalid field type")
	ErrFieldExists      = errors.New("field already exists")
)

func NewTableService(s *store.SQLStore) *TableService {
	return &TableService{store: s}
}

func (s *TableService) CreateTable(ctx context.Context, name string) (models.Table, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 128 {
		return models.Table{}, ErrInvalidTableName
	}
	return s.store.CreateTable(ctx, name)
}

func (s *TableService) GetTable(ctx context.Context, id string) (models.Table, error) {
	return s.store.GetTableByID(ctx, id)
}

func (s *TableService) ListTables(ctx context.Context) ([]models.Table, error) {
	return s.store.ListTables(ctx)
}

func (s *TableService) RenameTable(ctx context.Context, id string, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 128 {
		return ErrInvalidTableName
	}
	return s.store.RenameTable(ctx, id, name)
}

func (s *TableService) DeleteTable(ctx context.Context, id string) error {
	return s.store.DeleteTable(ctx, id)
}

// CreateField validates a field definition before persisting it. Formula
// expressions are compiled against the sibling fields so a broken
// formula is rejected at save time.
func (s *TableService) CreateField(ctx context.Context, field models.Field) (models.Field, error) {
	field.Name = strings.TrimSpace(field.Name)
	if field.Name == "" || len([]rune(field.Name)) > 128 {
		return models.Field{}, ErrInvalidFieldName
	}
	if !field.Type.IsValid() {
		return models.Field{}, ErrInvalidFieldType
	}

	siblings, err := s.store.ListFields(ctx, field.TableID)
	if err != nil {
		return models.Field{}, err
	}
	for _, existing := range siblings {
		if strings.EqualFold(existing.Name, field.Name) {
			return models.Field{}, ErrFieldExists
		}
	}
	if field.Type == models.FieldTypeFormula {
		if _, err := formula.Compile(field.Options.Expression, siblings); err != nil {
			return models.Field{}, err
		}
	}
	return s.store.CreateField(ctx, field)
}

func (s *TableService) ListFields(ctx context.Context, tableID string) ([]models.Field, error) {
	return s.store.ListFields(ctx, tableID)
}

// UpdateFieldOptions re-validates formula expressions the same way
// CreateField does.
func (s *TableService) UpdateFieldOptions(ctx context.Context, fieldID string, options models.FieldOptions) error {
	field, err := s.store.GetFieldByID(ctx, fieldID)
	if err != nil {
		return err
	}
	if field.Type == models.FieldTypeFormula {
		siblings, err := s.store.ListFields(ctx, field.TableID)
		if err != nil {
			return err
		}
		others := make([]models.Field, 0, len(siblings))
		for _, sibling := range siblings {
			if sibling.ID != field.ID {
				others = append(others, sibling)
			}
		}
		if _, err := formula.Compile(options.Expression, others); err != nil {
			return err
		}
	}
	return s.store.UpdateFieldOptions(ctx, fieldID, options)
}

func (s *TableService) DeleteField(ctx context.Context, fieldID string) error {
	return s.store.DeleteField(ctx, fieldID)
}
