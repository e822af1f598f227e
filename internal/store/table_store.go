package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func (s *SQLStore) CreateTable(ctx context.Context, name string) (models.Table, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tables (id, name, create_time) VALUES (?, ?, ?)`,
		id,
		name,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.Table{}, WrapQueryError(err)
	}
	return s.GetTableByID(ctx, id)
}

func (s *SQLStore) GetTableByID(ctx context.Context, id string) (models.Table, error) {
	var table models.Table
	var createTime string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, create_time FROM tables WHERE id = ?`,
		id,
	).Scan(&table.ID, &table.Name, &createTime)
	if err != nil {
		return models.Table{}, WrapQueryError(err)
	}
	table.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.Table{}, err
	}
	return table, nil
}

func (s *SQLStore) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, create_time FROM tables ORDER BY create_time, id`)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.Table, 0)
	for rows.Next() {
		var table models.Table
		var createTime string
		if err := rows.Scan(&table.ID, &table.Name, &createTime); err != nil {
			return nil, err
		}
		table.CreateTime, err = parseTime(createTime)
		if err != nil {
			return nil, err
		}
		result = append(result, table)
	}
	return result, rows.Err()
}

func (s *SQLStore) RenameTable(ctx context.Context, id string, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tables SET name = ? WHERE id = ?`, name, id)
	return WrapQueryError(err)
}

func (s *SQLStore) DeleteTable(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, id)
	return WrapQueryError(err)
}

func (s *SQLStore) CreateField(ctx context.Context, field models.Field) (models.Field, error) {
	if field.ID == "" {
		field.ID = uuid.NewString()
	}
	options, err := json.Marshal(field.Options)
	if err != nil {
		return models.Field{}, fmt.Errorf("marshal field options: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO table_fields (id, table_id, name, type, options_json, order_index)
		VALUES (?, ?, ?, ?, ?, ?)`,
		field.ID,
		field.TableID,
		field.Name,
		string(field.Type),
		string(options),
		field.OrderIndex,
	)
	if err != nil {
		return models.Field{}, WrapQueryError(err)
	}
	return s.GetFieldByID(ctx, field.ID)
}

func (s *SQLStore) GetFieldByID(ctx context.Context, id string) (models.Field, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, table_id, name, type, options_json, order_index FROM table_fields WHERE id = ?`,
		id,
	)
	return scanField(row)
}

func (s *SQLStore) ListFields(ctx context.Context, tableID string) ([]models.Field, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, table_id, name, type, options_json, order_index
		FROM table_fields
		WHERE table_id = ?
		ORDER BY order_index, name`,
		tableID,
	)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.Field, 0)
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, field)
	}
	return result, rows.Err()
}

func (s *SQLStore) UpdateFieldOptions(ctx context.Context, id string, options models.FieldOptions) error {
	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("marshal field options: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE table_fields SET options_json = ? WHERE id = ?`, string(data), id)
	return WrapQueryError(err)
}

func (s *SQLStore) DeleteField(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM table_fields WHERE id = ?`, id)
	return WrapQueryError(err)
}

func scanField(scanner interface {
	Scan(dest ...any) error
}) (models.Field, error) {
	var field models.Field
	var fieldType string
	var optionsJSON string
	if err := scanner.Scan(
		&field.ID,
		&field.TableID,
		&field.Name,
		&fieldType,
		&optionsJSON,
		&field.OrderIndex,
	); err != nil {
		return models.Field{}, WrapQueryError(err)
	}
	field.Type = models.FieldType(fieldType)
	if optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &field.Options); err != nil {
			// Malformed options are user-editable data; fall back to
			// empty options rather than failing the read.
			field.Options = models.FieldOptions{}
		}
	}
	return field, nil
}
