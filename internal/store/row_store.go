package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func (s *SQLStore) CreateRow(ctx context.Context, tableID string, data map[string]any) (models.Row, error) {
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return models.Row{}, fmt.Errorf("marshal row data: %w", err)
	}
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO table_rows (id, table_id, data_json, create_time, update_time)
		VALUES (?, ?, ?, ?, ?)`,
		id,
		tableID,
		string(payload),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.Row{}, WrapQueryError(err)
	}
	return s.GetRowByID(ctx, id)
}

func (s *SQLStore) GetRowByID(ctx context.Context, id string) (models.Row, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, table_id, data_json, create_time, update_time FROM table_rows WHERE id = ?`,
		id,
	)
	return scanRow(row)
}

// UpdateRow replaces the row payload; callers merge partial updates
// before calling.
func (s *SQLStore) UpdateRow(ctx context.Context, id string, data map[string]any) (models.Row, error) {
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return models.Row{}, fmt.Errorf("marshal row data: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE table_rows SET data_json = ?, update_time = ? WHERE id = ?`,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return models.Row{}, WrapQueryError(err)
	}
	return s.GetRowByID(ctx, id)
}

func (s *SQLStore) DeleteRow(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM table_rows WHERE id = ?`, id)
	return WrapQueryError(err)
}

// FetchRows executes a built query and decodes the matching rows.
func (s *SQLStore) FetchRows(ctx context.Context, q *RowQuery) ([]models.Row, error) {
	query, args := q.buildSQL()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *SQLStore) CountRows(ctx context.Context, tableID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM table_rows WHERE table_id = ?`, tableID).Scan(&count)
	if err != nil {
		return 0, WrapQueryError(err)
	}
	return count, nil
}

func scanRow(scanner interface {
	Scan(dest ...any) error
}) (models.Row, error) {
	var row models.Row
	var dataJSON string
	var createTime string
	var updateTime string
	if err := scanner.Scan(&row.ID, &row.TableID, &dataJSON, &createTime, &updateTime); err != nil {
		return models.Row{}, WrapQueryError(err)
	}
	row.Data = map[string]any{}
	if dataJSON != "" {
		if err := json.Unmarshal([]byte(dataJSON), &row.Data); err != nil {
			return models.Row{}, fmt.Errorf("decode row %s: %w", row.ID, err)
		}
	}
	var err error
	row.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.Row{}, err
	}
	row.UpdateTime, err = parseTime(updateTime)
	if err != nil {
		return models.Row{}, err
	}
	return row, nil
}
