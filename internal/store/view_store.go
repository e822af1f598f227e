package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func (s *SQLStore) CreateView(ctx context.Context, tableID string, name string, viewType models.ViewType) (models.View, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO views (id, table_id, name, type, config_json, create_time)
		VALUES (?, ?, ?, ?, '{}', ?)`,
		id,
		tableID,
		name,
		string(viewType),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.View{}, WrapQueryError(err)
	}
	return s.GetViewByID(ctx, id)
}

func (s *SQLStore) GetViewByID(ctx context.Context, id string) (models.View, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, table_id, name, type, config_json, create_time FROM views WHERE id = ?`,
		id,
	)
	return scanView(row)
}

func (s *SQLStore) ListViews(ctx context.Context, tableID string) ([]models.View, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, table_id, name, type, config_json, create_time
		FROM views WHERE table_id = ? ORDER BY create_time, id`,
		tableID,
	)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.View, 0)
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, view)
	}
	return result, rows.Err()
}

func (s *SQLStore) UpdateViewConfig(ctx context.Context, id string, config map[string]any) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal view config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE views SET config_json = ? WHERE id = ?`, string(data), id)
	return WrapQueryError(err)
}

func (s *SQLStore) RenameView(ctx context.Context, id string, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE views SET name = ? WHERE id = ?`, name, id)
	return WrapQueryError(err)
}

func (s *SQLStore) DeleteView(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE id = ?`, id)
	return WrapQueryError(err)
}

// SaveViewFilters replaces a view's filters and filter groups in one
// transaction. Groups and the filters referencing them are written
// together so readers never observe a filter pointing at a missing
// group.
func (s *SQLStore) SaveViewFilters(ctx context.Context, viewID string, groups []models.ViewFilterGroup, filters []models.ViewFilter) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM view_filters WHERE view_id = ?`, viewID); err != nil {
		return WrapQueryError(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM view_filter_groups WHERE view_id = ?`, viewID); err != nil {
		return WrapQueryError(err)
	}

	for i, group := range groups {
		if group.ID == "" {
			group.ID = uuid.NewString()
			groups[i] = group
		}
		conditionType := group.ConditionType
		if !conditionType.IsValid() {
			conditionType = models.ConditionAnd
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO view_filter_groups (id, view_id, condition_type, order_index)
			VALUES (?, ?, ?, ?)`,
			group.ID,
			viewID,
			string(conditionType),
			group.OrderIndex,
		)
		if err != nil {
			return WrapQueryError(err)
		}
	}

	for _, f := range filters {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		value, err := encodeFilterValue(f.Value)
		if err != nil {
			return err
		}
		var groupID any
		if f.FilterGroupID != nil {
			groupID = *f.FilterGroupID
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO view_filters (id, view_id, field_name, operator, value, filter_group_id, order_index)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID,
			viewID,
			f.FieldName,
			f.Operator,
			value,
			groupID,
			f.OrderIndex,
		)
		if err != nil {
			return WrapQueryError(err)
		}
	}

	return tx.Commit()
}

// LoadViewFilters returns a view's persisted filters and groups in
// order_index order.
func (s *SQLStore) LoadViewFilters(ctx context.Context, viewID string) ([]models.ViewFilter, []models.ViewFilterGroup, error) {
	groupRows, err := s.db.QueryContext(
		ctx,
		`SELECT id, view_id, condition_type, order_index
		FROM view_filter_groups WHERE view_id = ? ORDER BY order_index, id`,
		viewID,
	)
	if err != nil {
		return nil, nil, WrapQueryError(err)
	}
	defer groupRows.Close()

	groups := make([]models.ViewFilterGroup, 0)
	for groupRows.Next() {
		var group models.ViewFilterGroup
		var conditionType string
		if err := groupRows.Scan(&group.ID, &group.ViewID, &conditionType, &group.OrderIndex); err != nil {
			return nil, nil, err
		}
		group.ConditionType = models.ConditionType(conditionType)
		groups = append(groups, group)
	}
	if err := groupRows.Err(); err != nil {
		return nil, nil, err
	}

	filterRows, err := s.db.QueryContext(
		ctx,
		`SELECT id, view_id, field_name, operator, value, filter_group_id, order_index
		FROM view_filters WHERE view_id = ? ORDER BY order_index, id`,
		viewID,
	)
	if err != nil {
		return nil, nil, WrapQueryError(err)
	}
	defer filterRows.Close()

	filters := make([]models.ViewFilter, 0)
	for filterRows.Next() {
		var f models.ViewFilter
		var value sql.NullString
		var groupID sql.NullString
		if err := filterRows.Scan(&f.ID, &f.ViewID, &f.FieldName, &f.Operator, &value, &groupID, &f.OrderIndex); err != nil {
			return nil, nil, err
		}
		if value.Valid {
			f.Value = decodeFilterValue(value.String)
		}
		if groupID.Valid {
			id := groupID.String
			f.FilterGroupID = &id
		}
		filters = append(filters, f)
	}
	return filters, groups, filterRows.Err()
}

func (s *SQLStore) SaveViewSorts(ctx context.Context, viewID string, sorts []models.ViewSort) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM view_sorts WHERE view_id = ?`, viewID); err != nil {
		return WrapQueryError(err)
	}
	for _, sort := range sorts {
		if sort.ID == "" {
			sort.ID = uuid.NewString()
		}
		direction := sort.Direction
		if direction != models.SortAsc && direction != models.SortDesc {
			direction = models.SortAsc
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO view_sorts (id, view_id, field_name, direction, order_index)
			VALUES (?, ?, ?, ?, ?)`,
			sort.ID,
			viewID,
			sort.FieldName,
			string(direction),
			sort.OrderIndex,
		)
		if err != nil {
			return WrapQueryError(err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ListViewSorts(ctx context.Context, viewID string) ([]models.ViewSort, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, view_id, field_name, direction, order_index
		FROM view_sorts WHERE view_id = ? ORDER BY order_index, id`,
		viewID,
	)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.ViewSort, 0)
	for rows.Next() {
		var sort models.ViewSort
		var direction string
		if err := rows.Scan(&sort.ID, &sort.ViewID, &sort.FieldName, &direction, &sort.OrderIndex); err != nil {
			return nil, err
		}
		sort.Direction = models.SortDirection(direction)
		result = append(result, sort)
	}
	return result, rows.Err()
}

func (s *SQLStore) SaveViewFields(ctx context.Context, viewID string, fields []models.ViewField) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM view_fields WHERE view_id = ?`, viewID); err != nil {
		return WrapQueryError(err)
	}
	for _, field := range fields {
		if field.ID == "" {
			field.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO view_fields (id, view_id, field_name, visible, order_index)
			VALUES (?, ?, ?, ?, ?)`,
			field.ID,
			viewID,
			field.FieldName,
			boolToSQLiteInt(field.Visible),
			field.OrderIndex,
		)
		if err != nil {
			return WrapQueryError(err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ListViewFields(ctx context.Context, viewID string) ([]models.ViewField, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, view_id, field_name, visible, order_index
		FROM view_fields WHERE view_id = ? ORDER BY order_index, field_name`,
		viewID,
	)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.ViewField, 0)
	for rows.Next() {
		var field models.ViewField
		var visible int
		if err := rows.Scan(&field.ID, &field.ViewID, &field.FieldName, &visible, &field.OrderIndex); err != nil {
			return nil, err
		}
		field.Visible = visible != 0
		result = append(result, field)
	}
	return result, rows.Err()
}

func (s *SQLStore) UpsertGridViewSettings(ctx context.Context, settings models.GridViewSettings) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO grid_view_settings (view_id, row_height, wrap_text)
		VALUES (?, ?, ?)
		ON CONFLICT(view_id) DO UPDATE SET row_height = excluded.row_height, wrap_text = excluded.wrap_text`,
		settings.ViewID,
		settings.RowHeight,
		boolToSQLiteInt(settings.WrapText),
	)
	return WrapQueryError(err)
}

func (s *SQLStore) GetGridViewSettings(ctx context.Context, viewID string) (models.GridViewSettings, error) {
	var settings models.GridViewSettings
	var wrapText int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT view_id, row_height, wrap_text FROM grid_view_settings WHERE view_id = ?`,
		viewID,
	).Scan(&settings.ViewID, &settings.RowHeight, &wrapText)
	if err != nil {
		return models.GridViewSettings{}, WrapQueryError(err)
	}
	settings.WrapText = wrapText != 0
	return settings, nil
}

func scanView(scanner interface {
	Scan(dest ...any) error
}) (models.View, error) {
	var view models.View
	var viewType string
	var configJSON string
	var createTime string
	if err := scanner.Scan(&view.ID, &view.TableID, &view.Name, &viewType, &configJSON, &createTime); err != nil {
		return models.View{}, WrapQueryError(err)
	}
	view.Type = models.ViewType(viewType)
	view.Config = map[string]any{}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &view.Config); err != nil {
			view.Config = map[string]any{}
		}
	}
	var err error
	view.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.View{}, err
	}
	return view, nil
}

// encodeFilterValue stores scalar strings as-is and everything else as
// JSON so list and range values survive the TEXT column.
func encodeFilterValue(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal filter value: %w", err)
		}
		return string(data), nil
	}
}

func decodeFilterValue(raw string) any {
	if raw == "" {
		return ""
	}
	switch raw[0] {
	case '[', '{', 't', 'f', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			return decoded
		}
	}
	return raw
}
