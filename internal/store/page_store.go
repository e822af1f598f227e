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

func (s *SQLStore) CreatePage(ctx context.Context, name string) (models.Page, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pages (id, name, config_json, create_time) VALUES (?, ?, '{}', ?)`,
		id,
		name,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.Page{}, WrapQueryError(err)
	}
	return s.GetPageByID(ctx, id)
}

func (s *SQLStore) GetPageByID(ctx context.Context, id string) (models.Page, error) {
	var page models.Page
	var configJSON string
	var createTime string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, config_json, create_time FROM pages WHERE id = ?`,
		id,
	).Scan(&page.ID, &page.Name, &configJSON, &createTime)
	if err != nil {
		return models.Page{}, WrapQueryError(err)
	}
	page.Config = map[string]any{}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &page.Config); err != nil {
			page.Config = map[string]any{}
		}
	}
	page.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.Page{}, err
	}
	return page, nil
}

func (s *SQLStore) ListPages(ctx context.Context) ([]models.Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, config_json, create_time FROM pages ORDER BY create_time, id`)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.Page, 0)
	for rows.Next() {
		var page models.Page
		var configJSON string
		var createTime string
		if err := rows.Scan(&page.ID, &page.Name, &configJSON, &createTime); err != nil {
			return nil, err
		}
		page.Config = map[string]any{}
		if configJSON != "" {
			if err := json.Unmarshal([]byte(configJSON), &page.Config); err != nil {
				page.Config = map[string]any{}
			}
		}
		page.CreateTime, err = parseTime(createTime)
		if err != nil {
			return nil, err
		}
		result = append(result, page)
	}
	return result, rows.Err()
}

func (s *SQLStore) UpdatePageConfig(ctx context.Context, id string, config map[string]any) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal page config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE pages SET config_json = ? WHERE id = ?`, string(data), id)
	return WrapQueryError(err)
}

func (s *SQLStore) DeletePage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	return WrapQueryError(err)
}

func (s *SQLStore) CreateBlock(ctx context.Context, block models.Block) (models.Block, error) {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	config, err := json.Marshal(block.Config)
	if err != nil {
		return models.Block{}, fmt.Errorf("marshal block config: %w", err)
	}
	sizing := block.Sizing
	if sizing == "" {
		sizing = models.BlockSizingContent
	}
	var posX, posY, posW, posH any
	if block.Position != nil {
		posX = block.Position.X
		posY = block.Position.Y
		posW = block.Position.W
		posH = block.Position.H
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO page_blocks (id, page_id, type, config_json, pos_x, pos_y, pos_w, pos_h, sizing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		block.ID,
		block.PageID,
		block.Type,
		string(config),
		posX,
		posY,
		posW,
		posH,
		string(sizing),
	)
	if err != nil {
		return models.Block{}, WrapQueryError(err)
	}
	return s.GetBlockByID(ctx, block.ID)
}

func (s *SQLStore) GetBlockByID(ctx context.Context, id string) (models.Block, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, page_id, type, config_json, pos_x, pos_y, pos_w, pos_h, sizing
		FROM page_blocks WHERE id = ?`,
		id,
	)
	return scanBlock(row)
}

func (s *SQLStore) ListBlocks(ctx context.Context, pageID string) ([]models.Block, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, page_id, type, config_json, pos_x, pos_y, pos_w, pos_h, sizing
		FROM page_blocks WHERE page_id = ? ORDER BY pos_y, pos_x, id`,
		pageID,
	)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.Block, 0)
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, block)
	}
	return result, rows.Err()
}

func (s *SQLStore) UpdateBlockConfig(ctx context.Context, id string, config map[string]any) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal block config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE page_blocks SET config_json = ? WHERE id = ?`, string(data), id)
	return WrapQueryError(err)
}

// UpdateBlockLayout writes position and sizing together. A nil position
// clears all four coordinates.
func (s *SQLStore) UpdateBlockLayout(ctx context.Context, id string, position *models.BlockPosition, sizing models.BlockSizing) error {
	var posX, posY, posW, posH any
	if position != nil {
		posX = position.X
		posY = position.Y
		posW = position.W
		posH = position.H
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE page_blocks SET pos_x = ?, pos_y = ?, pos_w = ?, pos_h = ?, sizing = ? WHERE id = ?`,
		posX,
		posY,
		posW,
		posH,
		string(sizing),
		id,
	)
	return WrapQueryError(err)
}

func (s *SQLStore) DeleteBlock(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM page_blocks WHERE id = ?`, id)
	return WrapQueryError(err)
}

func scanBlock(scanner interface {
	Scan(dest ...any) error
}) (models.Block, error) {
	var block models.Block
	var configJSON string
	var posX, posY, posW, posH sql.NullInt64
	var sizing string
	if err := scanner.Scan(
		&block.ID,
		&block.PageID,
		&block.Type,
		&configJSON,
		&posX,
		&posY,
		&posW,
		&posH,
		&sizing,
	); err != nil {
		return models.Block{}, WrapQueryError(err)
	}
	block.Config = map[string]any{}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &block.Config); err != nil {
			block.Config = map[string]any{}
		}
	}
	block.Sizing = models.BlockSizing(sizing)

	set := 0
	for _, v := range []sql.NullInt64{posX, posY, posW, posH} {
		if v.Valid {
			set++
		}
	}
	switch set {
	case 0:
		block.Position = nil
	case 4:
		block.Position = &models.BlockPosition{
			X: int(posX.Int64),
			Y: int(posY.Int64),
			W: int(posW.Int64),
			H: int(posH.Int64),
		}
	default:
		return models.Block{}, fmt.Errorf("block %s: %w", block.ID, ErrCorruptLayout)
	}
	return block, nil
}
