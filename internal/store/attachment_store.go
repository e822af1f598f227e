package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

func (s *SQLStore) CreateAttachment(ctx context.Context, attachment models.Attachment) (models.Attachment, error) {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO attachments (id, creator_id, filename, type, size, storage_type, storage_key, create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attachment.ID,
		attachment.CreatorID,
		attachment.Filename,
		attachment.Type,
		attachment.Size,
		attachment.StorageType,
		attachment.StorageKey,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.Attachment{}, WrapQueryError(err)
	}
	return s.GetAttachmentByID(ctx, attachment.ID)
}

func (s *SQLStore) GetAttachmentByID(ctx context.Context, id string) (models.Attachment, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, creator_id, filename, type, size, storage_type, storage_key, create_time
		FROM attachments WHERE id = ?`,
		id,
	)
	return scanAttachment(row)
}

func (s *SQLStore) ListAttachmentsByCreator(ctx context.Context, creatorID int64) ([]models.Attachment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, creator_id, filename, type, size, storage_type, storage_key, create_time
		FROM attachments WHERE creator_id = ? ORDER BY create_time DESC, id`,
		creatorID,
	)
	if err != nil {
		return nil, WrapQueryError(err)
	}
	defer rows.Close()

	result := make([]models.Attachment, 0)
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}

func (s *SQLStore) DeleteAttachment(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	return WrapQueryError(err)
}

func scanAttachment(scanner interface {
	Scan(dest ...any) error
}) (models.Attachment, error) {
	var attachment models.Attachment
	var createTime string
	if err := scanner.Scan(
		&attachment.ID,
		&attachment.CreatorID,
		&attachment.Filename,
		&attachment.Type,
		&attachment.Size,
		&attachment.StorageType,
		&attachment.StorageKey,
		&createTime,
	); err != nil {
		return models.Attachment{}, WrapQueryError(err)
	}
	var err error
	attachment.CreateTime, err = parseTime(createTime)
	if err != nil {
		return models.Attachment{}, err
	}
	return attachment, nil
}
