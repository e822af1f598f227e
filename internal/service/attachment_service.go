package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/storage"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

type AttachmentService struct {
	store       *store.SQLStore
	storage     storage.Store
	storageType string
}

var (
	ErrInvalidFilename = errors.New("invalid filename")
	ErrEmptyAttachment = errors.New("attachment payload is empty")
)

func NewAttachmentService(s *store.SQLStore, fileStorage storage.Store, storageType string) *AttachmentService {
	return &AttachmentService{store: s, storage: fileStorage, storageType: storageType}
}

// Upload streams a payload into storage and records the attachment row.
// The storage key embeds a fresh id so identical filenames never
// collide.
func (s *AttachmentService) Upload(ctx context.Context, creator models.User, filename string, contentType string, reader io.Reader, size int64) (models.Attachment, error) {
	filename = sanitizeFilename(filename)
	if filename == "" {
		return models.Attachment{}, ErrInvalidFilename
	}
	if size == 0 {
		return models.Attachment{}, ErrEmptyAttachment
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := uuid.NewString()
	key := fmt.Sprintf("attachments/%d/%s/%s", creator.ID, id, filename)
	written, err := s.storage.PutStream(ctx, key, contentType, reader, size)
	if err != nil {
		return models.Attachment{}, err
	}

	attachment, err := s.store.CreateAttachment(ctx, models.Attachment{
		ID:          id,
		CreatorID:   creator.ID,
		Filename:    filename,
		Type:        contentType,
		Size:        written,
		StorageType: s.storageType,
		StorageKey:  key,
	})
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		return models.Attachment{}, err
	}
	return attachment, nil
}

func (s *AttachmentService) Get(ctx context.Context, id string) (models.Attachment, error) {
	return s.store.GetAttachmentByID(ctx, id)
}

func (s *AttachmentService) Open(ctx context.Context, id string) (models.Attachment, io.ReadCloser, error) {
	attachment, err := s.store.GetAttachmentByID(ctx, id)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	reader, err := s.storage.Open(ctx, attachment.StorageKey)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	return attachment, reader, nil
}

// OpenRange serves a byte range of the payload, [start, end] inclusive;
// a negative end reads to EOF.
func (s *AttachmentService) OpenRange(ctx context.Context, id string, start int64, end int64) (models.Attachment, io.ReadCloser, error) {
	attachment, err := s.store.GetAttachmentByID(ctx, id)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	reader, err := s.storage.OpenRange(ctx, attachment.StorageKey, start, end)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	return attachment, reader, nil
}

// Delete removes the payload first; a row without a payload is worse
// than a stray payload without a row.
func (s *AttachmentService) Delete(ctx context.Context, id string) error {
	attachment, err := s.store.GetAttachmentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, attachment.StorageKey); err != nil {
		return err
	}
	return s.store.DeleteAttachment(ctx, id)
}

func sanitizeFilename(raw string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
