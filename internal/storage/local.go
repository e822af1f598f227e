package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps attachment payloads under a single root directory.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Put(ctx context.Context, key string, contentType string, data []byte) (int64, error) {
	return s.PutStream(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
}

func (s *DiskStore) PutStream(_ context.Context, key string, _ string, reader io.Reader, size int64) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create attachment parent: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create attachment file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, reader)
	if err != nil {
		return 0, fmt.Errorf("write attachment file: %w", err)
	}
	if size >= 0 && written != size {
		return 0, fmt.Errorf("write attachment file: size mismatch expected=%d actual=%d", size, written)
	}
	return written, nil
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *DiskStore) OpenRange(_ context.Context, key string, start int64, end int64) (io.ReadCloser, error) {
	if start < 0 {
		return nil, fmt.Errorf("invalid range start")
	}
	if end >= 0 && end < start {
		return nil, fmt.Errorf("invalid range end")
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek attachment file: %w", err)
	}
	if end < 0 {
		return f, nil
	}
	return &limitedReadCloser{
		Reader: io.LimitReader(f, end-start+1),
		Closer: f,
	}, nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

// resolve maps a storage key to a path under root, rejecting traversal.
func (s *DiskStore) resolve(key string) (string, error) {
	cleaned := filepath.ToSlash(filepath.Clean(strings.TrimSpace(key)))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid storage key")
	}
	path := filepath.Join(s.root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid storage key traversal")
	}
	return path, nil
}
