package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore writes blobs to a local directory served under /uploads.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) *DiskStore {
	return &DiskStore{dir: dir, baseURL: baseURL}
}

var _ Store = (*DiskStore)(nil)

func (s *DiskStore) Save(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	// filename is generated by the caller; reject anything path-like anyway.
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	dest := filepath.Join(s.dir, filename)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}
	return fmt.Sprintf("%s/uploads/%s", s.baseURL, filename), nil
}
