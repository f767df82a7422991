package storage

import (
	"context"
	"io"
)

// Store persists uploaded image blobs and returns the public URL a message
// can reference.
type Store interface {
	Save(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}
