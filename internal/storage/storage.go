package storage

import (
	"context"
	"io"
)

// BlobStore holds raw upload bytes. The path handed back by Upload is the
// one persisted on the upload record and used for every later Download.
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}
