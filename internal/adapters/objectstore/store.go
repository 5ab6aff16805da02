// Package objectstore holds the narrow interface to the bucket that
// keeps profile photos and exercise attachments.
package objectstore

import (
	"context"
	"io"
)

// Store is the object-storage surface the portal consumes. Uploaded
// bytes live in the bucket; metadata rows live in the upload table.
type Store interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// PublicURL returns the address a browser can fetch the object
	// from, or "" when the bucket is private.
	PublicURL(key string) string
}
