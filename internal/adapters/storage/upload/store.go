package upload

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store sentinel errors.
var (
	ErrNotFound  = errors.New("upload not found")
	ErrDuplicate = errors.New("an upload with this object key already exists")
)

// Upload is the metadata row for an object kept in the bucket.
type Upload struct {
	ID          string
	UploaderID  string
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	PublicURL   string
	CreatedAt   time.Time
}

// Store persists upload metadata.
type Store interface {
	GetByID(ctx context.Context, id string) (Upload, error)
	Insert(ctx context.Context, u Upload) error
	Delete(ctx context.Context, id string) error
	ListByUploader(ctx context.Context, uploaderID string) ([]Upload, error)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
