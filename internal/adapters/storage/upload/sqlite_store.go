package upload

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coachportal/internal/adapters/storage"
)

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new upload store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Upload by its id.
// PRE: id is non-empty
// POST: Returns the upload or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (Upload, error) {
	query := "SELECT id, uploader_id, object_key, content_type, size_bytes, public_url, created_at FROM upload WHERE id = ?"
	row := s.db.QueryRowContext(ctx, query, id)

	entity, err := scanUpload(row.Scan)
	if err == sql.ErrNoRows {
		return Upload{}, ErrNotFound
	}
	return entity, err
}

// Insert creates a new Upload row.
// PRE: entity has id and object_key set
// POST: Row created, or ErrDuplicate on a key collision
func (s *SQLiteStore) Insert(ctx context.Context, entity Upload) error {
	query := "INSERT INTO upload (id, uploader_id, object_key, content_type, size_bytes, public_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		entity.UploaderID,
		entity.ObjectKey,
		entity.ContentType,
		entity.SizeBytes,
		entity.PublicURL,
		entity.CreatedAt.Format(timeFormat),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes an Upload row.
// PRE: id is non-empty
// POST: No row with the given id remains
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM upload WHERE id = ?", id)
	return err
}

// ListByUploader returns a member's uploads, newest first.
func (s *SQLiteStore) ListByUploader(ctx context.Context, uploaderID string) ([]Upload, error) {
	query := "SELECT id, uploader_id, object_key, content_type, size_bytes, public_url, created_at FROM upload WHERE uploader_id = ? ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, uploaderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		entity, err := scanUpload(rows.Scan)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, entity)
	}
	return uploads, rows.Err()
}

func scanUpload(scan func(dest ...any) error) (Upload, error) {
	var entity Upload
	var createdAt string
	err := scan(
		&entity.ID,
		&entity.UploaderID,
		&entity.ObjectKey,
		&entity.ContentType,
		&entity.SizeBytes,
		&entity.PublicURL,
		&createdAt,
	)
	if err != nil {
		return Upload{}, err
	}
	entity.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return Upload{}, err
	}
	return entity, nil
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}
