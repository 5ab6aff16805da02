package credential

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

// NewSQLiteStore creates a new credential store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Credential by its id.
// PRE: id is non-empty
// POST: Returns the credential or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (Credential, error) {
	query := "SELECT id, email, password_hash, display_name, created_at FROM credential WHERE id = ?"
	row := s.db.QueryRowContext(ctx, query, id)

	entity, err := scanCredential(row.Scan)
	if err == sql.ErrNoRows {
		return Credential{}, ErrNotFound
	}
	return entity, err
}

// GetByEmail retrieves a Credential by email.
// PRE: email is non-empty
// POST: Returns the credential or ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (Credential, error) {
	query := "SELECT id, email, password_hash, display_name, created_at FROM credential WHERE email = ?"
	row := s.db.QueryRowContext(ctx, query, email)

	entity, err := scanCredential(row.Scan)
	if err == sql.ErrNoRows {
		return Credential{}, ErrNotFound
	}
	return entity, err
}

// Save persists a Credential (insert or update keyed by id).
// PRE: entity has id and email set
// POST: Row is present with the given values
func (s *SQLiteStore) Save(ctx context.Context, entity Credential) error {
	query := `INSERT INTO credential (id, email, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email=excluded.email,
			password_hash=excluded.password_hash,
			display_name=excluded.display_name`
	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		entity.Email,
		entity.PasswordHash,
		entity.DisplayName,
		entity.CreatedAt.Format(timeFormat),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Insert creates a new Credential row.
// PRE: entity has id and email set
// POST: Row created, or ErrDuplicate if the email is registered
func (s *SQLiteStore) Insert(ctx context.Context, entity Credential) error {
	query := "INSERT INTO credential (id, email, password_hash, display_name, created_at) VALUES (?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		entity.Email,
		entity.PasswordHash,
		entity.DisplayName,
		entity.CreatedAt.Format(timeFormat),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// scanCredential extracts a Credential from a row scanner function.
func scanCredential(scan func(dest ...any) error) (Credential, error) {
	var entity Credential
	var createdAt string
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.PasswordHash,
		&entity.DisplayName,
		&createdAt,
	)
	if err != nil {
		return Credential{}, err
	}
	entity.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return Credential{}, err
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
