package profile

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"coachportal/internal/adapters/storage"
	domain "coachportal/internal/domain/profile"
)

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new profile store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const selectColumns = "id, email, name, role, status"

// GetByID retrieves a Profile by its linked identity id.
// PRE: id is non-empty
// POST: Returns the profile or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	if id == "" {
		return domain.Profile{}, ErrNotFound
	}
	query := "SELECT " + selectColumns + " FROM profile WHERE id = ?"
	row := s.db.QueryRowContext(ctx, query, id)

	entity, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Profile{}, ErrNotFound
	}
	return entity, err
}

// GetByEmail retrieves a Profile by email. This is the lookup key for
// PENDING rows created before any identity exists.
// PRE: email is non-empty
// POST: Returns the profile or ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Profile, error) {
	query := "SELECT " + selectColumns + " FROM profile WHERE email = ?"
	row := s.db.QueryRowContext(ctx, query, email)

	entity, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Profile{}, ErrNotFound
	}
	return entity, err
}

// Insert creates a new Profile row.
// PRE: entity has been validated
// POST: Row created, or ErrDuplicate if the email is already taken
func (s *SQLiteStore) Insert(ctx context.Context, entity domain.Profile) error {
	query := "INSERT INTO profile (id, email, name, role, status, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		entity.Email,
		entity.Name,
		entity.Role,
		entity.Status,
		time.Now().Format(timeFormat),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Upsert inserts or updates a Profile keyed by the given conflict key.
// The email key exists because bootstrap does not know the identity id
// before the first successful authentication.
// PRE: conflictKey is ConflictID or ConflictEmail
// POST: Row is present with the given values; safe to retry
func (s *SQLiteStore) Upsert(ctx context.Context, entity domain.Profile, conflictKey string) error {
	if conflictKey != ConflictID && conflictKey != ConflictEmail {
		return fmt.Errorf("unsupported conflict key: %q", conflictKey)
	}

	fields := []string{"id", "email", "name", "role", "status", "created_at", "updated_at"}
	placeholders := []string{"?", "?", "?", "?", "?", "?", "?"}
	updates := []string{
		"name=excluded.name",
		"role=excluded.role",
		"status=excluded.status",
		"updated_at=excluded.updated_at",
	}
	// The conflict target must match the schema: email is plainly
	// unique, id is unique via a partial index that skips empty ids.
	var conflictClause string
	if conflictKey == ConflictID {
		updates = append(updates, "email=excluded.email")
		conflictClause = "ON CONFLICT(id) WHERE id != '' DO UPDATE SET "
	} else {
		updates = append(updates, "id=excluded.id")
		conflictClause = "ON CONFLICT(email) DO UPDATE SET "
	}

	now := time.Now().Format(timeFormat)
	query := fmt.Sprintf(
		"INSERT INTO profile (%s) VALUES (%s) %s%s",
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
		conflictClause,
		strings.Join(updates, ", "),
	)

	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		entity.Email,
		entity.Name,
		entity.Role,
		entity.Status,
		now,
		now,
	)
	// A violation on the other unique column (e.g. email when keyed by
	// id) is reported as ErrDuplicate so callers can retry with the
	// fallback conflict key.
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Update applies a patch to the profile matched by ref (identity id or
// email).
// PRE: ref is non-empty; at least one patch field is set
// POST: Matched row updated, or ErrNotFound
func (s *SQLiteStore) Update(ctx context.Context, ref string, patch Patch) error {
	var sets []string
	var args []any
	if patch.ID != nil {
		sets = append(sets, "id = ?")
		args = append(args, *patch.ID)
	}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *patch.Role)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if len(sets) == 0 {
		return fmt.Errorf("empty patch for profile %q", ref)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().Format(timeFormat))

	query := fmt.Sprintf("UPDATE profile SET %s WHERE id = ? OR email = ?", strings.Join(sets, ", "))
	args = append(args, ref, ref)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the total number of profiles.
// POST: Returns total profile count
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profile").Scan(&count)
	return count, err
}

// List retrieves Profiles based on the filter, ordered by status so
// pending requests surface first in the admin listing.
// PRE: filter has valid parameters
// POST: Returns matching profiles
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Profile, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString("SELECT " + selectColumns + " FROM profile")

	if filter.Status != "" {
		queryBuilder.WriteString(" WHERE status = ?")
		args = append(args, filter.Status)
	}

	queryBuilder.WriteString(" ORDER BY status ASC, created_at DESC")
	if filter.Limit > 0 {
		queryBuilder.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Profile
	for rows.Next() {
		entity, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// scanProfile extracts a Profile from a row scanner function.
func scanProfile(scan func(dest ...any) error) (domain.Profile, error) {
	var entity domain.Profile
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.Name,
		&entity.Role,
		&entity.Status,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	return entity, nil
}
