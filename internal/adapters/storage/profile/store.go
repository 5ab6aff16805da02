package profile

import (
	"context"
	"errors"
	"strings"

	domain "coachportal/internal/domain/profile"
)

// Store sentinel errors. Anything else returned by a Store method is a
// transient store failure (unreachable database, policy-evaluation
// error) and callers are expected to recover rather than surface it.
var (
	ErrNotFound  = errors.New("profile not found")
	ErrDuplicate = errors.New("a profile with this email already exists")
)

// Conflict keys accepted by Upsert.
const (
	ConflictID    = "id"
	ConflictEmail = "email"
)

// Store persists Profile state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (domain.Profile, error)
	// Insert fails with ErrDuplicate when the email already has a row.
	Insert(ctx context.Context, p domain.Profile) error
	// Upsert inserts or updates keyed by the given conflict key; safe
	// to retry.
	Upsert(ctx context.Context, p domain.Profile, conflictKey string) error
	// Update applies a patch to the profile matched by ref (identity id
	// or email).
	Update(ctx context.Context, ref string, patch Patch) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Profile, error)
}

// Patch carries the mutable fields of an Update; nil fields are left
// untouched.
type Patch struct {
	ID     *string // set when linking a pre-auth row to its identity id
	Name   *string
	Role   *string
	Status *string
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// IsNotFound reports whether err is the missing-row sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err is the unique-violation sentinel.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// isUniqueViolation detects SQLite unique-constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
