package credential

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store sentinel errors.
var (
	ErrNotFound  = errors.New("credential not found")
	ErrDuplicate = errors.New("a credential with this email already exists")
)

// Credential is a registered login record owned by the identity
// gateway. It exists for the lifetime of the credential and is
// unrelated to the Profile lifecycle.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// Store persists Credential state for the local identity gateway.
type Store interface {
	GetByID(ctx context.Context, id string) (Credential, error)
	GetByEmail(ctx context.Context, email string) (Credential, error)
	// Save inserts or updates keyed by id.
	Save(ctx context.Context, c Credential) error
	// Insert fails with ErrDuplicate when the email is already registered.
	Insert(ctx context.Context, c Credential) error
}

// IsNotFound reports whether err is the missing-row sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err is the unique-violation sentinel.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
