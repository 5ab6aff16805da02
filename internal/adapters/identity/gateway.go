package identity

import (
	"context"
	"errors"
	"time"
)

// Identity is a credential record as seen by the rest of the system:
// opaque id, email, and an optional display-name claim. Read-only
// outside this package.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// Session is an authenticated session issued by the gateway.
type Session struct {
	Token     string
	Identity  Identity
	CreatedAt time.Time
}

// EventType distinguishes session-change notifications.
type EventType string

const (
	EventSignedIn  EventType = "signed-in"
	EventSignedOut EventType = "signed-out"
)

// Event is an asynchronous session-change notification. Session is set
// for signed-in events and nil for signed-out.
type Event struct {
	Type    EventType
	Session *Session
}

// Gateway errors (the IdentityError class: surfaced to the user as
// messages, never mutate access state by themselves).
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email is already registered")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrNoSession          = errors.New("no active session")
)

// Gateway is the narrow interface to the identity provider, scoped to
// one visitor: each browser session holds its own gateway handle with
// its own current-session slot and change-notification stream.
// Notifications are delivered asynchronously and may overlap with an
// in-progress GetCurrentSession probe; consumers must tolerate
// duplicate and out-of-order delivery.
type Gateway interface {
	// GetCurrentSession returns the visitor's session, or nil when
	// signed out.
	GetCurrentSession(ctx context.Context) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp registers a credential without starting a session.
	SignUp(ctx context.Context, email, password string) (Identity, error)
	// UpdatePassword sets the password for the credential registered
	// under email, creating the credential when absent. Keyed by email
	// because activation runs before any session exists.
	UpdatePassword(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	// SendPasswordResetEmail dispatches the activation/reset email with
	// a link to redirectTarget.
	SendPasswordResetEmail(ctx context.Context, email, redirectTarget string) error
	// OnSessionChange registers a callback for session-change events and
	// returns an unsubscribe handle.
	OnSessionChange(fn func(Event)) (unsubscribe func())
}
