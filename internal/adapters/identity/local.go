package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	emailAdapter "coachportal/internal/adapters/email"
	"coachportal/internal/adapters/storage/credential"
)

// MinPasswordLength mirrors the hosted provider's default rule.
const MinPasswordLength = 6

// SessionTTL bounds how long an issued token stays valid.
const SessionTTL = 24 * time.Hour

// Service is the local identity provider: bcrypt-hashed credentials in
// the credential store, in-memory session tokens, and reset emails via
// the email sender. Visitors interact through per-visitor Client
// handles created with NewClient.
type Service struct {
	creds  credential.Store
	sender emailAdapter.Sender

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates the shared gateway backend.
// PRE: creds and sender are non-nil
// POST: Returns a ready-to-use service
func NewService(creds credential.Store, sender emailAdapter.Sender) *Service {
	return &Service{
		creds:    creds,
		sender:   sender,
		sessions: make(map[string]*Session),
	}
}

// lookupSession returns the stored session for a token, expiring stale
// entries on read.
func (s *Service) lookupSession(token string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	if time.Since(sess.CreatedAt) > SessionTTL {
		delete(s.sessions, token)
		return nil
	}
	return sess
}

func (s *Service) storeSession(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
}

func (s *Service) dropSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Client is a per-visitor gateway handle. It owns the visitor's
// current-session slot and subscriber list; the credential and session
// backends are shared through the Service.
type Client struct {
	service *Service

	mu      sync.Mutex
	current string // token of the visitor's session, if any
	nextSub int
	subs    map[int]func(Event)
}

// Compile-time check that *Client satisfies Gateway.
var _ Gateway = (*Client)(nil)

// NewClient creates a gateway handle for one visitor.
func (s *Service) NewClient() *Client {
	return &Client{
		service: s,
		subs:    make(map[int]func(Event)),
	}
}

// Resume attaches the client to a previously issued session token, as
// when a returning browser presents its cookie. Unknown or expired
// tokens leave the client signed out.
func (c *Client) Resume(token string) {
	if token == "" {
		return
	}
	if sess := c.service.lookupSession(token); sess != nil {
		c.mu.Lock()
		c.current = sess.Token
		c.mu.Unlock()
	}
}

// GetCurrentSession returns the visitor's session, or nil when signed
// out.
// POST: Returns a copy of the session or nil; never mutates state
func (c *Client) GetCurrentSession(_ context.Context) (*Session, error) {
	c.mu.Lock()
	token := c.current
	c.mu.Unlock()
	if token == "" {
		return nil, nil
	}
	sess := c.service.lookupSession(token)
	if sess == nil {
		// Token expired since last use; forget it.
		c.mu.Lock()
		if c.current == token {
			c.current = ""
		}
		c.mu.Unlock()
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

// SignInWithPassword authenticates a credential and starts a session.
// PRE: email and password are non-empty
// POST: On success the session is current and a signed-in event is
// dispatched; on failure ErrInvalidCredentials
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	cred, err := c.service.creds.GetByEmail(ctx, email)
	if err != nil {
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "not_found")
		return nil, ErrInvalidCredentials
	}
	if cred.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "wrong_password")
		return nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	sess := &Session{
		Token: token,
		Identity: Identity{
			ID:    cred.ID,
			Email: cred.Email,
			Name:  cred.DisplayName,
		},
		CreatedAt: time.Now(),
	}
	c.service.storeSession(sess)

	c.mu.Lock()
	c.current = token
	c.mu.Unlock()

	slog.Info("auth_event", "event", "login_success", "email", email)

	copied := *sess
	c.notify(Event{Type: EventSignedIn, Session: &copied})
	return &copied, nil
}

// SignUp registers a new credential without starting a session.
// PRE: email is non-empty; password meets the minimum length
// POST: Credential persisted, or ErrEmailTaken
func (c *Client) SignUp(ctx context.Context, email, password string) (Identity, error) {
	if len(password) < MinPasswordLength {
		return Identity{}, ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, err
	}

	cred := credential.Credential{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := c.service.creds.Insert(ctx, cred); err != nil {
		if credential.IsDuplicate(err) {
			return Identity{}, ErrEmailTaken
		}
		return Identity{}, err
	}

	slog.Info("auth_event", "event", "signup", "email", email)
	return Identity{ID: cred.ID, Email: cred.Email}, nil
}

// UpdatePassword sets the password for the credential registered under
// email, creating the credential when absent.
// PRE: password meets the minimum length
// POST: Credential exists with the new password hash
func (c *Client) UpdatePassword(ctx context.Context, email, password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	cred, err := c.service.creds.GetByEmail(ctx, email)
	if err != nil {
		if !credential.IsNotFound(err) {
			return err
		}
		cred = credential.Credential{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: time.Now(),
		}
	}
	cred.PasswordHash = string(hash)

	if err := c.service.creds.Save(ctx, cred); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "password_set", "email", email)
	return nil
}

// SignOut ends the visitor's session.
// POST: No current session; a signed-out event is dispatched. Signing
// out while already signed out is a no-op that still notifies, so a
// consumer stuck on a stale session converges to unauthenticated.
func (c *Client) SignOut(_ context.Context) error {
	c.mu.Lock()
	token := c.current
	c.current = ""
	c.mu.Unlock()

	if token != "" {
		c.service.dropSession(token)
		slog.Info("auth_event", "event", "logout")
	}
	c.notify(Event{Type: EventSignedOut})
	return nil
}

// SendPasswordResetEmail dispatches the activation/reset email.
// PRE: email is non-empty; redirectTarget is the absolute activation URL
// POST: Email handed to the sender; failures are returned, not retried
func (c *Client) SendPasswordResetEmail(ctx context.Context, email, redirectTarget string) error {
	req, err := emailAdapter.ActivationRequest(email, "", redirectTarget)
	if err != nil {
		return err
	}
	if _, err := c.service.sender.Send(ctx, req); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// OnSessionChange registers a callback for session-change events.
// Events are delivered on their own goroutine and may interleave with
// an in-progress probe; consumers must apply their own ordering.
// POST: Returns an idempotent unsubscribe handle
func (c *Client) OnSessionChange(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// CurrentToken returns the visitor's session token for cookie storage,
// or empty when signed out.
func (c *Client) CurrentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// notify dispatches an event to all subscribers asynchronously.
func (c *Client) notify(e Event) {
	c.mu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		go fn(e)
	}
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
