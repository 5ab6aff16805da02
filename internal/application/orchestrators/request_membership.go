package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// ProfileStoreForRequest defines the store interface needed by
// RequestMembership.
type ProfileStoreForRequest interface {
	Insert(ctx context.Context, p profile.Profile) error
}

// RequestMembershipInput carries input for the orchestrator.
type RequestMembershipInput struct {
	Email string
	Name  string
}

// RequestMembershipDeps holds dependencies for RequestMembership.
type RequestMembershipDeps struct {
	ProfileStore ProfileStoreForRequest
}

var ErrDuplicateRequest = errors.New("a membership request for this email already exists")

// ExecuteRequestMembership records a self-service membership request.
// PRE: Valid email, no existing row for it
// POST: A PENDING coach profile exists for the email
// INVARIANT: Email must be unique
func ExecuteRequestMembership(ctx context.Context, input RequestMembershipInput, deps RequestMembershipDeps) error {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	p := profile.Profile{
		Email:  email,
		Name:   profile.DefaultName(input.Name, email),
		Role:   profile.RoleCoach,
		Status: profile.StatusPending,
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if err := deps.ProfileStore.Insert(ctx, p); err != nil {
		if profilestore.IsDuplicate(err) {
			return ErrDuplicateRequest
		}
		return err
	}

	slog.Info("membership_event", "event", "membership_requested", "email", email)
	return nil
}
