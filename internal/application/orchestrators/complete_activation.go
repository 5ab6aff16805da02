package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// ProfileStoreForActivation defines the store interface needed by
// CompleteActivation.
type ProfileStoreForActivation interface {
	GetByEmail(ctx context.Context, email string) (profile.Profile, error)
	Update(ctx context.Context, ref string, patch profilestore.Patch) error
}

// GatewayForActivation sets the member's credential.
type GatewayForActivation interface {
	UpdatePassword(ctx context.Context, email, password string) error
}

// CompleteActivationInput carries input for the orchestrator.
type CompleteActivationInput struct {
	Email       string
	NewPassword string
}

// CompleteActivationDeps holds dependencies for CompleteActivation.
type CompleteActivationDeps struct {
	ProfileStore ProfileStoreForActivation
	Gateway      GatewayForActivation
}

// ExecuteCompleteActivation finishes the invitation flow: the member
// follows the activation link, chooses a password, and becomes ACTIVE.
// Profiles invited outside the approval flow activate directly.
// PRE: A profile exists for the email and is not INACTIVE
// POST: The credential holds the new password and the profile is ACTIVE
func ExecuteCompleteActivation(ctx context.Context, input CompleteActivationInput, deps CompleteActivationDeps) error {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	p, err := deps.ProfileStore.GetByEmail(ctx, email)
	if err != nil {
		if profilestore.IsNotFound(err) {
			return ErrMemberNotFound
		}
		return err
	}

	if err := p.Activate(); err != nil {
		return err
	}

	// Credential first: a password that fails validation must not leave
	// the profile ACTIVE without a working login.
	if err := deps.Gateway.UpdatePassword(ctx, email, input.NewPassword); err != nil {
		return err
	}

	status := p.Status
	if err := deps.ProfileStore.Update(ctx, email, profilestore.Patch{Status: &status}); err != nil {
		return err
	}

	slog.Info("membership_event", "event", "activation_completed", "email", email)
	return nil
}
