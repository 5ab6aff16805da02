package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// ProfileStoreForApproval defines the store interface needed by
// ApproveMember.
type ProfileStoreForApproval interface {
	GetByEmail(ctx context.Context, email string) (profile.Profile, error)
	GetByID(ctx context.Context, id string) (profile.Profile, error)
	Update(ctx context.Context, ref string, patch profilestore.Patch) error
}

// GatewayForApproval dispatches the activation email through the
// identity provider.
type GatewayForApproval interface {
	SendPasswordResetEmail(ctx context.Context, email, redirectTarget string) error
}

// ApproveMemberInput carries input for the orchestrator.
type ApproveMemberInput struct {
	// Ref is the identity id or email of the profile to approve.
	Ref string
	// Caller is the administrator performing the approval.
	Caller profile.Profile
	// BaseURL is the portal's public address, used to build the
	// activation link.
	BaseURL string
}

// ApproveMemberDeps holds dependencies for ApproveMember.
type ApproveMemberDeps struct {
	ProfileStore ProfileStoreForApproval
	Gateway      GatewayForApproval
}

var (
	ErrNotAuthorized  = errors.New("administrator role required")
	ErrMemberNotFound = errors.New("no profile matches this reference")
)

// ExecuteApproveMember moves a profile from PENDING to APPROVED and
// dispatches the activation email. Approving twice is a no-op so the
// admin action can be retried; the email is re-sent each time.
// PRE: Caller is an administrator; profile is PENDING or APPROVED
// POST: Profile status is APPROVED and an activation email was sent
func ExecuteApproveMember(ctx context.Context, input ApproveMemberInput, deps ApproveMemberDeps) error {
	if !input.Caller.IsAdmin() {
		return ErrNotAuthorized
	}

	p, err := findProfile(ctx, deps.ProfileStore, input.Ref)
	if err != nil {
		return err
	}

	if err := p.Approve(); err != nil {
		return err
	}

	status := p.Status
	if err := deps.ProfileStore.Update(ctx, input.Ref, profilestore.Patch{Status: &status}); err != nil {
		return err
	}

	target := activationTarget(input.BaseURL, p.Email)
	if err := deps.Gateway.SendPasswordResetEmail(ctx, p.Email, target); err != nil {
		// The status change stands; the admin can re-approve to retry
		// the email.
		slog.Error("membership_event", "event", "activation_email_failed", "email", p.Email, "error", err)
		return err
	}

	slog.Info("membership_event", "event", "member_approved", "email", p.Email, "by", input.Caller.Email)
	return nil
}

// activationTarget builds the link the activation email points at. The
// email query parameter routes the visitor straight to the
// password-set screen.
func activationTarget(baseURL, email string) string {
	return baseURL + "/?activate=" + url.QueryEscape(email)
}

// findProfile resolves a ref that may be an identity id or an email.
func findProfile(ctx context.Context, store ProfileStoreForApproval, ref string) (profile.Profile, error) {
	p, err := store.GetByID(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !profilestore.IsNotFound(err) {
		return profile.Profile{}, err
	}
	p, err = store.GetByEmail(ctx, ref)
	if profilestore.IsNotFound(err) {
		return profile.Profile{}, ErrMemberNotFound
	}
	return p, err
}
