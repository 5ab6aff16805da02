package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// ToggleStatusInput carries input for the orchestrator.
type ToggleStatusInput struct {
	// Ref is the identity id or email of the profile to toggle.
	Ref string
	// Caller is the administrator performing the change.
	Caller profile.Profile
}

// ToggleStatusDeps holds dependencies for ToggleStatus.
type ToggleStatusDeps struct {
	ProfileStore ProfileStoreForApproval
}

var ErrSelfLockout = errors.New("administrators cannot change their own account")

// ExecuteToggleStatus flips a member between ACTIVE and INACTIVE.
// Rejected on the caller's own profile so an administrator cannot lock
// themselves out.
// PRE: Caller is an administrator; ref is not the caller's own profile
// POST: Status flipped between ACTIVE and INACTIVE
func ExecuteToggleStatus(ctx context.Context, input ToggleStatusInput, deps ToggleStatusDeps) (string, error) {
	if !input.Caller.IsAdmin() {
		return "", ErrNotAuthorized
	}
	if isSelf(input.Caller, input.Ref) {
		return "", ErrSelfLockout
	}

	p, err := findProfile(ctx, deps.ProfileStore, input.Ref)
	if err != nil {
		return "", err
	}

	if err := p.ToggleStatus(); err != nil {
		return "", err
	}

	status := p.Status
	if err := deps.ProfileStore.Update(ctx, input.Ref, profilestore.Patch{Status: &status}); err != nil {
		return "", err
	}

	slog.Info("membership_event", "event", "status_toggled", "email", p.Email, "status", status, "by", input.Caller.Email)
	return status, nil
}

// isSelf matches a ref against the caller's id and email.
func isSelf(caller profile.Profile, ref string) bool {
	if ref == "" {
		return false
	}
	return (caller.ID != "" && ref == caller.ID) || ref == caller.Email
}
