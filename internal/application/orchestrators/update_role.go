package orchestrators

import (
	"context"
	"log/slog"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// UpdateRoleInput carries input for the orchestrator.
type UpdateRoleInput struct {
	// Ref is the identity id or email of the profile to change.
	Ref     string
	NewRole string
	// Caller is the administrator performing the change.
	Caller profile.Profile
}

// UpdateRoleDeps holds dependencies for UpdateRole.
type UpdateRoleDeps struct {
	ProfileStore ProfileStoreForApproval
}

// ExecuteUpdateRole sets a member's role. Rejected on the caller's own
// profile so the last administrator cannot demote themselves.
// PRE: Caller is an administrator; ref is not the caller's own profile
// POST: Profile role equals NewRole
func ExecuteUpdateRole(ctx context.Context, input UpdateRoleInput, deps UpdateRoleDeps) error {
	if !input.Caller.IsAdmin() {
		return ErrNotAuthorized
	}
	if isSelf(input.Caller, input.Ref) {
		return ErrSelfLockout
	}

	p, err := findProfile(ctx, deps.ProfileStore, input.Ref)
	if err != nil {
		return err
	}

	p.Role = input.NewRole
	if err := p.Validate(); err != nil {
		return err
	}

	role := p.Role
	if err := deps.ProfileStore.Update(ctx, input.Ref, profilestore.Patch{Role: &role}); err != nil {
		return err
	}

	slog.Info("membership_event", "event", "role_updated", "email", p.Email, "role", role, "by", input.Caller.Email)
	return nil
}
