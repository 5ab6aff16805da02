package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"coachportal/internal/adapters/identity"
	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// ProfileStoreForBootstrap defines the store interface needed by
// BootstrapAdmin.
type ProfileStoreForBootstrap interface {
	List(ctx context.Context, filter profilestore.ListFilter) ([]profile.Profile, error)
	Upsert(ctx context.Context, p profile.Profile, conflictKey string) error
}

// GatewayForBootstrap authenticates or registers the operator-supplied
// admin credential.
type GatewayForBootstrap interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password string) (identity.Identity, error)
	SignOut(ctx context.Context) error
}

// BootstrapAdminInput carries the operator-supplied credentials.
type BootstrapAdminInput struct {
	Email    string
	Password string
}

// BootstrapAdminDeps holds dependencies for BootstrapAdmin.
type BootstrapAdminDeps struct {
	ProfileStore ProfileStoreForBootstrap
	Gateway      GatewayForBootstrap
}

// ExecuteBootstrapAdmin guarantees an administrator account exists.
// Failures are logged and swallowed: the portal stays usable without
// an administrator until the configuration is fixed.
// PRE: Database is initialized
// POST: One ADMIN/ACTIVE profile exists, or bootstrap was skipped
// INVARIANT: Re-running when an admin exists is a no-op
func ExecuteBootstrapAdmin(ctx context.Context, input BootstrapAdminInput, deps BootstrapAdminDeps) error {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		slog.Info("bootstrap_event", "event", "bootstrap_skipped", "reason", "no admin credentials configured")
		return nil
	}

	exists, err := adminExists(ctx, deps.ProfileStore)
	if err != nil {
		slog.Error("bootstrap_event", "event", "bootstrap_failed", "stage", "admin_query", "error", err)
		return nil
	}
	if exists {
		return nil
	}

	// The identity id is unknown until the credential authenticates
	// for the first time.
	var ident identity.Identity
	sess, err := deps.Gateway.SignInWithPassword(ctx, email, input.Password)
	if err == nil {
		ident = sess.Identity
		defer func() {
			_ = deps.Gateway.SignOut(ctx)
		}()
	} else {
		ident, err = deps.Gateway.SignUp(ctx, email, input.Password)
		if err != nil {
			slog.Error("bootstrap_event", "event", "bootstrap_failed", "stage", "credential", "email", email, "error", err)
			return nil
		}
	}

	p := profile.Profile{
		ID:     ident.ID,
		Email:  email,
		Name:   profile.DefaultName(ident.Name, email),
		Role:   profile.RoleAdmin,
		Status: profile.StatusActive,
	}

	if err := deps.ProfileStore.Upsert(ctx, p, profilestore.ConflictID); err != nil {
		// A pre-existing row for the email collides on the id upsert;
		// retry keyed by email.
		if err := deps.ProfileStore.Upsert(ctx, p, profilestore.ConflictEmail); err != nil {
			slog.Error("bootstrap_event", "event", "bootstrap_failed", "stage", "profile_upsert", "email", email, "error", err)
			return nil
		}
	}

	slog.Info("bootstrap_event", "event", "admin_bootstrapped", "email", email)
	return nil
}

func adminExists(ctx context.Context, store ProfileStoreForBootstrap) (bool, error) {
	all, err := store.List(ctx, profilestore.ListFilter{})
	if err != nil {
		return false, err
	}
	for _, p := range all {
		if p.IsAdmin() {
			return true, nil
		}
	}
	return false, nil
}
