package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"coachportal/internal/adapters/identity"
	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// DemoSeedDeps holds dependencies for demo account seeding.
type DemoSeedDeps struct {
	ProfileStore demoSeedProfileStore
	Gateway      demoSeedGateway
}

type demoSeedProfileStore interface {
	GetByEmail(ctx context.Context, email string) (profile.Profile, error)
	Upsert(ctx context.Context, p profile.Profile, conflictKey string) error
}

type demoSeedGateway interface {
	SignUp(ctx context.Context, email, password string) (identity.Identity, error)
	UpdatePassword(ctx context.Context, email, password string) error
}

// demoAccountDef defines a single demo account to seed.
type demoAccountDef struct {
	Email    string
	Password string
	Name     string
	Role     string
	Status   string
}

// demoAccounts returns the demo logins shown on the landing page in
// non-production environments.
func demoAccounts() []demoAccountDef {
	return []demoAccountDef{
		{
			Email:    "demo+coach@coachportal.test",
			Password: "DemoCoach1",
			Name:     "Demo Coach",
			Role:     profile.RoleCoach,
			Status:   profile.StatusActive,
		},
		{
			Email:    "demo+pending@coachportal.test",
			Password: "DemoPending1",
			Name:     "Demo Pending",
			Role:     profile.RoleCoach,
			Status:   profile.StatusPending,
		},
	}
}

// ExecuteSeedDemoAccounts creates the demo logins if they don't
// already exist. Idempotent, checked by profile email; demo accounts
// sign in through the normal credential path like every other member.
// PRE: Database is migrated; never called in production
// POST: Demo credentials and profiles exist
func ExecuteSeedDemoAccounts(ctx context.Context, deps DemoSeedDeps) error {
	created := 0
	for _, def := range demoAccounts() {
		_, err := deps.ProfileStore.GetByEmail(ctx, def.Email)
		if err == nil {
			continue // already seeded
		}
		if !profilestore.IsNotFound(err) {
			return fmt.Errorf("seed demo account %s: lookup: %w", def.Email, err)
		}

		ident, err := deps.Gateway.SignUp(ctx, def.Email, def.Password)
		if err != nil {
			// Credential may survive a deleted profile; reset it.
			if err := deps.Gateway.UpdatePassword(ctx, def.Email, def.Password); err != nil {
				return fmt.Errorf("seed demo account %s: credential: %w", def.Email, err)
			}
		}

		p := profile.Profile{
			ID:     ident.ID,
			Email:  def.Email,
			Name:   def.Name,
			Role:   def.Role,
			Status: def.Status,
		}
		if err := deps.ProfileStore.Upsert(ctx, p, profilestore.ConflictEmail); err != nil {
			return fmt.Errorf("seed demo account %s: save: %w", def.Email, err)
		}

		created++
		slog.Info("seed_event", "event", "demo_account_created", "email", def.Email, "status", def.Status)
	}

	if created > 0 {
		slog.Info("seed_event", "event", "demo_accounts_seeded", "created", created)
	}
	return nil
}
