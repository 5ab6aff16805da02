// Package resolve turns an authenticated identity into a member
// profile, creating one when the store has no row for it yet. It owns
// the first-user-becomes-administrator rule and the fallback used when
// the store misbehaves.
package resolve

import (
	"context"
	"log/slog"
	"time"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// Identity is the minimal slice of the gateway's identity the resolver
// needs. Kept local so the package does not depend on the gateway.
type Identity struct {
	ID    string
	Email string
	Name  string // optional display-name claim
}

// Resolver resolves identities to profiles.
type Resolver struct {
	store profilestore.Store

	// upsertTimeout bounds the background heal writes so a hung store
	// does not leak goroutines forever.
	upsertTimeout time.Duration
}

// NewResolver builds a Resolver backed by the given store.
func NewResolver(store profilestore.Store) *Resolver {
	return &Resolver{store: store, upsertTimeout: 10 * time.Second}
}

// Resolve returns the profile for an authenticated identity. It never
// returns an error: store failures degrade to a synthesized fallback
// so an authenticated visitor is not locked out by a store-side
// misconfiguration.
// PRE: identity carries a non-empty email
// POST: the returned profile has a valid role and status
func (r *Resolver) Resolve(ctx context.Context, ident Identity) profile.Profile {
	// Primary lookup by identity id, then by email for rows created
	// before the member ever authenticated (membership requests).
	p, err := r.store.GetByID(ctx, ident.ID)
	if err == nil {
		return p
	}
	if !profilestore.IsNotFound(err) {
		return r.fallback(ident, err)
	}

	p, err = r.store.GetByEmail(ctx, ident.Email)
	if err == nil {
		if p.ID == "" {
			// Legacy row: link it to the identity in the background.
			r.link(ident.ID, p.Email)
		}
		return p
	}
	if !profilestore.IsNotFound(err) {
		return r.fallback(ident, err)
	}

	return r.synthesize(ctx, ident)
}

// synthesize builds a brand-new profile for an identity with no row.
// The very first profile ever created becomes the administrator.
func (r *Resolver) synthesize(ctx context.Context, ident Identity) profile.Profile {
	p := profile.Profile{
		ID:     ident.ID,
		Email:  ident.Email,
		Name:   profile.DefaultName(ident.Name, ident.Email),
		Role:   profile.RoleCoach,
		Status: profile.StatusPending,
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		// Cannot tell whether this is the first member; do not guess
		// admin. Least privilege applies.
		slog.Warn("profile_event", "event", "count_failed", "email", ident.Email, "error", err)
	} else if count == 0 {
		p.Role = profile.RoleAdmin
		p.Status = profile.StatusActive
		slog.Info("profile_event", "event", "first_user_admin", "email", ident.Email)
	}

	r.persist(p)
	return p
}

// fallback synthesizes a profile purely from identity claims when the
// store read failed. ACTIVE so the visitor gets in, COACH so a store
// outage never grants administrator rights.
func (r *Resolver) fallback(ident Identity, cause error) profile.Profile {
	slog.Warn("profile_event", "event", "store_read_failed", "email", ident.Email, "error", cause)
	p := profile.Profile{
		ID:     ident.ID,
		Email:  ident.Email,
		Name:   profile.DefaultName(ident.Name, ident.Email),
		Role:   profile.RoleCoach,
		Status: profile.StatusActive,
	}
	r.persist(p)
	return p
}

// persist writes the profile in the background. The caller is never
// blocked on write confirmation; a failed write is simply retried on
// the next reconciliation, which re-synthesizes the same outcome.
func (r *Resolver) persist(p profile.Profile) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.upsertTimeout)
		defer cancel()
		if err := r.store.Upsert(ctx, p, profilestore.ConflictID); err != nil {
			slog.Warn("profile_event", "event", "background_upsert_failed", "email", p.Email, "error", err)
		}
	}()
}

// link attaches an identity id to a pre-auth row keyed by email.
func (r *Resolver) link(id, email string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.upsertTimeout)
		defer cancel()
		if err := r.store.Update(ctx, email, profilestore.Patch{ID: &id}); err != nil {
			slog.Warn("profile_event", "event", "identity_link_failed", "email", email, "error", err)
		}
	}()
}
