// Package access maps a member profile to a gate decision: may this
// visitor enter the application, and if not, why.
package access

import (
	"coachportal/internal/domain/profile"
)

// Reason messages surfaced to the visitor when entry is denied.
const (
	ReasonDisabled       = "account disabled"
	ReasonAwaitingReview = "awaiting review"
	ReasonSetPassword    = "activate your password first"
)

// Decision is the outcome of gating a profile.
type Decision struct {
	Enterable       bool
	Reason          string
	SignOutRequired bool // true only for disabled accounts
}

// Evaluate is a pure mapping from profile status to a gate decision.
// It never mutates the profile and performs no I/O; the caller is
// responsible for acting on SignOutRequired.
// POST: Enterable is true only for ACTIVE profiles
// INVARIANT: INACTIVE always yields SignOutRequired and never Enterable
func Evaluate(p profile.Profile) Decision {
	switch p.Status {
	case profile.StatusActive:
		return Decision{Enterable: true}
	case profile.StatusInactive:
		return Decision{Reason: ReasonDisabled, SignOutRequired: true}
	case profile.StatusPending:
		return Decision{Reason: ReasonAwaitingReview}
	case profile.StatusApproved:
		return Decision{Reason: ReasonSetPassword}
	default:
		// Unknown status is treated like a pending request.
		return Decision{Reason: ReasonAwaitingReview}
	}
}
