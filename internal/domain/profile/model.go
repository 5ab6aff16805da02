package profile

import (
	"errors"
	"strings"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength = 254
	MaxNameLength  = 120
)

// Role constants
const (
	RoleAdmin = "ADMIN"
	RoleCoach = "COACH"
)

// Status lifecycle constants
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleCoach}

// ValidStatuses contains all valid status values.
var ValidStatuses = []string{StatusPending, StatusApproved, StatusActive, StatusInactive}

// Domain errors
var (
	ErrEmptyEmail    = errors.New("email cannot be empty")
	ErrInvalidEmail  = errors.New("email must contain '@'")
	ErrInvalidRole   = errors.New("role must be one of: ADMIN, COACH")
	ErrInvalidStatus = errors.New("status must be one of: PENDING, APPROVED, ACTIVE, INACTIVE")
	ErrNotPending    = errors.New("profile is not awaiting review")
	ErrDisabled      = errors.New("profile is disabled")
	ErrNotToggleable = errors.New("only active or inactive profiles can be toggled")
)

// Profile is the durable authorization record for a member. It is
// distinct from the identity gateway's credential: a PENDING profile
// exists before any credential does, keyed by email, and gets linked
// to an identity id once the member first authenticates.
type Profile struct {
	ID     string // identity id once linked; empty for pre-auth rows
	Email  string
	Name   string
	Role   string
	Status string
}

// Validate checks if the Profile has valid data.
// PRE: Profile struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Email) == "" {
		return ErrEmptyEmail
	}
	if len(p.Email) > MaxEmailLength {
		return errors.New("email cannot exceed 254 characters")
	}
	if !strings.Contains(p.Email, "@") {
		return ErrInvalidEmail
	}
	if len(p.Name) > MaxNameLength {
		return errors.New("name cannot exceed 120 characters")
	}
	if !contains(ValidRoles, p.Role) {
		return ErrInvalidRole
	}
	if !contains(ValidStatuses, p.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// Approve transitions the profile from PENDING to APPROVED.
// Approving an already-approved profile is a no-op so the admin action
// can be retried safely.
// PRE: Status is PENDING or APPROVED
// POST: Status is APPROVED
func (p *Profile) Approve() error {
	if p.Status == StatusApproved {
		return nil
	}
	if p.Status != StatusPending {
		return ErrNotPending
	}
	p.Status = StatusApproved
	return nil
}

// Activate transitions the profile to ACTIVE after a password has been
// set. Profiles created outside the approval flow (bootstrap, fallback
// heal) may activate without passing through APPROVED.
// PRE: Status is not INACTIVE
// POST: Status is ACTIVE
func (p *Profile) Activate() error {
	if p.Status == StatusInactive {
		return ErrDisabled
	}
	p.Status = StatusActive
	return nil
}

// ToggleStatus flips ACTIVE to INACTIVE and back.
// PRE: Status is ACTIVE or INACTIVE
// POST: Status is the opposite of the previous value
func (p *Profile) ToggleStatus() error {
	switch p.Status {
	case StatusActive:
		p.Status = StatusInactive
	case StatusInactive:
		p.Status = StatusActive
	default:
		return ErrNotToggleable
	}
	return nil
}

// IsAdmin returns true if the profile has the ADMIN role.
// INVARIANT: Profile fields are not mutated
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsActive returns true if the profile may enter the application.
// INVARIANT: Profile fields are not mutated
func (p *Profile) IsActive() bool {
	return p.Status == StatusActive
}

// DefaultName derives a display name from a claim or the local part of
// the email address.
// PRE: email contains '@' if claim is empty
// POST: Returns claim when set, otherwise the email local part
func DefaultName(claim, email string) string {
	if strings.TrimSpace(claim) != "" {
		return strings.TrimSpace(claim)
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
