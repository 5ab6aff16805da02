package orchestrators

import (
	"context"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

// ProfileStoreForListing defines the store interface needed by
// ListMembers.
type ProfileStoreForListing interface {
	List(ctx context.Context, filter profilestore.ListFilter) ([]profile.Profile, error)
}

// ListMembersInput carries input for the orchestrator.
type ListMembersInput struct {
	// Caller is the administrator viewing the member list.
	Caller profile.Profile
	Status string
	Limit  int
	Offset int
}

// ListMembersDeps holds dependencies for ListMembers.
type ListMembersDeps struct {
	ProfileStore ProfileStoreForListing
}

// ExecuteListMembers returns member profiles for the admin screen,
// pending requests first.
// PRE: Caller is an administrator
func ExecuteListMembers(ctx context.Context, input ListMembersInput, deps ListMembersDeps) ([]profile.Profile, error) {
	if !input.Caller.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return deps.ProfileStore.List(ctx, profilestore.ListFilter{
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
}
