package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	profilestore "coachportal/internal/adapters/storage/profile"
	"coachportal/internal/domain/profile"
)

type mockProfileStore struct {
	mu       sync.Mutex
	byID     map[string]profile.Profile
	byEmail  map[string]profile.Profile
	readErr  error // returned by GetByID/GetByEmail when set
	countErr error

	upserts chan profile.Profile
	updates chan profilestore.Patch
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{
		byID:    make(map[string]profile.Profile),
		byEmail: make(map[string]profile.Profile),
		upserts: make(chan profile.Profile, 8),
		updates: make(chan profilestore.Patch, 8),
	}
}

func (m *mockProfileStore) GetByID(_ context.Context, id string) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return profile.Profile{}, m.readErr
	}
	p, ok := m.byID[id]
	if !ok {
		return profile.Profile{}, profilestore.ErrNotFound
	}
	return p, nil
}

func (m *mockProfileStore) GetByEmail(_ context.Context, email string) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return profile.Profile{}, m.readErr
	}
	p, ok := m.byEmail[email]
	if !ok {
		return profile.Profile{}, profilestore.ErrNotFound
	}
	return p, nil
}

func (m *mockProfileStore) Insert(_ context.Context, p profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[p.Email]; ok {
		return profilestore.ErrDuplicate
	}
	m.byEmail[p.Email] = p
	if p.ID != "" {
		m.byID[p.ID] = p
	}
	return nil
}

func (m *mockProfileStore) Upsert(_ context.Context, p profile.Profile, _ string) error {
	m.mu.Lock()
	m.byEmail[p.Email] = p
	if p.ID != "" {
		m.byID[p.ID] = p
	}
	m.mu.Unlock()
	m.upserts <- p
	return nil
}

func (m *mockProfileStore) Update(_ context.Context, _ string, patch profilestore.Patch) error {
	m.updates <- patch
	return nil
}

func (m *mockProfileStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.byEmail), nil
}

func (m *mockProfileStore) List(_ context.Context, _ profilestore.ListFilter) ([]profile.Profile, error) {
	return nil, nil
}

func waitUpsert(t *testing.T, m *mockProfileStore) profile.Profile {
	t.Helper()
	select {
	case p := <-m.upserts:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for background upsert")
		return profile.Profile{}
	}
}

func TestResolve_ExistingByID(t *testing.T) {
	store := newMockProfileStore()
	store.byID["id-1"] = profile.Profile{ID: "id-1", Email: "ann@club.be", Role: profile.RoleCoach, Status: profile.StatusActive}
	r := NewResolver(store)

	p := r.Resolve(context.Background(), Identity{ID: "id-1", Email: "ann@club.be"})
	if p.Status != profile.StatusActive || p.Role != profile.RoleCoach {
		t.Errorf("resolved %+v, want stored row unmodified", p)
	}
}

func TestResolve_LegacyRowByEmail(t *testing.T) {
	store := newMockProfileStore()
	store.byEmail["ann@club.be"] = profile.Profile{Email: "ann@club.be", Role: profile.RoleCoach, Status: profile.StatusPending}
	r := NewResolver(store)

	p := r.Resolve(context.Background(), Identity{ID: "id-1", Email: "ann@club.be"})
	if p.Status != profile.StatusPending {
		t.Errorf("status = %q, want PENDING", p.Status)
	}

	// The pre-auth row gets linked to the identity in the background.
	select {
	case patch := <-store.updates:
		if patch.ID == nil || *patch.ID != "id-1" {
			t.Errorf("link patch = %+v, want ID id-1", patch)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for identity link")
	}
}

func TestResolve_FirstUserBecomesAdmin(t *testing.T) {
	store := newMockProfileStore()
	r := NewResolver(store)

	p := r.Resolve(context.Background(), Identity{ID: "id-1", Email: "ann@club.be", Name: "Ann"})
	if p.Role != profile.RoleAdmin || p.Status != profile.StatusActive {
		t.Errorf("first user = %s/%s, want ADMIN/ACTIVE", p.Role, p.Status)
	}
	if p.Name != "Ann" {
		t.Errorf("name = %q, want claim", p.Name)
	}
	waitUpsert(t, store)

	// The second distinct identity is an ordinary pending coach.
	second := r.Resolve(context.Background(), Identity{ID: "id-2", Email: "bob@club.be"})
	if second.Role != profile.RoleCoach || second.Status != profile.StatusPending {
		t.Errorf("second user = %s/%s, want COACH/PENDING", second.Role, second.Status)
	}
	if second.Name != "bob" {
		t.Errorf("name = %q, want email local part", second.Name)
	}
	waitUpsert(t, store)
}

func TestResolve_StoreReadFailure_Fallback(t *testing.T) {
	store := newMockProfileStore()
	store.readErr = errors.New("infinite recursion detected in policy")
	r := NewResolver(store)

	p := r.Resolve(context.Background(), Identity{ID: "id-1", Email: "b@x.com"})
	if p.Role != profile.RoleCoach {
		t.Errorf("fallback role = %q, want COACH", p.Role)
	}
	if p.Status != profile.StatusActive {
		t.Errorf("fallback status = %q, want ACTIVE", p.Status)
	}
	if p.Email != "b@x.com" {
		t.Errorf("fallback email = %q", p.Email)
	}
	waitUpsert(t, store)
}

func TestResolve_CountFailure_LeastPrivilege(t *testing.T) {
	store := newMockProfileStore()
	store.countErr = errors.New("timeout")
	r := NewResolver(store)

	p := r.Resolve(context.Background(), Identity{ID: "id-1", Email: "ann@club.be"})
	if p.Role == profile.RoleAdmin {
		t.Error("admin must not be granted when the first-user check fails")
	}
	waitUpsert(t, store)
}
