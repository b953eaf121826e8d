package testutil

import (
	"sync"

	"maxbackup/internal/backup"
)

// FakeResolver maps SIDs to profiles. Entries can be added or removed at
// any time to simulate profiles becoming resolvable.
type FakeResolver struct {
	mu       sync.Mutex
	profiles map[string]backup.Profile
	calls    int
}

// NewFakeResolver creates an empty resolver.
func NewFakeResolver() *FakeResolver {
	return &FakeResolver{profiles: map[string]backup.Profile{}}
}

// Add registers a resolvable SID.
func (r *FakeResolver) Add(sid string, profile backup.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[sid] = profile
}

// Remove makes a SID unresolvable.
func (r *FakeResolver) Remove(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, sid)
}

// Calls returns the number of Resolve invocations.
func (r *FakeResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *FakeResolver) Resolve(sid string) (backup.Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	p, ok := r.profiles[sid]
	return p, ok
}

var _ backup.IdentityResolver = (*FakeResolver)(nil)
