package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// InMemoryDirectory is a Resolver backed by a process-local map. For
// production, replace with a client for the identity service.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]UserProfile
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{profiles: map[string]UserProfile{}}
}

func (d *InMemoryDirectory) ResolveUser(ctx context.Context, id string) (UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return UserProfile{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	return p, nil
}

// Put registers or replaces a profile.
func (d *InMemoryDirectory) Put(p UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

// LoadSeedFile loads profiles from a JSON array file, typically pointed at
// by DIRECTORY_SEED_FILE during local runs.
func (d *InMemoryDirectory) LoadSeedFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var profiles []UserProfile
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return nil
}
