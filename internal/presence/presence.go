// Package presence tracks which users currently hold a live connection.
// The registry is injected at service start and rebuilt from zero on restart.
package presence

import (
	"context"
	"sort"
	"sync"
)

// Registry is the set of user ids with at least one live connection.
type Registry interface {
	Add(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
	Snapshot(ctx context.Context) ([]string, error)
}

// MemoryRegistry is the single-process implementation: a mutex-guarded set.
type MemoryRegistry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{ids: make(map[string]struct{})}
}

var _ Registry = (*MemoryRegistry)(nil)

func (r *MemoryRegistry) Add(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[userID] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, userID)
	return nil
}

func (r *MemoryRegistry) Snapshot(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
