package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
)

type OverrideRepository struct {
	mu    sync.RWMutex
	items map[string]override.Entry
	now   func() time.Time
}

func NewOverrideRepository(seed ...override.Entry) *OverrideRepository {
	r := &OverrideRepository{
		items: make(map[string]override.Entry, len(seed)),
		now:   time.Now,
	}
	for _, entry := range seed {
		if key := entry.Key(); key != "" {
			r.items[key] = entry
		}
	}
	return r
}

func (r *OverrideRepository) Get(_ context.Context, playerName string) (override.Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.items[override.NormalizeKey(playerName)]
	return entry, ok, nil
}

func (r *OverrideRepository) Put(_ context.Context, entry override.Entry) (override.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entry.Key()
	now := r.now().UTC()
	entry.CreatedAt = now
	if existing, ok := r.items[key]; ok && !existing.CreatedAt.IsZero() {
		entry.CreatedAt = existing.CreatedAt
	}
	entry.UpdatedAt = now
	r.items[key] = entry
	return entry, nil
}

func (r *OverrideRepository) Delete(_ context.Context, playerName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := override.NormalizeKey(playerName)
	if _, ok := r.items[key]; !ok {
		return false, nil
	}
	delete(r.items, key)
	return true, nil
}

func (r *OverrideRepository) List(_ context.Context) ([]override.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]override.Entry, 0, len(r.items))
	for _, entry := range r.items {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}
