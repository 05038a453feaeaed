package cache

import (
	"context"
	"time"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	basecache "github.com/riskibarqy/apex-leaderboard/internal/platform/cache"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/metrics"
)

const overrideListKey = "override:list"

// OverrideRepository memoizes List and, after every successful write, tells
// the invalidator so cached leaderboards pick the change up on the next read.
type OverrideRepository struct {
	next        override.Repository
	cache       *basecache.Store[[]override.Entry]
	invalidator override.ScopeInvalidator
}

func NewOverrideRepository(next override.Repository, cache *basecache.Store[[]override.Entry], invalidator override.ScopeInvalidator) *OverrideRepository {
	return &OverrideRepository{next: next, cache: cache, invalidator: invalidator}
}

func (r *OverrideRepository) Get(ctx context.Context, playerName string) (override.Entry, bool, error) {
	return r.next.Get(ctx, playerName)
}

func (r *OverrideRepository) List(ctx context.Context) ([]override.Entry, error) {
	items, _, err := r.cache.Load(ctx, overrideListKey, func(ctx context.Context) ([]override.Entry, time.Duration, error) {
		items, err := r.next.List(ctx)
		if err != nil {
			return nil, 0, err
		}
		return append([]override.Entry(nil), items...), 0, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]override.Entry(nil), items...), nil
}

func (r *OverrideRepository) Put(ctx context.Context, entry override.Entry) (override.Entry, error) {
	saved, err := r.next.Put(ctx, entry)
	if err != nil {
		return override.Entry{}, err
	}
	r.afterWrite(ctx, "put")
	return saved, nil
}

func (r *OverrideRepository) Delete(ctx context.Context, playerName string) (bool, error) {
	deleted, err := r.next.Delete(ctx, playerName)
	if err != nil {
		return false, err
	}
	if deleted {
		r.afterWrite(ctx, "delete")
	}
	return deleted, nil
}

func (r *OverrideRepository) afterWrite(ctx context.Context, op string) {
	r.cache.Clear(ctx, overrideListKey)
	if r.invalidator != nil {
		r.invalidator.InvalidateScopes(ctx)
	}
	metrics.ObserveOverrideWrite(op)
}
