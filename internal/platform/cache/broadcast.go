package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/apex-leaderboard/internal/platform/metrics"
)

// Broadcaster carries invalidations between instances that share a mirror.
// Without it, a write on one instance leaves the others serving their
// in-process fresh entries until the TTL runs out.
type Broadcaster interface {
	PublishInvalidation(ctx context.Context, payload []byte) error
	// SubscribeInvalidations blocks, calling handle for every payload, until
	// ctx is done or the subscription breaks.
	SubscribeInvalidations(ctx context.Context, handle func(payload []byte)) error
}

// Invalidation is the wire form of one Invalidate or Clear call.
type Invalidation struct {
	Origin string `json:"origin"`
	Cache  string `json:"cache"`
	Key    string `json:"key"`
	Prefix bool   `json:"prefix,omitempty"`
	Clear  bool   `json:"clear,omitempty"`
}

const publishTimeout = 2 * time.Second

func (s *Store[T]) publish(ctx context.Context, inv Invalidation) {
	if s.broadcaster == nil {
		return
	}
	inv.Origin = s.origin
	inv.Cache = s.name

	payload, err := sonic.Marshal(inv)
	if err != nil {
		metrics.ObserveCacheMirrorError(s.name, "encode")
		s.logger.WarnContext(ctx, "cache invalidation encode failed", "cache", s.name, "key", inv.Key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.broadcaster.PublishInvalidation(ctx, payload); err != nil {
		metrics.ObserveCacheMirrorError(s.name, "publish")
		s.logger.WarnContext(ctx, "cache invalidation publish failed", "cache", s.name, "key", inv.Key, "error", err)
	}
}

// Listen applies invalidations published by other instances to this store
// until ctx is done. Remote invalidations only touch local state: the
// publisher already removed the mirrored entries.
func (s *Store[T]) Listen(ctx context.Context) error {
	if s == nil || s.broadcaster == nil {
		return nil
	}
	return s.broadcaster.SubscribeInvalidations(ctx, func(payload []byte) {
		var inv Invalidation
		if err := sonic.Unmarshal(payload, &inv); err != nil {
			metrics.ObserveCacheMirrorError(s.name, "decode")
			s.logger.WarnContext(ctx, "cache invalidation decode failed", "cache", s.name, "error", err)
			return
		}
		s.applyRemote(inv)
	})
}

func (s *Store[T]) applyRemote(inv Invalidation) {
	if inv.Cache != s.name || inv.Key == "" || (s.origin != "" && inv.Origin == s.origin) {
		return
	}
	switch {
	case inv.Prefix && inv.Clear:
		s.clearPrefixLocal(inv.Key)
	case inv.Prefix:
		s.invalidatePrefixLocal(inv.Key)
	case inv.Clear:
		s.clearLocal(inv.Key)
	default:
		s.invalidateLocal(inv.Key)
	}
}
