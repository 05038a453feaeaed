package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/apex-leaderboard/internal/platform/metrics"
)

// ErrMirrorMiss is returned by Mirror.Load when the key is absent.
var ErrMirrorMiss = errors.New("cache: mirror miss")

// Mirror is a shared, out-of-process copy of the store. Failures never fail
// the caller; they are logged and counted.
type Mirror interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

const mirrorTimeout = 2 * time.Second

type mirrorEnvelope[T any] struct {
	FetchedAt time.Time `json:"fetched_at"`
	TTLMillis int64     `json:"ttl_ms"`
	Value     T         `json:"value"`
}

func (s *Store[T]) loadMirror(ctx context.Context, key string) (T, bool) {
	var zero T
	if s.mirror == nil {
		return zero, false
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	payload, err := s.mirror.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMirrorMiss) {
			metrics.ObserveCacheMirrorError(s.name, "load")
			s.logger.WarnContext(ctx, "cache mirror load failed", "cache", s.name, "key", key, "error", err)
		}
		return zero, false
	}

	var env mirrorEnvelope[T]
	if err := sonic.Unmarshal(payload, &env); err != nil {
		metrics.ObserveCacheMirrorError(s.name, "decode")
		s.logger.WarnContext(ctx, "cache mirror decode failed", "cache", s.name, "key", key, "error", err)
		return zero, false
	}

	ttl := time.Duration(env.TTLMillis) * time.Millisecond
	if ttl > 0 && s.now().Sub(env.FetchedAt) >= ttl {
		return zero, false
	}

	s.mu.Lock()
	s.entries[key] = &entry[T]{value: env.Value, fetchedAt: env.FetchedAt, ttl: ttl}
	s.mu.Unlock()
	return env.Value, true
}

func (s *Store[T]) saveMirror(ctx context.Context, key string, value T, fetchedAt time.Time, ttl time.Duration) {
	if s.mirror == nil {
		return
	}

	payload, err := sonic.Marshal(mirrorEnvelope[T]{
		FetchedAt: fetchedAt,
		TTLMillis: ttl.Milliseconds(),
		Value:     value,
	})
	if err != nil {
		metrics.ObserveCacheMirrorError(s.name, "encode")
		s.logger.WarnContext(ctx, "cache mirror encode failed", "cache", s.name, "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := s.mirror.Save(ctx, key, payload, ttl); err != nil {
		metrics.ObserveCacheMirrorError(s.name, "save")
		s.logger.WarnContext(ctx, "cache mirror save failed", "cache", s.name, "key", key, "error", err)
	}
}

func (s *Store[T]) deleteMirror(ctx context.Context, key string, isPrefix bool) {
	if s.mirror == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	var err error
	if isPrefix {
		err = s.mirror.DeletePrefix(ctx, key)
	} else {
		err = s.mirror.Delete(ctx, key)
	}
	if err != nil {
		metrics.ObserveCacheMirrorError(s.name, "delete")
		s.logger.WarnContext(ctx, "cache mirror delete failed", "cache", s.name, "key", key, "prefix", isPrefix, "error", err)
	}
}
