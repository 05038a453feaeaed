package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/metrics"
)

// State is the freshness of one key.
//
//	EMPTY -> FRESH        Set / Load
//	FRESH -> STALE        TTL elapsed or Invalidate
//	STALE -> FRESH        Set / Load
//	STALE|FRESH -> EMPTY  Clear
type State string

const (
	StateEmpty State = "empty"
	StateFresh State = "fresh"
	StateStale State = "stale"
)

var errLoaderRequired = errors.New("cache: loader is required")

// Snapshot is the last value stored under a key, fresh or not.
type Snapshot[T any] struct {
	Value     T
	FetchedAt time.Time
	Age       time.Duration
	Stale     bool
}

// LoaderFunc computes a value. A non-positive ttl means the store default.
type LoaderFunc[T any] func(ctx context.Context) (value T, ttl time.Duration, err error)

type Options struct {
	Name   string
	TTL    time.Duration
	Mirror Mirror
	// Broadcaster, when set, fans Invalidate and Clear out to other
	// instances; see Listen. Origin identifies this instance on the bus.
	Broadcaster Broadcaster
	Origin      string
	Logger      *logging.Logger
	Now         func() time.Time
}

type entry[T any] struct {
	value       T
	fetchedAt   time.Time
	ttl         time.Duration
	invalidated bool
}

// Store is a keyed TTL cache that keeps the last value after it goes stale so
// callers can fall back to it. Freshness is evaluated lazily on read. Refreshes
// of one key are collapsed into a single loader call.
//
// Invalidate and Clear stamp the key (or prefix) with a sequence number. A
// loader whose key was stamped after it started may have read data the
// invalidation was meant to discard, so its result is kept for Peek but never
// stored as fresh.
//
// A nil *Store behaves as a cache that never hits.
type Store[T any] struct {
	mu          sync.RWMutex
	entries     map[string]*entry[T]
	seq         uint64
	marks       map[string]uint64
	prefixMarks map[string]uint64
	flight      singleflight.Group

	name        string
	ttl         time.Duration
	mirror      Mirror
	broadcaster Broadcaster
	origin      string
	logger      *logging.Logger
	now         func() time.Time
}

func NewStore[T any](opts Options) *Store[T] {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store[T]{
		entries:     make(map[string]*entry[T]),
		marks:       make(map[string]uint64),
		prefixMarks: make(map[string]uint64),
		name:        opts.Name,
		ttl:         opts.TTL,
		mirror:      opts.Mirror,
		broadcaster: opts.Broadcaster,
		origin:      opts.Origin,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

func (s *Store[T]) TTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.ttl
}

// Get returns the value only while it is fresh.
func (s *Store[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if s == nil || key == "" {
		return zero, false
	}

	if value, ok := s.getFresh(key); ok {
		metrics.ObserveCacheLookup(s.name, "hit")
		return value, true
	}
	if value, ok := s.loadMirror(ctx, key); ok {
		metrics.ObserveCacheLookup(s.name, "mirror_hit")
		return value, true
	}

	metrics.ObserveCacheLookup(s.name, "miss")
	return zero, false
}

func (s *Store[T]) getFresh(key string) (T, bool) {
	var zero T
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.isFresh(e) {
		return zero, false
	}
	return e.value, true
}

func (s *Store[T]) isFresh(e *entry[T]) bool {
	if e.invalidated {
		return false
	}
	ttl := e.ttl
	if ttl <= 0 {
		return true
	}
	return s.now().Sub(e.fetchedAt) < ttl
}

// Peek returns the last stored value regardless of freshness.
func (s *Store[T]) Peek(_ context.Context, key string) (Snapshot[T], bool) {
	if s == nil || key == "" {
		return Snapshot[T]{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Snapshot[T]{}, false
	}
	return Snapshot[T]{
		Value:     e.value,
		FetchedAt: e.fetchedAt,
		Age:       s.now().Sub(e.fetchedAt),
		Stale:     !s.isFresh(e),
	}, true
}

func (s *Store[T]) State(key string) State {
	if s == nil {
		return StateEmpty
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	switch {
	case !ok:
		return StateEmpty
	case s.isFresh(e):
		return StateFresh
	default:
		return StateStale
	}
}

func (s *Store[T]) Set(ctx context.Context, key string, value T) {
	s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores value with its own lifetime; ttl <= 0 uses the store TTL.
func (s *Store[T]) SetWithTTL(ctx context.Context, key string, value T, ttl time.Duration) {
	if s == nil || key == "" {
		return
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	fetchedAt := s.now()
	s.mu.Lock()
	s.entries[key] = &entry[T]{value: value, fetchedAt: fetchedAt, ttl: ttl}
	s.mu.Unlock()

	s.saveMirror(ctx, key, value, fetchedAt, ttl)
}

// setLoaded stores a loader result. It reports false when key was
// invalidated after the loader started at seq; the value is then kept stale.
func (s *Store[T]) setLoaded(ctx context.Context, key string, value T, ttl time.Duration, seq uint64) bool {
	if ttl <= 0 {
		ttl = s.ttl
	}

	fetchedAt := s.now()
	s.mu.Lock()
	current := s.lastMarkLocked(key) <= seq
	// A superseded result never replaces a fresh value from a newer load.
	if prev, ok := s.entries[key]; current || !ok || !s.isFresh(prev) {
		s.entries[key] = &entry[T]{value: value, fetchedAt: fetchedAt, ttl: ttl, invalidated: !current}
	}
	s.mu.Unlock()

	if current {
		s.saveMirror(ctx, key, value, fetchedAt, ttl)
	}
	return current
}

// flightState returns the current sequence and the last invalidation stamp
// that applies to key.
func (s *Store[T]) flightState(key string) (seq, mark uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, s.lastMarkLocked(key)
}

func (s *Store[T]) lastMarkLocked(key string) uint64 {
	mark := s.marks[key]
	for prefix, m := range s.prefixMarks {
		if m > mark && strings.HasPrefix(key, prefix) {
			mark = m
		}
	}
	return mark
}

func (s *Store[T]) markLocked(key string) {
	s.seq++
	s.marks[key] = s.seq
}

func (s *Store[T]) markPrefixLocked(prefix string) {
	s.seq++
	s.prefixMarks[prefix] = s.seq
}

// Invalidate marks key stale immediately. The value stays available to Peek.
func (s *Store[T]) Invalidate(ctx context.Context, key string) {
	if s == nil || key == "" {
		return
	}

	s.invalidateLocal(key)
	s.deleteMirror(ctx, key, false)
	s.publish(ctx, Invalidation{Key: key})
}

// InvalidatePrefix marks every key under prefix stale and returns how many
// entries were affected.
func (s *Store[T]) InvalidatePrefix(ctx context.Context, prefix string) int {
	if s == nil || prefix == "" {
		return 0
	}

	affected := s.invalidatePrefixLocal(prefix)
	s.deleteMirror(ctx, prefix, true)
	s.publish(ctx, Invalidation{Key: prefix, Prefix: true})
	return affected
}

func (s *Store[T]) Clear(ctx context.Context, key string) {
	if s == nil || key == "" {
		return
	}

	s.clearLocal(key)
	s.deleteMirror(ctx, key, false)
	s.publish(ctx, Invalidation{Key: key, Clear: true})
}

func (s *Store[T]) ClearPrefix(ctx context.Context, prefix string) {
	if s == nil || prefix == "" {
		return
	}

	s.clearPrefixLocal(prefix)
	s.deleteMirror(ctx, prefix, true)
	s.publish(ctx, Invalidation{Key: prefix, Prefix: true, Clear: true})
}

func (s *Store[T]) invalidateLocal(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markLocked(key)
	if e, ok := s.entries[key]; ok {
		e.invalidated = true
	}
}

func (s *Store[T]) invalidatePrefixLocal(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markPrefixLocked(prefix)
	affected := 0
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) && !e.invalidated {
			e.invalidated = true
			affected++
		}
	}
	return affected
}

func (s *Store[T]) clearLocal(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markLocked(key)
	delete(s.entries, key)
}

func (s *Store[T]) clearPrefixLocal(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markPrefixLocked(prefix)
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
}

type loadResult[T any] struct {
	value  T
	cached bool
}

// Load returns the fresh value for key, or runs loader to produce one.
// Concurrent callers for the same key wait on a single loader run and share
// its result; each caller can still give up through its own ctx. The loader
// itself is detached from the leader's cancellation.
//
// cached reports whether the value came from the cache rather than a loader
// run. Loader errors are not cached. Callers arriving after an invalidation
// never join a loader run that started before it.
func (s *Store[T]) Load(ctx context.Context, key string, loader LoaderFunc[T]) (value T, cached bool, err error) {
	if loader == nil {
		return value, false, errLoaderRequired
	}
	if s == nil || key == "" {
		value, _, err = loader(ctx)
		return value, false, err
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, true, nil
	}

	seq, mark := s.flightState(key)
	ch := s.flight.DoChan(key+"#"+strconv.FormatUint(mark, 10), func() (any, error) {
		if fresh, ok := s.getFresh(key); ok {
			return loadResult[T]{value: fresh, cached: true}, nil
		}

		loaded, ttl, loadErr := loader(context.WithoutCancel(ctx))
		if loadErr != nil {
			return nil, loadErr
		}
		if !s.setLoaded(context.WithoutCancel(ctx), key, loaded, ttl, seq) {
			s.logger.DebugContext(ctx, "cache load superseded by invalidation", "cache", s.name, "key", key)
		}
		return loadResult[T]{value: loaded}, nil
	})

	select {
	case <-ctx.Done():
		return value, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return value, false, res.Err
		}
		out := res.Val.(loadResult[T])
		return out.value, out.cached, nil
	}
}
