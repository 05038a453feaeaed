package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	"github.com/riskibarqy/apex-leaderboard/internal/infrastructure/repository/memory"
	basecache "github.com/riskibarqy/apex-leaderboard/internal/platform/cache"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) InvalidateScopes(context.Context) {
	c.calls.Add(1)
}

type countingRepository struct {
	override.Repository
	lists   atomic.Int32
	failPut bool
	// afterList runs once the backend has answered list call n.
	afterList func(call int32)
}

func (r *countingRepository) List(ctx context.Context) ([]override.Entry, error) {
	call := r.lists.Add(1)
	items, err := r.Repository.List(ctx)
	if r.afterList != nil {
		r.afterList(call)
	}
	return items, err
}

func (r *countingRepository) Put(ctx context.Context, entry override.Entry) (override.Entry, error) {
	if r.failPut {
		return override.Entry{}, errors.New("disk full")
	}
	return r.Repository.Put(ctx, entry)
}

func newDecorated(next *countingRepository) (*OverrideRepository, *countingInvalidator) {
	invalidator := &countingInvalidator{}
	store := basecache.NewStore[[]override.Entry](basecache.Options{Name: "overrides", TTL: time.Minute})
	return NewOverrideRepository(next, store, invalidator), invalidator
}

func TestOverrideRepository_InvalidatesAfterWrites(t *testing.T) {
	t.Parallel()

	next := &countingRepository{Repository: memory.NewOverrideRepository()}
	repo, invalidator := newDecorated(next)
	ctx := context.Background()

	if _, err := repo.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := repo.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if next.lists.Load() != 1 {
		t.Fatalf("expected memoized list, backend hit %d times", next.lists.Load())
	}

	if _, err := repo.Put(ctx, override.Entry{PlayerName: "B", Identity: "https://twitch.tv/b_real"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if invalidator.calls.Load() != 1 {
		t.Fatalf("expected one invalidation after put, got %d", invalidator.calls.Load())
	}

	items, err := repo.List(ctx)
	if err != nil || len(items) != 1 || items[0].PlayerName != "B" {
		t.Fatalf("expected fresh list after put: %+v err=%v", items, err)
	}

	if deleted, err := repo.Delete(ctx, "b"); err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if deleted, _ := repo.Delete(ctx, "b"); deleted {
		t.Fatalf("expected second delete to miss")
	}
	if invalidator.calls.Load() != 2 {
		t.Fatalf("expected invalidation only for the effective delete, got %d", invalidator.calls.Load())
	}
}

func TestOverrideRepository_FailedWriteDoesNotInvalidate(t *testing.T) {
	t.Parallel()

	next := &countingRepository{Repository: memory.NewOverrideRepository(), failPut: true}
	repo, invalidator := newDecorated(next)

	if _, err := repo.Put(context.Background(), override.Entry{PlayerName: "x", Identity: "x"}); err == nil {
		t.Fatalf("expected backend error")
	}
	if invalidator.calls.Load() != 0 {
		t.Fatalf("failed write must not invalidate")
	}
}

func TestOverrideRepository_WriteDuringListIsNotHidden(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	next := &countingRepository{
		Repository: memory.NewOverrideRepository(),
		afterList: func(call int32) {
			if call == 1 {
				close(started)
				<-release
			}
		},
	}
	repo, _ := newDecorated(next)
	ctx := context.Background()

	done := make(chan []override.Entry, 1)
	go func() {
		items, _ := repo.List(ctx)
		done <- items
	}()

	<-started
	if _, err := repo.Put(ctx, override.Entry{PlayerName: "LG_Naughty", Identity: "https://www.twitch.tv/Naughty"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	close(release)
	if items := <-done; len(items) != 0 {
		t.Fatalf("in-flight list read before the write, got %+v", items)
	}

	items, err := repo.List(ctx)
	if err != nil || len(items) != 1 || items[0].PlayerName != "LG_Naughty" {
		t.Fatalf("expected the write to be visible on the next list: %+v err=%v", items, err)
	}
}
