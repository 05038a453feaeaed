package override

import "context"

// Repository describes override persistence needs from use cases. Put
// replaces any existing entry with the same Key.
type Repository interface {
	Get(ctx context.Context, playerName string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) (Entry, error)
	Delete(ctx context.Context, playerName string) (bool, error)
	List(ctx context.Context) ([]Entry, error)
}

// ScopeInvalidator is told whenever overrides change so cached leaderboards
// stop being served.
type ScopeInvalidator interface {
	InvalidateScopes(ctx context.Context)
}

// InvalidatorFunc adapts a plain function to ScopeInvalidator.
type InvalidatorFunc func(ctx context.Context)

func (f InvalidatorFunc) InvalidateScopes(ctx context.Context) {
	if f != nil {
		f(ctx)
	}
}
