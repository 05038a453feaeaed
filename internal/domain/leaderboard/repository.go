package leaderboard

import "context"

// Source produces raw leaderboard snapshots. Rows are treated as untrusted.
type Source interface {
	FetchLeaderboard(ctx context.Context, platform Platform) (Snapshot, error)
}
