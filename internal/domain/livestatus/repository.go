package livestatus

import "context"

// Fetcher answers "which of these channels are live". Per-batch failures are
// reported through Result.Degraded; an error means the whole fetch is unusable
// (for example, credentials were rejected).
type Fetcher interface {
	FetchLiveStatus(ctx context.Context, identityKeys []string) (Result, error)
}
