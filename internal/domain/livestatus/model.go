package livestatus

import (
	"strings"
	"time"
)

// Status is the live state of one channel at fetch time.
type Status struct {
	IsLive       bool
	UserName     string
	ViewerCount  int
	Game         string
	Title        string
	StartedAt    time.Time
	ThumbnailURL string
}

// Result is the outcome of one fetch across all batches. Statuses holds
// confirmed answers keyed by identity key; Degraded holds the keys whose batch
// failed, for which nothing is known.
type Result struct {
	Statuses      map[string]Status
	Degraded      map[string]struct{}
	Batches       int
	FailedBatches int
}

func NewResult() Result {
	return Result{
		Statuses: make(map[string]Status),
		Degraded: make(map[string]struct{}),
	}
}

func (r Result) Lookup(key string) (Status, bool) {
	status, ok := r.Statuses[strings.ToLower(key)]
	return status, ok
}

func (r Result) IsDegraded(key string) bool {
	_, ok := r.Degraded[strings.ToLower(key)]
	return ok
}
