package usecase

import "errors"

// Sentinel errors are wrapped with %w and mapped to HTTP statuses by
// httpapi.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDependencyUnavailable covers a failed scrape or store with no
	// last-good board to fall back on.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrUpstreamUnauthorized means our own Twitch credentials were rejected.
	// It is an operator problem, not a client one.
	ErrUpstreamUnauthorized = errors.New("upstream rejected credentials")
)
