package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/cache"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/metrics"
)

const (
	defaultMaxPlayers     = 500
	defaultDegradedTTL    = 30 * time.Second
	defaultStaleMaxAge    = 15 * time.Minute
	defaultSearchLimit    = 10
	maxRefreshWorkers     = 4
	refreshStatusSuccess  = "success"
	refreshStatusFailed   = "failed"
	pipelineOutcomeHit    = "hit"
	pipelineOutcomeOK     = "ok"
	pipelineOutcomePartly = "degraded"
	pipelineOutcomeStale  = "stale"
	pipelineOutcomeFailed = "failed"
)

type LeaderboardServiceConfig struct {
	DefaultLimit int
	MaxPlayers   int
	DegradedTTL  time.Duration
	StaleMaxAge  time.Duration
	Platforms    []leaderboard.Platform
	Logger       *logging.Logger
}

// LeaderboardService runs the scrape, reconcile and cache pipeline per scope.
type LeaderboardService struct {
	source    leaderboard.Source
	overrides override.Repository
	live      livestatus.Fetcher
	cache     *cache.Store[leaderboard.Board]

	defaultLimit int
	maxPlayers   int
	degradedTTL  time.Duration
	staleMaxAge  time.Duration
	platforms    []leaderboard.Platform
	logger       *logging.Logger
	now          func() time.Time
}

func NewLeaderboardService(
	source leaderboard.Source,
	overrides override.Repository,
	live livestatus.Fetcher,
	boards *cache.Store[leaderboard.Board],
	cfg LeaderboardServiceConfig,
) *LeaderboardService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	maxPlayers := cfg.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = defaultMaxPlayers
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 || defaultLimit > maxPlayers {
		defaultLimit = maxPlayers
	}
	degradedTTL := cfg.DegradedTTL
	if degradedTTL <= 0 {
		degradedTTL = defaultDegradedTTL
	}
	staleMaxAge := cfg.StaleMaxAge
	if staleMaxAge <= 0 {
		staleMaxAge = defaultStaleMaxAge
	}
	platforms := append([]leaderboard.Platform(nil), cfg.Platforms...)
	if len(platforms) == 0 {
		platforms = leaderboard.Platforms()
	}

	return &LeaderboardService{
		source:       source,
		overrides:    overrides,
		live:         live,
		cache:        boards,
		defaultLimit: defaultLimit,
		maxPlayers:   maxPlayers,
		degradedTTL:  degradedTTL,
		staleMaxAge:  staleMaxAge,
		platforms:    platforms,
		logger:       logger.Named("leaderboard"),
		now:          time.Now,
	}
}

// Platforms lists the platforms RefreshAll warms by default.
func (s *LeaderboardService) Platforms() []leaderboard.Platform {
	return append([]leaderboard.Platform(nil), s.platforms...)
}

// NormalizeScope applies the default limit and clamps it to the board size.
func (s *LeaderboardService) NormalizeScope(scope leaderboard.Scope) leaderboard.Scope {
	if scope.Limit <= 0 {
		scope.Limit = s.defaultLimit
	}
	if scope.Limit > s.maxPlayers {
		scope.Limit = s.maxPlayers
	}
	return scope
}

// ReconcileAndServe returns the reconciled board for scope and whether it
// came from cache. Concurrent callers for the same scope share one pipeline
// run. When the pipeline fails, a last-good board younger than the stale
// window is served with Stale set instead of the error.
func (s *LeaderboardService) ReconcileAndServe(ctx context.Context, scope leaderboard.Scope) (leaderboard.Board, bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.ReconcileAndServe",
		attribute.String("leaderboard.platform", string(scope.Platform)),
		attribute.Int("leaderboard.limit", scope.Limit),
	)
	defer span.End()

	platformCode, err := leaderboard.ParsePlatform(string(scope.Platform))
	if err != nil {
		return leaderboard.Board{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	scope.Platform = platformCode
	scope = s.NormalizeScope(scope)
	platform := string(scope.Platform)
	start := s.now()

	board, cached, err := s.cache.Load(ctx, scope.Key(), s.loader(scope))
	if err == nil {
		outcome := pipelineOutcomeOK
		switch {
		case cached:
			outcome = pipelineOutcomeHit
		case board.Degraded:
			outcome = pipelineOutcomePartly
		}
		metrics.ObservePipeline(platform, outcome, s.now().Sub(start))
		return board, cached, nil
	}

	if stale, ok := s.lastGood(ctx, scope); ok {
		metrics.ObservePipeline(platform, pipelineOutcomeStale, s.now().Sub(start))
		metrics.ObserveStaleServed(platform)
		s.logger.WarnContext(ctx, "serving last-good leaderboard after pipeline failure",
			"platform", platform,
			"limit", scope.Limit,
			"age", s.now().Sub(stale.FetchedAt),
			"error", err,
		)
		return stale, true, nil
	}

	metrics.ObservePipeline(platform, pipelineOutcomeFailed, s.now().Sub(start))
	s.logger.ErrorContext(ctx, "leaderboard pipeline failed", "platform", platform, "limit", scope.Limit, "error", err)
	return leaderboard.Board{}, false, fmt.Errorf("reconcile leaderboard platform=%s: %w", platform, err)
}

func (s *LeaderboardService) lastGood(ctx context.Context, scope leaderboard.Scope) (leaderboard.Board, bool) {
	snap, ok := s.cache.Peek(ctx, scope.Key())
	if !ok || snap.Age > s.staleMaxAge {
		return leaderboard.Board{}, false
	}
	board := snap.Value
	board.Stale = true
	return board, true
}

func (s *LeaderboardService) loader(scope leaderboard.Scope) cache.LoaderFunc[leaderboard.Board] {
	return func(ctx context.Context) (leaderboard.Board, time.Duration, error) {
		board, err := s.buildBoard(ctx, scope)
		if err != nil {
			return leaderboard.Board{}, 0, err
		}
		if board.Degraded {
			return board, s.degradedTTL, nil
		}
		return board, 0, nil
	}
}

func (s *LeaderboardService) buildBoard(ctx context.Context, scope leaderboard.Scope) (leaderboard.Board, error) {
	snapshot, err := s.source.FetchLeaderboard(ctx, scope.Platform)
	if err != nil {
		return leaderboard.Board{}, fmt.Errorf("fetch leaderboard: %w", err)
	}

	rows := snapshot.Rows
	if len(rows) > scope.Limit {
		rows = rows[:scope.Limit]
	}

	entries, err := s.overrides.List(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "overrides unavailable, continuing without them", "error", err)
		entries = nil
	}
	index := IndexOverrides(entries)

	live := livestatus.NewResult()
	if keys := CollectIdentityKeys(rows, index); len(keys) > 0 && s.live != nil {
		live, err = s.live.FetchLiveStatus(ctx, keys)
		if err != nil {
			return leaderboard.Board{}, fmt.Errorf("fetch live status: %w", err)
		}
	}

	records := Reconcile(rows, index, live)
	degraded := 0
	for _, record := range records {
		if record.Degraded {
			degraded++
		}
	}

	fetchedAt := snapshot.ScrapedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	s.logger.InfoContext(ctx, "leaderboard reconciled",
		"platform", scope.Platform,
		"players", len(records),
		"live_lookups", live.Batches,
		"degraded", degraded,
		"overrides", len(index),
	)

	return leaderboard.Board{
		Platform:      scope.Platform,
		Players:       records,
		TotalPlayers:  len(records),
		FetchedAt:     fetchedAt,
		Degraded:      degraded > 0,
		DegradedCount: degraded,
	}, nil
}

// InvalidateScopes marks every cached leaderboard stale. Last-good values stay
// available for fallback.
func (s *LeaderboardService) InvalidateScopes(ctx context.Context) {
	n := s.cache.InvalidatePrefix(ctx, leaderboard.ScopeKeyPrefix)
	s.logger.InfoContext(ctx, "leaderboard scopes invalidated", "entries", n)
}

type RefreshResult struct {
	Platform      leaderboard.Platform `json:"platform"`
	Status        string               `json:"status"`
	Players       int                  `json:"players"`
	DegradedCount int                  `json:"degraded_count"`
	DurationMs    int64                `json:"duration_ms"`
	Message       string               `json:"message,omitempty"`
}

func (r RefreshResult) Failed() bool {
	return r.Status != refreshStatusSuccess
}

// RefreshAll rebuilds the default scope of each platform concurrently. An
// empty platforms list means every configured platform. Failures are
// reported per platform; the call itself only fails on invalid input.
func (s *LeaderboardService) RefreshAll(ctx context.Context, platforms []leaderboard.Platform) ([]RefreshResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.RefreshAll")
	defer span.End()

	if len(platforms) == 0 {
		platforms = s.platforms
	}
	targets := make([]leaderboard.Platform, 0, len(platforms))
	seen := make(map[leaderboard.Platform]struct{}, len(platforms))
	for _, raw := range platforms {
		platform, err := leaderboard.ParsePlatform(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if _, ok := seen[platform]; ok {
			continue
		}
		seen[platform] = struct{}{}
		targets = append(targets, platform)
	}

	workers := len(targets)
	if workers > maxRefreshWorkers {
		workers = maxRefreshWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create refresh worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]RefreshResult, 0, len(targets))
	)
	for _, platform := range targets {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			result := s.refreshOne(ctx, platform)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			results = append(results, RefreshResult{Platform: platform, Status: refreshStatusFailed, Message: submitErr.Error()})
			mu.Unlock()
		}
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Platform < results[j].Platform })
	return results, nil
}

func (s *LeaderboardService) refreshOne(ctx context.Context, platform leaderboard.Platform) RefreshResult {
	start := s.now()
	scope := s.NormalizeScope(leaderboard.Scope{Platform: platform})

	s.cache.Invalidate(ctx, scope.Key())
	board, _, err := s.cache.Load(ctx, scope.Key(), s.loader(scope))

	result := RefreshResult{Platform: platform, DurationMs: s.now().Sub(start).Milliseconds()}
	if err != nil {
		result.Status = refreshStatusFailed
		result.Message = err.Error()
		s.logger.WarnContext(ctx, "leaderboard refresh failed", "platform", platform, "error", err)
		return result
	}
	result.Status = refreshStatusSuccess
	result.Players = board.TotalPlayers
	result.DegradedCount = board.DegradedCount
	return result
}

type PlayerMatch struct {
	Player   leaderboard.PlayerRecord `json:"player"`
	Distance int                      `json:"distance"`
}

// SearchPlayers fuzzy-matches query against player names on the current
// board of platform, best matches first.
func (s *LeaderboardService) SearchPlayers(ctx context.Context, platform leaderboard.Platform, query string, limit int) ([]PlayerMatch, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.SearchPlayers", attribute.String("leaderboard.platform", string(platform)))
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	platform, err := leaderboard.ParsePlatform(string(platform))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	scope := s.NormalizeScope(leaderboard.Scope{Platform: platform})
	board, ok := s.currentBoard(ctx, scope)
	if !ok {
		board, _, err = s.ReconcileAndServe(ctx, scope)
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, len(board.Players))
	for i, record := range board.Players {
		names[i] = record.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Stable(ranks)

	out := make([]PlayerMatch, 0, minInt(limit, len(ranks)))
	for _, rank := range ranks {
		if len(out) == limit {
			break
		}
		out = append(out, PlayerMatch{Player: board.Players[rank.OriginalIndex], Distance: rank.Distance})
	}
	return out, nil
}

func (s *LeaderboardService) currentBoard(ctx context.Context, scope leaderboard.Scope) (leaderboard.Board, bool) {
	if board, ok := s.cache.Get(ctx, scope.Key()); ok {
		return board, true
	}
	return s.lastGood(ctx, scope)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
