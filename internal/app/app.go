package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/apex-leaderboard/external/apexstatus"
	"github.com/riskibarqy/apex-leaderboard/external/twitch"
	"github.com/riskibarqy/apex-leaderboard/internal/config"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/domain/override"
	cacherepo "github.com/riskibarqy/apex-leaderboard/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/apex-leaderboard/internal/infrastructure/repository/filestore"
	"github.com/riskibarqy/apex-leaderboard/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/apex-leaderboard/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/apex-leaderboard/internal/interfaces/httpapi"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/cache"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/resilience"
	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

const redisNamespace = "apex-leaderboard"

// App owns the HTTP server and every resource that must be released on
// shutdown.
type App struct {
	Server *http.Server

	logger  *logging.Logger
	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{logger: logger}

	var (
		mirror      cache.Mirror
		broadcaster cache.Broadcaster
	)
	if cfg.CacheEnabled && cfg.RedisURL != "" {
		redisMirror, err := cache.NewRedisMirror(ctx, cfg.RedisURL, redisNamespace)
		if err != nil {
			logger.Warn("redis cache mirror unavailable, using process cache only", "error", err)
		} else {
			mirror = redisMirror
			broadcaster = redisMirror
			a.closers = append(a.closers, redisMirror.Close)
		}
	}
	origin := instanceID()

	var (
		boards        *cache.Store[leaderboard.Board]
		overrideLists *cache.Store[[]override.Entry]
	)
	if cfg.CacheEnabled {
		boards = cache.NewStore[leaderboard.Board](cache.Options{
			Name:        "leaderboard",
			TTL:         cfg.CacheTTL,
			Mirror:      mirror,
			Broadcaster: broadcaster,
			Origin:      origin,
			Logger:      logger,
		})
		// The file backend already rereads on mtime change, so only remote
		// backends get a list cache. It stays in-process with a short TTL.
		if cfg.OverrideStore != config.OverrideStoreFile {
			overrideLists = cache.NewStore[[]override.Entry](cache.Options{
				Name:        "overrides",
				TTL:         cfg.OverrideCacheTTL,
				Broadcaster: broadcaster,
				Origin:      origin,
				Logger:      logger,
			})
		}
		if broadcaster != nil {
			go a.listen(ctx, "leaderboard", boards.Listen)
			go a.listen(ctx, "overrides", overrideLists.Listen)
		}
	} else {
		logger.Info("leaderboard cache disabled, every request runs the pipeline")
	}

	baseOverrides, err := a.newOverrideRepository(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var leaderboardSvc *usecase.LeaderboardService
	overrides := cacherepo.NewOverrideRepository(baseOverrides, overrideLists, override.InvalidatorFunc(func(ctx context.Context) {
		leaderboardSvc.InvalidateScopes(ctx)
	}))

	live := newLiveStatusFetcher(cfg, logger)
	source := apexstatus.NewClient(apexstatus.ClientConfig{
		BaseURL:        cfg.LeaderboardBaseURL,
		Timeout:        cfg.LeaderboardTimeout,
		MaxPlayers:     cfg.LeaderboardMaxPlayers,
		Retry:          leaderboardRetryPolicy(cfg),
		CircuitBreaker: cfg.LeaderboardCircuit,
		Logger:         logger,
	})

	leaderboardSvc = usecase.NewLeaderboardService(source, overrides, live, boards, usecase.LeaderboardServiceConfig{
		DefaultLimit: cfg.LeaderboardDefaultLimit,
		MaxPlayers:   cfg.LeaderboardMaxPlayers,
		DegradedTTL:  cfg.CacheDegradedTTL,
		StaleMaxAge:  cfg.CacheStaleMaxAge,
		Platforms:    cfg.LeaderboardPlatforms,
		Logger:       logger,
	})
	overrideSvc := usecase.NewOverrideService(overrides, live, cfg.OverrideProbeTimeout, logger)

	handler := httpapi.NewHandler(leaderboardSvc, overrideSvc, logger)
	router := httpapi.NewRouter(handler, logger, httpapi.RouterConfig{
		MetricsEnabled:     cfg.MetricsEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminToken:         cfg.OverrideAdminToken,
		InternalJobToken:   cfg.InternalJobToken,
	})

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return a, nil
}

// Close releases database and cache connections. The HTTP server is shut
// down by the caller first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// listen keeps a cache subscribed to invalidations from other instances.
// It returns when ctx is cancelled or Redis goes away; entries then fall
// back to their TTL.
func (a *App) listen(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("cache invalidation listener stopped", "cache", name, "error", err)
	}
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func (a *App) newOverrideRepository(ctx context.Context, cfg config.Config) (override.Repository, error) {
	switch cfg.OverrideStore {
	case config.OverrideStoreMemory:
		return memory.NewOverrideRepository(), nil
	case config.OverrideStorePostgres:
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return postgres.NewOverrideRepository(db), nil
	default:
		a.logger.Info("override store file", "path", cfg.OverrideFilePath)
		return filestore.NewOverrideRepository(cfg.OverrideFilePath), nil
	}
}

// newLiveStatusFetcher returns nil when Twitch is disabled so the pipeline
// serves scraped rows without stream data.
func newLiveStatusFetcher(cfg config.Config, logger *logging.Logger) livestatus.Fetcher {
	if !cfg.TwitchEnabled {
		logger.Warn("twitch live status disabled")
		return nil
	}

	return twitch.NewClient(twitch.ClientConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.TwitchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL:          cfg.TwitchBaseURL,
		TokenURL:         cfg.TwitchTokenURL,
		ClientID:         cfg.TwitchClientID,
		ClientSecret:     cfg.TwitchClientSecret,
		Timeout:          cfg.TwitchTimeout,
		BatchSize:        cfg.TwitchBatchSize,
		BatchConcurrency: cfg.TwitchBatchConcurrency,
		PhaseTimeout:     cfg.TwitchPhaseTimeout,
		Retry:            cfg.TwitchRetry,
		RateLimit:        cfg.TwitchRateLimitRPS,
		CircuitBreaker:   cfg.TwitchCircuit,
		Logger:           logger,
	})
}

func leaderboardRetryPolicy(cfg config.Config) resilience.RetryPolicy {
	policy := resilience.DefaultRetryPolicy()
	policy.MaxRetries = cfg.LeaderboardMaxRetries
	return policy
}
