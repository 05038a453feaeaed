package twitch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/time/rate"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/livestatus"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/metrics"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/resilience"
	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

const (
	defaultBaseURL  = "https://api.twitch.tv/helix"
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// MaxBatchSize is the Helix limit on user_login values per request.
	MaxBatchSize = 100

	defaultConcurrency  = 4
	defaultPhaseTimeout = 20 * time.Second
	maxResponseBytes    = 2 << 20

	thumbnailWidth  = "320"
	thumbnailHeight = "180"
)

var (
	loginPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,25}$`)

	errTwitchTransient = crerr.New("twitch transient failure")
	errCircuitOpen     = crerr.New("twitch circuit breaker open")
)

type ClientConfig struct {
	HTTPClient       *http.Client
	BaseURL          string
	TokenURL         string
	ClientID         string
	ClientSecret     string
	Timeout          time.Duration
	BatchSize        int
	BatchConcurrency int
	PhaseTimeout     time.Duration
	Retry            resilience.RetryPolicy
	RateLimit        float64
	RateBurst        int
	CircuitBreaker   resilience.CircuitBreakerConfig
	Logger           *logging.Logger
}

// Client is a Helix live-status batch fetcher.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	tokens       *appTokenSource
	batchSize    int
	concurrency  int
	phaseTimeout time.Duration
	retry        resilience.RetryPolicy
	limiter      *rate.Limiter
	breaker      *resilience.CircuitBreaker
	logger       *logging.Logger
	now          func() time.Time
}

var _ livestatus.Fetcher = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("twitch")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	phaseTimeout := cfg.PhaseTimeout
	if phaseTimeout <= 0 {
		phaseTimeout = defaultPhaseTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = concurrency
	}

	breaker := resilience.NewCircuitBreakerFromConfig("twitch", cfg.CircuitBreaker, func(name string, from, to resilience.CircuitState) {
		metrics.SetCircuitState(name, string(to))
		logger.Warn("circuit breaker state changed", "dependency", name, "from", from, "to", to)
	})

	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		clientID:     strings.TrimSpace(cfg.ClientID),
		tokens:       newAppTokenSource(strings.TrimSpace(cfg.ClientID), strings.TrimSpace(cfg.ClientSecret), tokenURL, httpClient),
		batchSize:    batchSize,
		concurrency:  concurrency,
		phaseTimeout: phaseTimeout,
		retry:        resilience.NormalizeRetryPolicy(cfg.Retry),
		limiter:      rate.NewLimiter(limit, burst),
		breaker:      breaker,
		logger:       logger,
		now:          time.Now,
	}
}

type batchOutcome struct {
	statuses map[string]livestatus.Status
	err      error
}

// FetchLiveStatus looks up every identity key in batches of at most
// MaxBatchSize. Batches run concurrently and the whole phase is bounded by
// the configured phase timeout. A failed or unfinished batch marks its
// members degraded; only rejected credentials (or the caller's own
// cancellation) fail the call as a whole.
func (c *Client) FetchLiveStatus(ctx context.Context, identityKeys []string) (livestatus.Result, error) {
	result := livestatus.NewResult()

	logins := uniqueLogins(identityKeys)
	if len(logins) == 0 {
		return result, nil
	}

	batches := chunkLogins(logins, c.batchSize)
	result.Batches = len(batches)
	outcomes := make([]batchOutcome, len(batches))

	phaseCtx, cancel := context.WithTimeout(ctx, c.phaseTimeout)
	defer cancel()

	if err := c.acquireToken(phaseCtx); err != nil {
		if stderrors.Is(err, usecase.ErrUpstreamUnauthorized) {
			c.logger.ErrorContext(ctx, "twitch rejected app credentials", "error", err)
			return livestatus.Result{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return livestatus.Result{}, ctxErr
		}
		c.logger.WarnContext(ctx, "twitch token unavailable, live status degraded", "logins", len(logins), "error", err)
		result.FailedBatches = len(batches)
		for _, login := range logins {
			result.Degraded[login] = struct{}{}
		}
		metrics.AddLiveStatusDegraded(len(result.Degraded))
		return result, nil
	}

	p := pool.New().
		WithMaxGoroutines(c.concurrency).
		WithContext(phaseCtx).
		WithCancelOnError()
	for i := range batches {
		p.Go(func(ctx context.Context) error {
			outcomes[i] = c.fetchBatch(ctx, i, batches[i])
			if stderrors.Is(outcomes[i].err, usecase.ErrUpstreamUnauthorized) {
				return outcomes[i].err
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		c.logger.ErrorContext(ctx, "twitch rejected app credentials", "error", err)
		return livestatus.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return livestatus.Result{}, err
	}

	for i, outcome := range outcomes {
		if outcome.err != nil {
			result.FailedBatches++
			for _, login := range batches[i] {
				result.Degraded[login] = struct{}{}
			}
			c.logger.WarnContext(ctx, "twitch batch degraded",
				"batch", i,
				"size", len(batches[i]),
				"error", outcome.err,
			)
			continue
		}
		for _, login := range batches[i] {
			result.Statuses[login] = livestatus.Status{}
		}
		for login, status := range outcome.statuses {
			result.Statuses[login] = status
		}
	}

	metrics.AddLiveStatusDegraded(len(result.Degraded))
	return result, nil
}

// acquireToken warms the app token before any batch starts. Transient token
// endpoint failures are retried with the batch policy; rejected credentials
// return at once.
func (c *Client) acquireToken(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if _, err = c.tokens.Token(ctx); err == nil {
			return nil
		}
		if stderrors.Is(err, usecase.ErrUpstreamUnauthorized) || ctx.Err() != nil {
			return err
		}
		if attempt == c.retry.MaxRetries {
			break
		}
		if sleepErr := resilience.Sleep(ctx, c.retry.Backoff(attempt)); sleepErr != nil {
			return err
		}
	}
	return err
}

func (c *Client) fetchBatch(ctx context.Context, index int, logins []string) batchOutcome {
	start := c.now()
	outcome := c.doBatch(ctx, logins)

	label := "ok"
	switch {
	case stderrors.Is(outcome.err, errCircuitOpen):
		label = "circuit_open"
	case outcome.err != nil:
		label = "failed"
	}
	metrics.ObserveLiveStatusBatch(label, c.now().Sub(start))

	if outcome.err == nil {
		c.logger.DebugContext(ctx, "twitch batch fetched", "batch", index, "size", len(logins), "live", len(outcome.statuses))
	}
	return outcome
}

func (c *Client) doBatch(ctx context.Context, logins []string) batchOutcome {
	var raw []byte
	err := c.breaker.Guard(func() error {
		var err error
		raw, err = c.executeRequest(ctx, buildStreamsURL(c.baseURL, logins))
		return err
	}, classifyTwitchError)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		return batchOutcome{err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
	}
	if err != nil {
		return batchOutcome{err: err}
	}

	var payload streamsEnvelope
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return batchOutcome{err: crerr.Wrapf(err, "decode helix streams payload")}
	}
	return batchOutcome{statuses: mapStreams(payload.Data)}
}

// classifyTwitchError counts only transient failures against the breaker.
// Rejected credentials are an operator problem and must not block probes.
func classifyTwitchError(err error) resilience.Outcome {
	switch {
	case err == nil:
		return resilience.OutcomeSuccess
	case stderrors.Is(err, errTwitchTransient):
		return resilience.OutcomeFailure
	default:
		return resilience.OutcomeIgnored
	}
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	refreshed := false

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", errTwitchTransient, err)
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Client-Id", c.clientID)
		req.Header.Set("Authorization", "Bearer "+token)

		var wait time.Duration
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", errTwitchTransient, ctx.Err())
			}
			lastErr = fmt.Errorf("%w: send request: %v", errTwitchTransient, err)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()

			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errTwitchTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusUnauthorized:
				if refreshed {
					return nil, fmt.Errorf("%w: helix status=401 body=%s", usecase.ErrUpstreamUnauthorized, abbreviateBody(raw))
				}
				refreshed = true
				c.tokens.Invalidate(token)
				attempt--
				continue
			case resilience.IsRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: helix status=%d body=%s", errTwitchTransient, resp.StatusCode, abbreviateBody(raw))
				if resp.StatusCode == http.StatusTooManyRequests {
					wait = c.rateLimitWait(resp.Header.Get("Ratelimit-Reset"))
				}
			default:
				return nil, crerr.Newf("helix status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.retry.MaxRetries {
			break
		}
		if wait <= 0 {
			wait = c.retry.Backoff(attempt)
		}
		if err := resilience.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%w: %v", errTwitchTransient, err)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: helix request failed", errTwitchTransient)
	}
	c.logger.WarnContext(ctx, "twitch request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

// rateLimitWait honours Helix's Ratelimit-Reset (unix seconds), capped by the
// retry policy's max delay.
func (c *Client) rateLimitWait(reset string) time.Duration {
	seconds, err := strconv.ParseInt(strings.TrimSpace(reset), 10, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	wait := time.Unix(seconds, 0).Sub(c.now())
	if wait <= 0 {
		return 0
	}
	if wait > c.retry.MaxDelay {
		wait = c.retry.MaxDelay
	}
	return wait
}

func mapStreams(items []streamItem) map[string]livestatus.Status {
	out := make(map[string]livestatus.Status, len(items))
	for _, item := range items {
		login := strings.ToLower(strings.TrimSpace(item.UserLogin))
		if login == "" {
			continue
		}
		if item.Type != "" && item.Type != "live" {
			continue
		}
		out[login] = livestatus.Status{
			IsLive:       true,
			UserName:     item.UserName,
			ViewerCount:  item.ViewerCount,
			Game:         item.GameName,
			Title:        item.Title,
			StartedAt:    item.StartedAt,
			ThumbnailURL: sizeThumbnail(item.ThumbnailURL),
		}
	}
	return out
}

func sizeThumbnail(raw string) string {
	return strings.NewReplacer("{width}", thumbnailWidth, "{height}", thumbnailHeight).Replace(raw)
}

// uniqueLogins lower-cases, drops values Helix would reject for the whole
// batch, and removes duplicates while keeping first-seen order.
func uniqueLogins(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		login := strings.ToLower(strings.TrimSpace(key))
		if !loginPattern.MatchString(login) {
			continue
		}
		if _, ok := seen[login]; ok {
			continue
		}
		seen[login] = struct{}{}
		out = append(out, login)
	}
	return out
}

func chunkLogins(logins []string, size int) [][]string {
	batches := make([][]string, 0, (len(logins)+size-1)/size)
	for start := 0; start < len(logins); start += size {
		end := start + size
		if end > len(logins) {
			end = len(logins)
		}
		batches = append(batches, logins[start:end])
	}
	return batches
}

func buildStreamsURL(baseURL string, logins []string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(baseURL)
	_, _ = buf.WriteString("/streams?first=")
	_, _ = buf.WriteString(strconv.Itoa(MaxBatchSize))
	for _, login := range logins {
		_, _ = buf.WriteString("&user_login=")
		_, _ = buf.WriteString(url.QueryEscape(login))
	}
	return buf.String()
}

func abbreviateBody(raw []byte) string {
	var parsed helixError
	if err := sonic.Unmarshal(raw, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	body := strings.TrimSpace(string(raw))
	if len(body) > 240 {
		return body[:240] + "..."
	}
	return body
}
