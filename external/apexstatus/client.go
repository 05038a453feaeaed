package apexstatus

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"github.com/riskibarqy/apex-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/logging"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/metrics"
	"github.com/riskibarqy/apex-leaderboard/internal/platform/resilience"
	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

const (
	defaultBaseURL   = "https://apexlegendsstatus.com/live-ranked-leaderboards"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 8 << 20
)

var (
	errScrapeTransient = crerr.New("leaderboard scrape transient failure")
	errCircuitOpen     = crerr.New("leaderboard circuit breaker open")
)

type ClientConfig struct {
	HTTPClient     *fasthttp.Client
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxPlayers     int
	Retry          resilience.RetryPolicy
	CircuitBreaker resilience.CircuitBreakerConfig
	Logger         *logging.Logger
}

// Client scrapes the public live ranked leaderboard.
type Client struct {
	httpClient *fasthttp.Client
	baseURL    string
	userAgent  string
	timeout    time.Duration
	maxPlayers int
	retry      resilience.RetryPolicy
	breaker    *resilience.CircuitBreaker
	logger     *logging.Logger
	now        func() time.Time
}

var _ leaderboard.Source = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("apexstatus")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
			MaxResponseBodySize: maxResponseBytes,
		}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxPlayers := cfg.MaxPlayers
	if maxPlayers <= 0 || maxPlayers > MaxRank {
		maxPlayers = MaxRank
	}

	breaker := resilience.NewCircuitBreakerFromConfig("leaderboard", cfg.CircuitBreaker, func(name string, from, to resilience.CircuitState) {
		metrics.SetCircuitState(name, string(to))
		logger.Warn("circuit breaker state changed", "dependency", name, "from", from, "to", to)
	})

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		timeout:    timeout,
		maxPlayers: maxPlayers,
		retry:      resilience.NormalizeRetryPolicy(cfg.Retry),
		breaker:    breaker,
		logger:     logger,
		now:        time.Now,
	}
}

// FetchLeaderboard downloads and parses the board for one platform. Every
// failure is reported as usecase.ErrDependencyUnavailable so callers can fall
// back to a last-good snapshot.
func (c *Client) FetchLeaderboard(ctx context.Context, platform leaderboard.Platform) (leaderboard.Snapshot, error) {
	start := c.now()
	pageURL := c.baseURL + "/Battle_Royale/" + string(platform)

	body, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		metrics.ObserveScrape(string(platform), 0, c.now().Sub(start))
		return leaderboard.Snapshot{}, fmt.Errorf("%w: scrape %s: %v", usecase.ErrDependencyUnavailable, platform, err)
	}

	rows, err := ParseLeaderboard(bytes.NewReader(body), c.maxPlayers)
	if err != nil {
		metrics.ObserveScrape(string(platform), 0, c.now().Sub(start))
		c.logger.WarnContext(ctx, "leaderboard page did not parse", "platform", platform, "error", err)
		return leaderboard.Snapshot{}, fmt.Errorf("%w: parse %s: %v", usecase.ErrDependencyUnavailable, platform, err)
	}

	scrapedAt := c.now()
	metrics.ObserveScrape(string(platform), len(rows), scrapedAt.Sub(start))
	c.logger.DebugContext(ctx, "leaderboard scraped", "platform", platform, "rows", len(rows), "elapsed", scrapedAt.Sub(start))

	return leaderboard.Snapshot{
		Platform:  platform,
		Rows:      rows,
		ScrapedAt: scrapedAt,
	}, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	err := c.breaker.Guard(func() error {
		var err error
		body, err = c.executeRequest(ctx, pageURL)
		return err
	}, classifyScrapeError)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
	}
	return body, err
}

// classifyScrapeError trips the breaker only on transport and 5xx/429
// failures. A layout or 4xx error says nothing about upstream health.
func classifyScrapeError(err error) resilience.Outcome {
	switch {
	case err == nil:
		return resilience.OutcomeSuccess
	case stderrors.Is(err, errScrapeTransient):
		return resilience.OutcomeFailure
	default:
		return resilience.OutcomeIgnored
	}
}

func (c *Client) executeRequest(ctx context.Context, pageURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", errScrapeTransient, err)
		}

		status, body, err := c.do(ctx, pageURL)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("%w: send request: %v", errScrapeTransient, err)
		case status == fasthttp.StatusOK:
			return body, nil
		case resilience.IsRetryableStatus(status):
			lastErr = fmt.Errorf("%w: status=%d", errScrapeTransient, status)
		default:
			return nil, crerr.Newf("leaderboard page status=%d", status)
		}

		if attempt == c.retry.MaxRetries {
			break
		}
		if err := resilience.Sleep(ctx, c.retry.Backoff(attempt)); err != nil {
			return nil, fmt.Errorf("%w: %v", errScrapeTransient, err)
		}
	}

	c.logger.WarnContext(ctx, "leaderboard request failed", "url", pageURL, "error", lastErr)
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, pageURL string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(pageURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	deadline := c.now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.httpClient.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, err
	}

	// resp is released on return; the body must outlive it.
	body := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, nil
}
