package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/riskibarqy/apex-leaderboard/internal/platform/resilience"
	"github.com/riskibarqy/apex-leaderboard/internal/usecase"
)

// tokenExpiryBuffer refreshes app tokens this long before Twitch expires them.
const tokenExpiryBuffer = 60 * time.Second

// appTokenSource hands out app access tokens from the client-credentials
// flow and caches them until shortly before expiry. Invalidate drops a cached
// token after Helix rejects it.
type appTokenSource struct {
	mu     sync.Mutex
	cfg    clientcredentials.Config
	client *http.Client
	token  *oauth2.Token
	now    func() time.Time
}

func newAppTokenSource(clientID, clientSecret, tokenURL string, client *http.Client) *appTokenSource {
	return &appTokenSource{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		client: client,
		now:    time.Now,
	}
}

// Token holds the lock across the refresh so concurrent batches share one
// token request.
func (s *appTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && s.token.AccessToken != "" &&
		(s.token.Expiry.IsZero() || s.now().Add(tokenExpiryBuffer).Before(s.token.Expiry)) {
		return s.token.AccessToken, nil
	}

	token, err := s.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, s.client))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classifyTokenError(err)
	}
	s.token = token
	return token.AccessToken, nil
}

// Invalidate drops the cached token if it is still the rejected one; another
// batch may already have replaced it.
func (s *appTokenSource) Invalidate(rejected string) {
	s.mu.Lock()
	if s.token != nil && s.token.AccessToken == rejected {
		s.token = nil
	}
	s.mu.Unlock()
}

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		if status >= 400 && status < 500 && !resilience.IsRetryableStatus(status) {
			return fmt.Errorf("%w: twitch token endpoint status=%d", usecase.ErrUpstreamUnauthorized, status)
		}
	}
	return fmt.Errorf("%w: acquire twitch app token: %v", errTwitchTransient, err)
}
