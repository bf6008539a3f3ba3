// Package spotify is a small client for the parts of the Spotify Web API the
// catalog sync uses: client-credentials auth, paced and retried GETs, offset
// pagination, and a handful of album and artist endpoints.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amonks/catalog/limiter"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/metrics"
	"github.com/amonks/catalog/request"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultAPIURL   = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// MaxRetries is how many times a 429'd request is retried before we give
	// up, so a request is sent at most MaxRetries+1 times.
	MaxRetries = 3

	DefaultRetryDelay = time.Second
	DefaultTimeout    = 15 * time.Second
)

// errServerStatus marks 5xx responses as failures to the circuit breaker. It
// never escapes Get.
var errServerStatus = errors.New("server error status")

type Option func(*Client)

// WithAPIURL points the client at a different API root, like a test server.
func WithAPIURL(u string) Option {
	return func(spo *Client) { spo.apiURL = strings.TrimRight(u, "/") }
}

func WithTokenURL(u string) Option {
	return func(spo *Client) { spo.tokenURL = u }
}

func WithHTTPClient(client *http.Client) Option {
	return func(spo *Client) { spo.http = client }
}

// WithRequestDelay sets the minimum gap between API requests.
func WithRequestDelay(delay time.Duration) Option {
	return func(spo *Client) { spo.limiter = limiter.New(delay) }
}

// WithRetryDelay sets the base backoff after a 429 that has no Retry-After
// header. The nth retry waits n times this.
func WithRetryDelay(delay time.Duration) Option {
	return func(spo *Client) { spo.retryDelay = delay }
}

// WithClock replaces time.Now for token expiry.
func WithClock(now func() time.Time) Option {
	return func(spo *Client) { spo.now = now }
}

// New creates a new Spotify client, with the given clientID and clientSecret.
func New(clientID, clientSecret string, opts ...Option) *Client {
	spo := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiURL:       DefaultAPIURL,
		tokenURL:     DefaultTokenURL,
		http:         &http.Client{Timeout: DefaultTimeout},
		limiter:      limiter.New(0),
		retryDelay:   DefaultRetryDelay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(spo)
	}
	spo.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "spotify",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state change")
		},
	})
	return spo
}

type Client struct {
	clientID     string
	clientSecret string

	apiURL     string
	tokenURL   string
	http       *http.Client
	limiter    *limiter.Limiter
	retryDelay time.Duration
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	now        func() time.Time

	tokenFlight singleflight.Group

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// Get sends an authenticated GET to endpoint (a path under the API root, like
// "/albums/abc") and decodes the JSON response into out.
//
// A 429 is retried up to MaxRetries times, waiting for Retry-After if the
// response has one and for the retry delay times the attempt number if it
// doesn't. Any other non-2xx status fails immediately.
func (spo *Client) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	u := spo.apiURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	label := endpointLabel(endpoint)

	for attempt := 1; ; attempt++ {
		resp, err := spo.send(ctx, endpoint, u)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := resp.Header.Get("Retry-After")
			resp.Body.Close()
			metrics.ProviderRequests.WithLabelValues(label, "rate_limited").Inc()

			if attempt > MaxRetries {
				return &RateLimitError{Endpoint: endpoint, Attempts: attempt}
			}

			wait := spo.retryDelay * time.Duration(attempt)
			if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
			logging.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("rate limited")
			spo.limiter.HoldFor(wait)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized {
			// the next call will exchange credentials again
			spo.invalidateToken()
		}
		if err := request.Error(resp); err != nil {
			metrics.ProviderRequests.WithLabelValues(label, "error").Inc()
			var se *request.StatusError
			errors.As(err, &se)
			return &RequestError{Endpoint: endpoint, StatusCode: se.StatusCode, Err: err}
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			metrics.ProviderRequests.WithLabelValues(label, "error").Inc()
			return &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode error: %w", err)}
		}
		metrics.ProviderRequests.WithLabelValues(label, "ok").Inc()
		return nil
	}
}

// send waits on the limiter, then does one round trip through the breaker.
// The returned response may have any status.
func (spo *Client) send(ctx context.Context, endpoint, u string) (*http.Response, error) {
	if err := spo.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}
	// after the wait, which can outlast a token
	token, err := spo.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &RequestError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := spo.breaker.Execute(func() (*http.Response, error) {
		resp, err := spo.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("canceled: %w", ctxErr)
		}
		metrics.ProviderRequests.WithLabelValues(endpointLabel(endpoint), "error").Inc()
		return nil, &RequestError{Endpoint: endpoint, Err: err}
	}
	return resp, nil
}

// endpointLabel keeps metric cardinality down: "/albums/abc/tracks" is
// counted as "albums".
func endpointLabel(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}
