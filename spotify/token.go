package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/metrics"
	"github.com/amonks/catalog/request"
	"github.com/goccy/go-json"
)

// tokens are treated as expired this long before Spotify says they are
const tokenMargin = time.Second

type tokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a bearer token, doing a client-credentials exchange if the
// cached one is missing or expired. Concurrent callers that find the cache
// empty share a single exchange.
func (spo *Client) Token(ctx context.Context) (string, error) {
	if token, ok := spo.cachedToken(); ok {
		return token, nil
	}

	ch := spo.tokenFlight.DoChan("token", func() (any, error) {
		// someone else may have refreshed while we were queued up
		if token, ok := spo.cachedToken(); ok {
			return token, nil
		}
		// the exchange outlives any one caller
		return spo.fetchToken(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("canceled: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (spo *Client) cachedToken() (string, bool) {
	spo.mu.Lock()
	defer spo.mu.Unlock()

	if spo.accessToken == "" || !spo.now().Add(tokenMargin).Before(spo.expiresAt) {
		return "", false
	}
	return spo.accessToken, true
}

func (spo *Client) invalidateToken() {
	spo.mu.Lock()
	defer spo.mu.Unlock()

	spo.accessToken = ""
	spo.expiresAt = time.Time{}
}

func (spo *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spo.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: token request error: %w", ErrCredentialExchange, err)
	}
	req.SetBasicAuth(spo.clientID, spo.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	requestAt := spo.now()
	resp, err := spo.http.Do(req)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: token request error: %w", ErrCredentialExchange, err)
	}
	if err := request.Error(resp); err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: token fetch error: %w", ErrCredentialExchange, err)
	}
	defer resp.Body.Close()

	var result tokenResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: token decode error: %w", ErrCredentialExchange, err)
	}
	if result.AccessToken == "" {
		metrics.TokenExchanges.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: empty access token", ErrCredentialExchange)
	}

	expiresAt := requestAt.Add(time.Duration(result.ExpiresIn) * time.Second)

	spo.mu.Lock()
	spo.accessToken = result.AccessToken
	spo.expiresAt = expiresAt
	spo.mu.Unlock()

	metrics.TokenExchanges.WithLabelValues("ok").Inc()
	logging.Debug().Time("expires_at", expiresAt).Msg("fetched spotify token")

	return result.AccessToken, nil
}
