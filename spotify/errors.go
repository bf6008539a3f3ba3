package spotify

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialExchange means we couldn't get a bearer token. Nothing
	// useful can happen until that's fixed, so callers treat it as fatal.
	ErrCredentialExchange = errors.New("credential exchange failed")

	// ErrRateLimitExceeded means a request was still getting 429s after
	// MaxRetries retries.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrProviderRequest covers every other failed request: non-2xx
	// responses, transport errors, undecodable bodies, an open breaker.
	ErrProviderRequest = errors.New("provider request failed")
)

// A RateLimitError is returned once retries against one endpoint run out.
type RateLimitError struct {
	Endpoint string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for '%s' after %d attempts", e.Endpoint, e.Attempts)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// A RequestError is any non-429 failure talking to the API. StatusCode is zero
// when there was no response.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to '%s' failed: %s", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrProviderRequest }
