package request

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a failed response we keep around for error
// messages.
const maxErrorBody = 4 << 10

// Fetch does an HTTP GET on the given URL and checks that the response has the
// expected media type (like "text/html"). The caller closes the body.
func Fetch(ctx context.Context, client *http.Client, url, mediaType string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request for '%s': %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching '%s': %w", url, err)
	}
	if err := Error(resp); err != nil {
		return nil, fmt.Errorf("unexpected status from '%s': %w", url, err)
	}

	got, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(got, mediaType) {
		resp.Body.Close()
		return nil, fmt.Errorf("expected %s at '%s', but got '%s'", mediaType, url, resp.Header.Get("Content-Type"))
	}

	return resp.Body, nil
}

// A StatusError is a non-2xx response, with the start of its body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status code %d", e.StatusCode)
	}
	return fmt.Sprintf("http status code %d: %s", e.StatusCode, e.Body)
}

// Error checks the given http response for an error code, and, if one is
// present, reads (and closes) the body and returns a *StatusError.
func Error(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	bs, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("error reading body: %s", err)}
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bs))}
}
