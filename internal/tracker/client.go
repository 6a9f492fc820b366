package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout bounds a single tracker API request.
const DefaultTimeout = 30 * time.Second

// Client is the shared HTTP layer for tracker adapters: authenticated JSON
// requests with bounded timeouts and exponential backoff on transient
// failures. Auth and not-found errors are never retried.
type Client struct {
	HTTPClient *http.Client

	// Authorize sets authentication headers on each request.
	Authorize func(req *http.Request)

	// MaxElapsed caps total retry time. Zero uses a 2 minute default.
	MaxElapsed time.Duration
}

// NewClient creates a client with the default timeout.
func NewClient(authorize func(req *http.Request)) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Authorize:  authorize,
	}
}

func (c *Client) newRequestBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = c.MaxElapsed
	if bo.MaxElapsedTime == 0 {
		bo.MaxElapsedTime = 2 * time.Minute
	}
	return bo
}

// DoJSON performs a JSON request and decodes the response into out (which
// may be nil). Transient failures retry with backoff; permanent failures
// stop immediately.
func (c *Client) DoJSON(ctx context.Context, method, url string, body, out interface{}) error {
	return c.do(ctx, method, url, "application/json", body, out)
}

// DoJSONPatch is DoJSON with the json-patch content type Azure DevOps
// requires for work item updates.
func (c *Client) DoJSONPatch(ctx context.Context, method, url string, body, out interface{}) error {
	return c.do(ctx, method, url, "application/json-patch+json", body, out)
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	operation := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		if c.Authorize != nil {
			c.Authorize(req)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrRemoteNotFound, url))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: truncate(string(respBody), 200)}
			if retryable(httpErr) {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(c.newRequestBackoff(), ctx))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
