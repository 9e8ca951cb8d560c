package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/furisto/console/delta"
)

const (
	// requestTimeout bounds every request, including sync polls; a timed-out
	// poll counts as no progress and simply backs the cadence off.
	requestTimeout = 30 * time.Second

	submitMaxTries = 4
)

// Client issues requests against a console server.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

func New(baseURL, token string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: requestTimeout},
	}, nil
}

// FetchWindow performs one sync poll. It does not retry: the poll loop is the
// retry mechanism, and transport errors feed its backoff.
func (c *Client) FetchWindow(ctx context.Context, req delta.Request) (delta.Response, error) {
	u := c.endpoint("/history", url.Values{
		"len":     {strconv.Itoa(req.MaxLen)},
		"version": {strconv.Itoa(req.Version)},
		"begin":   {strconv.Itoa(req.Begin)},
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return delta.Response{}, err
	}
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return delta.Response{}, fmt.Errorf("sync poll failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return delta.Response{}, &statusError{code: httpResp.StatusCode}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return delta.Response{}, fmt.Errorf("failed to read sync response: %w", err)
	}
	return delta.Decode(body)
}

// Submit sends a snippet for execution. Transient transport failures are
// retried with exponential backoff; HTTP client errors are not.
func (c *Client) Submit(ctx context.Context, code []byte) error {
	return c.postWithRetry(ctx, "/code", code)
}

// Clear asks the server to discard all history and start a new epoch.
func (c *Client) Clear(ctx context.Context) error {
	return c.postWithRetry(ctx, "/clear", nil)
}

func (c *Client) postWithRetry(ctx context.Context, path string, body []byte) error {
	op := func() (struct{}, error) {
		err := c.post(ctx, path, body)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(submitMaxTries),
	)
	return err
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if query == nil {
		query = url.Values{}
	}
	query.Set("auth", c.token)
	u.RawQuery = query.Encode()
	return u.String()
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

// retryable reports whether an error is worth retrying: transport errors and
// server-side failures are, client errors are not.
func retryable(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code >= http.StatusInternalServerError
	}
	return true
}
