package authsdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// CredentialReader is the read side of the credential store. The request
// client never writes credentials.
type CredentialReader interface {
	Get() (credstore.Credential, bool)
}

// Refresher obtains a fresh credential, typically a *Coordinator.
type Refresher interface {
	Refresh(ctx context.Context) (credstore.Credential, error)
}

// Client issues authenticated API calls. A 401 triggers one refresh through
// the Refresher and one replay of the call.
type Client struct {
	sdk       *SDKClient
	creds     CredentialReader
	refresher Refresher
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRateLimit caps outbound calls at rps with the given burst. A zero or
// negative rps leaves calls unlimited.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a request client sending through sdk.
func NewClient(sdk *SDKClient, creds CredentialReader, refresher Refresher, opts ...ClientOption) *Client {
	c := &Client{
		sdk:       sdk,
		creds:     creds,
		refresher: refresher,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = slogx.OrDefault(c.logger).With("component", "request_client")
	return c
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do sends the call with the current credential. On a 401 it refreshes and
// replays exactly once; the replay's result is final whatever its status.
//
// Non-2xx results are returned as *HTTPError. A failed refresh is returned
// as an error wrapping ErrRefreshFailed.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	sent, resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return finish(resp)
	}
	rejected, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	// Another call may already have refreshed while this one was in flight.
	if current, ok := c.creds.Get(); !ok || current == sent {
		if c.sessionEnded() {
			// a concurrent refresh failed and emptied the store
			return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, parseErrorResponse(resp, rejected))
		}
		c.logger.Debug("credential rejected, refreshing", "method", method, "path", path)
		if _, err := c.refresher.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	_, resp, err = c.send(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	return finish(resp)
}

// sessionEnded reports whether the refresher remembers a failed refresh
// for the credential now stored.
func (c *Client) sessionEnded() bool {
	s, ok := c.refresher.(interface{ State() SessionState })
	return ok && s.State() == StateUnauthenticated
}

// Me fetches the identity bound to the current credential.
func (c *Client) Me(ctx context.Context) (*UserResponse, error) {
	resp, err := c.Get(ctx, "/api/auth/me")
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// send performs one HTTP exchange and reports which credential it carried.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (credstore.Credential, *http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := c.sdk.newRequest(ctx, method, path, payload)
	if err != nil {
		return "", nil, err
	}

	cred, ok := c.creds.Get()
	if ok {
		req.Header.Set("Authorization", "Bearer "+cred.Token())
	}

	resp, err := c.sdk.HTTPClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to send request: %w", err)
	}
	return cred, resp, nil
}

// finish buffers the body and converts non-2xx statuses to *HTTPError.
func finish(resp *http.Response) (*Response, error) {
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if err := parseErrorResponse(resp, body); err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
