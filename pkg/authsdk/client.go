package authsdk

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// SDKClient talks to the calendar API without a bearer credential. It covers
// login, registration, logout and the cookie-driven refresh call, and is the
// transport shared by Client.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// SDKOption configures an SDKClient.
type SDKOption func(*SDKClient)

// WithHTTPClient replaces the default HTTP client. The SDK works on a copy;
// hc itself is left as given.
func WithHTTPClient(hc *http.Client) SDKOption {
	return func(c *SDKClient) {
		cp := *hc
		c.HTTPClient = &cp
	}
}

// WithCookieJar sets the jar holding the refresh cookie.
func WithCookieJar(jar http.CookieJar) SDKOption {
	return func(c *SDKClient) { c.HTTPClient.Jar = jar }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) SDKOption {
	return func(c *SDKClient) { c.HTTPClient.Timeout = d }
}

// WithLogger sets the logger used for outbound request logging.
func WithLogger(l *slog.Logger) SDKOption {
	return func(c *SDKClient) { c.Logger = l }
}

// NewSDKClient creates a client for the API at baseURL.
func NewSDKClient(baseURL string, opts ...SDKOption) *SDKClient {
	c := &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Logger = slogx.OrDefault(c.Logger)

	if _, ok := c.HTTPClient.Transport.(*slogx.Transport); !ok {
		c.HTTPClient.Transport = &slogx.Transport{Base: c.HTTPClient.Transport, Logger: c.Logger}
	}
	return c
}

// Login exchanges email and password for an access credential. The refresh
// cookie lands in the client's jar.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", req)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, ErrMissingCredential
	}
	return &out, nil
}

// Register creates an account. It does not log in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", req)
	if err != nil {
		return err
	}
	return checkStatusOK(resp)
}

// Logout asks the API to expire the refresh cookie.
func (c *SDKClient) Logout(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/logout", struct{}{})
	if err != nil {
		return err
	}
	return checkStatusOK(resp)
}

// RefreshAccessToken calls the refresh endpoint. Only the cookie in the jar
// authenticates it; no bearer header is sent. A non-2xx status or a body
// without accessToken is an error.
func (c *SDKClient) RefreshAccessToken(ctx context.Context) (credstore.Credential, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/auth/refresh", struct{}{})
	if err != nil {
		return "", err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", ErrMissingCredential
	}
	return credstore.Credential(out.AccessToken), nil
}
