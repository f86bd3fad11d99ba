// Package web serves the local calendar console: login and registration
// forms, and the pages that need a session.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/httpx"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// Authenticator performs the calls made without a credential.
type Authenticator interface {
	Login(ctx context.Context, req authsdk.LoginRequest) (*authsdk.AuthResponse, error)
	Register(ctx context.Context, req authsdk.RegisterRequest) error
	Logout(ctx context.Context) error
}

// Credentials is the writable side of the credential store.
type Credentials interface {
	Set(ctx context.Context, c credstore.Credential) error
	Clear(ctx context.Context) error
}

// API sends authenticated calls.
type API interface {
	Get(ctx context.Context, path string) (*authsdk.Response, error)
	Post(ctx context.Context, path string, body any) (*authsdk.Response, error)
	Delete(ctx context.Context, path string) (*authsdk.Response, error)
}

// Gate guards routes by session state.
type Gate interface {
	Protected(next http.Handler) http.Handler
	Public(next http.Handler) http.Handler
	Invalidate()
}

// Lifecycle is told when a session begins and ends so background work can
// follow it.
type Lifecycle interface {
	SessionStarted()
	SessionEnded(ctx context.Context)
}

// Console holds the collaborators of the console pages.
type Console struct {
	Auth        Authenticator
	Credentials Credentials
	API         API
	Gate        Gate
	Lifecycle   Lifecycle
	Logger      *slog.Logger
}

// Routes returns the console mux wrapped in request logging.
func (c *Console) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /login", c.Gate.Public(http.HandlerFunc(c.handleLoginForm)))
	mux.Handle("POST /login", c.Gate.Public(http.HandlerFunc(c.handleLogin)))
	mux.Handle("GET /register", c.Gate.Public(http.HandlerFunc(c.handleRegisterForm)))
	mux.Handle("POST /register", c.Gate.Public(http.HandlerFunc(c.handleRegister)))

	mux.Handle("GET /{$}", c.Gate.Protected(http.HandlerFunc(c.handleHome)))
	mux.Handle("GET /events", c.Gate.Protected(http.HandlerFunc(c.handleEvents)))
	mux.Handle("POST /events", c.Gate.Protected(http.HandlerFunc(c.handleCreateEvent)))
	mux.Handle("POST /events/{id}/delete", c.Gate.Protected(http.HandlerFunc(c.handleDeleteEvent)))

	// logout works with or without a live session
	mux.HandleFunc("POST /logout", c.handleLogout)

	return httpx.Chain(mux, slogx.HTTPMiddleware(slogx.OrDefault(c.Logger)))
}
