package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
	"github.com/aussiebroadwan/calendar/internal/devbackend/service"
	"github.com/aussiebroadwan/calendar/internal/devbackend/store"
	"github.com/aussiebroadwan/calendar/pkg/httpx"
	"github.com/aussiebroadwan/calendar/pkg/jwtx"
	"github.com/aussiebroadwan/calendar/pkg/slogx"

	_ "github.com/aussiebroadwan/calendar/api/devbackend" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Limits groups the rate limit profiles applied by the router.
type Limits struct {
	Login   httpx.RateLimitConfig
	Refresh httpx.RateLimitConfig
	API     httpx.RateLimitConfig
}

// DefaultLimits returns the package profiles.
func DefaultLimits() Limits {
	return Limits{Login: httpx.LoginLimit, Refresh: httpx.RefreshLimit, API: httpx.APILimit}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       jwtx.Signer
	verifier     httpx.AccessVerifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService   *service.AuthService
	EventService  *service.EventService
	Limits        Limits
	SecureCookies bool
}

func NewRouter(
	signer jwtx.Signer,
	verifier httpx.AccessVerifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       DefaultLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerEvents()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Calendar API
//	@version					0.1.0
//	@description				Development backend for the calendar client. Access tokens are EdDSA-signed JWTs
//	@description				valid for 15 minutes. The refresh token travels only as the httpOnly refreshToken cookie.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authenticated(h http.Handler, extra ...httpx.Middleware) http.Handler {
	mws := append([]httpx.Middleware{
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(r.Limits.API),
	}, extra...)
	return httpx.Chain(h, mws...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService, SecureCookies: r.SecureCookies}

	// brute force protection keyed by IP and the submitted email
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.Limits.Login, "email"),
		),
	)
	r.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.Limits.Login),
		),
	)
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.Limits.Refresh),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.Limits.Refresh),
		),
	)
	r.Mux.Handle("GET /api/auth/me", r.authenticated(http.HandlerFunc(h.HandleMe)))
}

func (r *Router) registerEvents() {
	h := &EventsHandler{EventService: r.EventService}

	r.Mux.Handle("GET /api/events", r.authenticated(http.HandlerFunc(h.HandleList)))
	r.Mux.Handle("POST /api/events", r.authenticated(http.HandlerFunc(h.HandleCreate)))
	r.Mux.Handle("GET /api/events/user/{userId}", r.authenticated(http.HandlerFunc(h.HandleListByUser)))
	r.Mux.Handle("GET /api/events/{id}", r.authenticated(http.HandlerFunc(h.HandleGet)))
	r.Mux.Handle("PUT /api/events/{id}", r.authenticated(http.HandlerFunc(h.HandleUpdate)))
	r.Mux.Handle("DELETE /api/events/{id}", r.authenticated(http.HandlerFunc(h.HandleDelete)))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{AuthService: r.AuthService}
	r.Mux.Handle("GET /api/users", r.authenticated(h, httpx.RequireRole(string(domain.RoleAdmin))))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer))
}
