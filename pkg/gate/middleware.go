package gate

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/httpx"
)

const loadingPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Loading</title></head>
<body><p>Restoring your session…</p></body></html>
`

// Protected wraps a handler that needs a session. Denied redirects to the
// login path, Deciding renders a self-refreshing loading page, and Granted
// calls next with the identity in the request context.
func (g *Gate) Protected(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, user := g.decide(r, RouteProtected)

		switch d {
		case Denied:
			http.Redirect(w, r, g.cfg.LoginPath, http.StatusSeeOther)
		case Deciding:
			writeLoading(w)
		default:
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user)))
		}
	})
}

// Public wraps a login or register handler. A visitor with a resolved
// session is redirected to the home path.
func (g *Gate) Public(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d, _ := g.decide(r, RoutePublic); d == Denied {
			http.Redirect(w, r, g.cfg.HomePath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) decide(r *http.Request, route Route) (Decision, *authsdk.UserResponse) {
	if g.cfg.Wait <= 0 {
		return g.Evaluate(r.Context(), route)
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.Wait)
	defer cancel()
	return g.Await(ctx, route)
}

func writeLoading(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", "1")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(loadingPage))
}
