package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

const registeredFlash = "Account created. Log in to continue."

func (c *Console) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	p := page{Title: "Log in"}
	if r.URL.Query().Get("registered") != "" {
		p.Flash = registeredFlash
	}
	render(w, r, http.StatusOK, "login.html", p)
}

func (c *Console) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, r, http.StatusBadRequest, "login.html", page{Title: "Log in", Error: "Malformed form submission."})
		return
	}
	req := authsdk.LoginRequest{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	p := page{Title: "Log in", Email: req.Email}

	auth, err := c.Auth.Login(r.Context(), req)
	switch {
	case authsdk.IsUnauthorized(err):
		p.Error = "Invalid email or password."
		render(w, r, http.StatusUnauthorized, "login.html", p)
		return
	case authsdk.IsStatus(err, http.StatusTooManyRequests):
		p.Error = "Too many attempts. Try again in a minute."
		render(w, r, http.StatusTooManyRequests, "login.html", p)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("login failed", "err", err)
		p.Error = "The calendar service is unavailable."
		render(w, r, http.StatusBadGateway, "login.html", p)
		return
	}

	if err := c.Credentials.Set(r.Context(), credstore.Credential(auth.AccessToken)); err != nil {
		// the credential is held in memory; only persistence failed
		slogx.FromContext(r.Context()).Warn("credential not persisted", "err", err)
	}
	c.Lifecycle.SessionStarted()

	slogx.FromContext(r.Context()).Info("logged in", "user_id", auth.UserID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *Console) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "register.html", page{Title: "Register"})
}

func (c *Console) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, r, http.StatusBadRequest, "register.html", page{Title: "Register", Error: "Malformed form submission."})
		return
	}
	req := authsdk.RegisterRequest{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	p := page{Title: "Register", Email: req.Email, Username: req.Username}

	err := c.Auth.Register(r.Context(), req)
	var httpErr *authsdk.HTTPError
	switch {
	case err == nil:
		http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusConflict:
		p.Error = "That email is already registered."
		render(w, r, http.StatusConflict, "register.html", p)
	case errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest:
		p.Error = "Please correct the highlighted fields."
		p.Fields = httpErr.Details
		render(w, r, http.StatusBadRequest, "register.html", p)
	default:
		slogx.FromContext(r.Context()).Error("registration failed", "err", err)
		p.Error = "The calendar service is unavailable."
		render(w, r, http.StatusBadGateway, "register.html", p)
	}
}

// handleLogout tells the API, ignores its answer, and always drops the
// local session.
func (c *Console) handleLogout(w http.ResponseWriter, r *http.Request) {
	logger := slogx.FromContext(r.Context())

	if err := c.Auth.Logout(r.Context()); err != nil {
		logger.Debug("api logout failed", "err", err)
	}
	c.endSession(r.Context())

	logger.Info("logged out")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (c *Console) endSession(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := c.Credentials.Clear(ctx); err != nil {
		slogx.FromContext(ctx).Warn("credential clear failed", "err", err)
	}
	c.Lifecycle.SessionEnded(ctx)
	c.Gate.Invalidate()
}
