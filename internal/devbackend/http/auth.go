package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
	"github.com/aussiebroadwan/calendar/internal/devbackend/service"
	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/httpx"
)

// RefreshCookieName is the httpOnly cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

type AuthHandler struct {
	AuthService *service.AuthService

	// SecureCookies sets the Secure attribute on the refresh cookie.
	SecureCookies bool
}

// HandleLogin authenticates with email and password.
//
//	@Summary		Log in
//	@Description	Returns a short-lived access token and sets the refreshToken cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.LoginRequest	true	"credentials"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Failure		429		{object}	authsdk.ErrorResponse
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	session, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSession(w, session)
}

// HandleRegister creates an account without logging in.
//
//	@Summary		Register
//	@Tags			Auth
//	@Accept			json
//	@Param			body	body	authsdk.RegisterRequest	true	"new account"
//	@Success		200
//	@Failure		400	{object}	authsdk.ErrorResponse
//	@Failure		409	{object}	authsdk.ErrorResponse
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	if _, err := h.AuthService.Register(r.Context(), req.Email, req.Username, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleRefresh exchanges the refreshToken cookie for a new access token and
// rotates the cookie.
//
//	@Summary		Refresh the access token
//	@Description	Authenticated only by the refreshToken cookie. No bearer header is needed.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.AuthResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeServiceError(w, r, service.ErrInvalidRefresh)
		return
	}

	session, err := h.AuthService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.expireCookie(w)
		writeServiceError(w, r, err)
		return
	}
	h.writeSession(w, session)
}

// HandleLogout revokes the refresh token and expires the cookie.
//
//	@Summary	Log out
//	@Tags		Auth
//	@Success	200
//	@Router		/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		token = cookie.Value
	}

	if err := h.AuthService.Logout(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.expireCookie(w)
	w.WriteHeader(http.StatusOK)
}

// HandleMe returns the caller's identity.
//
//	@Summary	Current user
//	@Tags		Auth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.UserResponse
//	@Failure	401	{object}	authsdk.ErrorResponse
//	@Router		/api/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.AuthService.Me(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, s domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    s.RefreshToken,
		Path:     "/",
		MaxAge:   int(s.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, authsdk.AuthResponse{
		AccessToken: s.AccessToken,
		UserID:      s.User.ID,
		Email:       s.User.Email,
		Username:    s.User.Username,
	})
}

func (h *AuthHandler) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func toUserResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
		Role:      string(u.Role),
	}
}
