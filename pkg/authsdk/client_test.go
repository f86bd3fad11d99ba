package authsdk_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

func TestSDKClientLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	api, srv := newFakeAPI(t)
	api.requireCookie = true
	ctx := context.Background()

	backend := credstore.NewMemoryBackend()
	jar, err := authsdk.NewPersistentJar(ctx, backend, "", srv.URL, slogx.Discard())
	require.NoError(t, err)

	sdk := authsdk.NewSDKClient(srv.URL+"/", authsdk.WithCookieJar(jar), authsdk.WithLogger(slogx.Discard()))
	require.Equal(t, srv.URL, sdk.BaseURL)

	t.Run("refresh without a session cookie fails", func(t *testing.T) {
		_, err := sdk.RefreshAccessToken(ctx)
		require.True(t, authsdk.IsUnauthorized(err))
	})

	t.Run("login stores the refresh cookie", func(t *testing.T) {
		auth, err := sdk.Login(ctx, authsdk.LoginRequest{Email: "alice@example.com", Password: testPassword})
		require.NoError(t, err)
		require.Equal(t, "tok-1", auth.AccessToken)
		require.Equal(t, "alice", auth.Username)

		raw, err := backend.Load(ctx, authsdk.DefaultCookieSlot)
		require.NoError(t, err)
		require.Contains(t, raw, "rt-tok-1")
	})

	t.Run("refresh rides on the cookie", func(t *testing.T) {
		cred, err := sdk.RefreshAccessToken(ctx)
		require.NoError(t, err)
		require.Equal(t, credstore.Credential("tok-2"), cred)
	})

	t.Run("logout expires the cookie", func(t *testing.T) {
		require.NoError(t, sdk.Logout(ctx))

		_, err := backend.Load(ctx, authsdk.DefaultCookieSlot)
		require.ErrorIs(t, err, credstore.ErrNotFound)

		u, _ := url.Parse(srv.URL)
		require.Empty(t, jar.Cookies(u))

		_, err = sdk.RefreshAccessToken(ctx)
		require.True(t, authsdk.IsUnauthorized(err))
	})
}

func TestSDKClientLoginRejected(t *testing.T) {
	t.Parallel()

	_, srv := newFakeAPI(t)
	sdk := authsdk.NewSDKClient(srv.URL, authsdk.WithLogger(slogx.Discard()))

	_, err := sdk.Login(context.Background(), authsdk.LoginRequest{Email: "alice@example.com", Password: "nope"})
	require.True(t, authsdk.IsUnauthorized(err))
}

func TestSDKClientRegister(t *testing.T) {
	t.Parallel()

	_, srv := newFakeAPI(t)
	sdk := authsdk.NewSDKClient(srv.URL, authsdk.WithLogger(slogx.Discard()))
	ctx := context.Background()

	require.NoError(t, sdk.Register(ctx, authsdk.RegisterRequest{Email: "bob@example.com", Username: "bob", Password: "long-enough"}))

	err := sdk.Register(ctx, authsdk.RegisterRequest{Email: "taken@example.com", Username: "bob", Password: "long-enough"})
	require.True(t, authsdk.IsStatus(err, http.StatusConflict))
	require.ErrorContains(t, err, "user already exists")
}

func TestSDKClientHealth(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authsdk.HealthResponse{Status: "ok", Version: "test"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, authsdk.HealthResponse{Status: "degraded"})
	})
	srv := newServer(t, mux)

	sdk := authsdk.NewSDKClient(srv.URL, authsdk.WithLogger(slogx.Discard()))

	live, err := sdk.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	_, err = sdk.GetReadiness(context.Background())
	require.True(t, authsdk.IsStatus(err, http.StatusServiceUnavailable))
}

func TestSDKClientLeavesCallerHTTPClientAlone(t *testing.T) {
	t.Parallel()

	api, srv := newFakeAPI(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	hc := &http.Client{Timeout: time.Minute}
	sdk := authsdk.NewSDKClient(srv.URL,
		authsdk.WithHTTPClient(hc),
		authsdk.WithCookieJar(jar),
		authsdk.WithTimeout(time.Second),
		authsdk.WithLogger(slogx.Discard()),
	)

	require.Nil(t, hc.Jar)
	require.Nil(t, hc.Transport)
	require.Equal(t, time.Minute, hc.Timeout)

	require.Same(t, jar, sdk.HTTPClient.Jar)
	require.Equal(t, time.Second, sdk.HTTPClient.Timeout)
	require.IsType(t, &slogx.Transport{}, sdk.HTTPClient.Transport)

	_, err = sdk.Login(context.Background(), authsdk.LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)

	origin, err := url.Parse(srv.URL)
	require.NoError(t, err)
	require.NotEmpty(t, jar.Cookies(origin))
	require.Equal(t, int32(0), api.refreshCalls.Load())
}
