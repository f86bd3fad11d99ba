package authsdk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestPersistentJarSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := credstore.NewMemoryBackend()
	api, _ := url.Parse("http://api.example.com:8080")

	jar, err := authsdk.NewPersistentJar(ctx, backend, "", api.String(), slogx.Discard())
	require.NoError(t, err)

	jar.SetCookies(api, []*http.Cookie{
		{Name: "refreshToken", Value: "rt-1", Path: "/", MaxAge: 3600, HttpOnly: true},
		{Name: "expired", Value: "x", Path: "/", Expires: time.Now().Add(-time.Hour)},
	})

	other, _ := url.Parse("http://tracker.example.net")
	jar.SetCookies(other, []*http.Cookie{{Name: "tracking", Value: "1", Path: "/"}})

	restarted, err := authsdk.NewPersistentJar(ctx, backend, "", api.String(), slogx.Discard())
	require.NoError(t, err)

	cookies := restarted.Cookies(api)
	require.Len(t, cookies, 1)
	require.Equal(t, "refreshToken", cookies[0].Name)
	require.Equal(t, "rt-1", cookies[0].Value)

	require.Empty(t, restarted.Cookies(other))
}

func TestPersistentJarClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := credstore.NewMemoryBackend()
	api, _ := url.Parse("http://api.example.com")

	jar, err := authsdk.NewPersistentJar(ctx, backend, "cookies", api.String(), nil)
	require.NoError(t, err)
	jar.SetCookies(api, []*http.Cookie{{Name: "refreshToken", Value: "rt-1", Path: "/"}})

	require.NoError(t, jar.Clear(ctx))
	require.Empty(t, jar.Cookies(api))

	_, err = backend.Load(ctx, "cookies")
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestPersistentJarIgnoresUnreadableState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := credstore.NewMemoryBackend()
	require.NoError(t, backend.Save(ctx, authsdk.DefaultCookieSlot, "not json"))

	jar, err := authsdk.NewPersistentJar(ctx, backend, "", "http://api.example.com", slogx.Discard())
	require.NoError(t, err)

	u, _ := url.Parse("http://api.example.com")
	require.Empty(t, jar.Cookies(u))
}
