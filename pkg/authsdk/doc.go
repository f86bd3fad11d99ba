/*
Package authsdk is the client side of the calendar API's authentication
flow: it attaches the short-lived access credential to every call, refreshes
it through a cookie-authenticated endpoint, and replays rejected calls once.

# Types

  - SDKClient: unauthenticated operations (login, register, logout, refresh,
    health) and the shared HTTP transport.
  - Coordinator: single-flight refresh. Concurrent callers share one backend
    call and one outcome; a failure clears the credential store.
  - Client: authenticated Get/Post/Put/Delete. A 401 triggers a refresh
    through the Coordinator and exactly one replay.
  - PersistentJar: cookie jar whose API-origin cookies are kept in a
    credstore.Backend slot, so the refresh cookie survives restarts.

# Wiring

	store, _ := credstore.Open(ctx, backend, credstore.DefaultSlot, logger)
	jar, _ := authsdk.NewPersistentJar(ctx, backend, authsdk.DefaultCookieSlot, apiURL, logger)

	sdk := authsdk.NewSDKClient(apiURL, authsdk.WithCookieJar(jar))
	coord := authsdk.NewCoordinator(store, sdk)
	client := authsdk.NewClient(sdk, store, coord)

	auth, err := sdk.Login(ctx, authsdk.LoginRequest{Email: email, Password: pw})
	if err != nil {
		return err
	}
	_ = store.Set(ctx, credstore.Credential(auth.AccessToken))

	resp, err := client.Get(ctx, "/api/events")

# Errors

Non-2xx responses surface as *HTTPError. A refresh that could not produce a
credential surfaces as an error wrapping ErrRefreshFailed; by then the store
is already empty. Response.Decode returns ErrNoValue for responses without
JSON content (204, empty body, non-JSON content type).

	if errors.Is(err, authsdk.ErrRefreshFailed) {
		// send the user to the login page
	}

# Thread Safety

All types are safe for concurrent use.
*/
package authsdk
