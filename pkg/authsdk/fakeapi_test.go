package authsdk_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

const testPassword = "correct-horse"

// fakeAPI mimics the calendar API: one accepted bearer token at a time,
// rotated by login and refresh.
type fakeAPI struct {
	mu     sync.Mutex
	valid  string
	issued int
	seen   []string

	refreshCalls  atomic.Int32
	resourceCalls atomic.Int32

	// knobs, set before the first request
	refreshStatus  int
	refreshDelay   time.Duration
	refreshNoToken bool
	requireCookie  bool
	alwaysReject   bool

	// hold, if set, delays the /api/held response until it is closed
	hold chan struct{}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeAPI) issue() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	f.valid = fmt.Sprintf("tok-%d", f.issued)
	return f.valid
}

func (f *fakeAPI) seenAuth() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func (f *fakeAPI) authorize(w http.ResponseWriter, r *http.Request) bool {
	f.resourceCalls.Add(1)

	f.mu.Lock()
	got := r.Header.Get("Authorization")
	f.seen = append(f.seen, got)
	ok := !f.alwaysReject && f.valid != "" && got == "Bearer "+f.valid
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{Code: "unauthorized", Message: "invalid token"})
	}
	return ok
}

func (f *fakeAPI) setRefreshCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refreshToken",
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
}

func (f *fakeAPI) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tok := f.issue()
		f.setRefreshCookie(w, "rt-"+tok, 7*24*60*60)
		writeJSON(w, http.StatusOK, authsdk.AuthResponse{AccessToken: tok, UserID: "u-1", Email: req.Email, Username: "alice"})
	})

	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "taken@example.com" {
			writeJSON(w, http.StatusConflict, authsdk.ErrorResponse{Code: "conflict", Message: "user already exists"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.refreshDelay > 0 {
			time.Sleep(f.refreshDelay)
		}
		if f.refreshStatus != 0 {
			w.WriteHeader(f.refreshStatus)
			return
		}
		if f.requireCookie {
			if c, err := r.Cookie("refreshToken"); err != nil || c.Value == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		if f.refreshNoToken {
			writeJSON(w, http.StatusOK, map[string]string{"userId": "u-1"})
			return
		}
		tok := f.issue()
		f.setRefreshCookie(w, "rt-"+tok, 7*24*60*60)
		writeJSON(w, http.StatusOK, authsdk.AuthResponse{AccessToken: tok, UserID: "u-1"})
	})

	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.setRefreshCookie(w, "", -1)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorize(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, authsdk.UserResponse{ID: "u-1", Email: "alice@example.com", Username: "alice", Role: "USER"})
	})

	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorize(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, []authsdk.EventResponse{{ID: "e-1", Title: "standup", Status: authsdk.EventStatusPublished}})
	})

	mux.HandleFunc("POST /api/events", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorize(w, r) {
			return
		}
		var req authsdk.EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Code: "bad_request", Message: "invalid body"})
			return
		}
		writeJSON(w, http.StatusCreated, authsdk.EventResponse{ID: "e-2", Title: req.Title, Status: authsdk.EventStatusDraft})
	})

	mux.HandleFunc("GET /api/held", func(w http.ResponseWriter, r *http.Request) {
		// the verdict is taken before waiting, against the token sent
		ok := f.authorize(w, r)
		if f.hold != nil {
			<-f.hold
		}
		if ok {
			w.WriteHeader(http.StatusNoContent)
		}
	})

	mux.HandleFunc("GET /api/large", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorize(w, r) {
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(make([]byte, 4<<20+1))
	})

	mux.HandleFunc("GET /api/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorize(w, r) {
			return
		}
		writeJSON(w, http.StatusNotFound, authsdk.ErrorResponse{Code: "not_found", Message: "event not found"})
	})

	mux.HandleFunc("/api/empty/{kind}", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorize(w, r) {
			return
		}
		switch r.PathValue("kind") {
		case "no-content":
			w.WriteHeader(http.StatusNoContent)
		case "reset-content":
			w.WriteHeader(http.StatusResetContent)
		case "empty-json":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
		case "text":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("deleted"))
		case "zero-length":
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type pipeline struct {
	store  *credstore.Store
	sdk    *authsdk.SDKClient
	coord  *authsdk.Coordinator
	client *authsdk.Client
}

func newPipeline(t *testing.T, baseURL string, opts ...authsdk.ClientOption) pipeline {
	t.Helper()

	logger := slogx.Discard()
	store := credstore.NewMemoryStore()
	sdk := authsdk.NewSDKClient(baseURL, authsdk.WithLogger(logger))
	coord := authsdk.NewCoordinator(store, sdk, authsdk.WithCoordinatorLogger(logger))
	client := authsdk.NewClient(sdk, store, coord, append([]authsdk.ClientOption{authsdk.WithClientLogger(logger)}, opts...)...)

	return pipeline{store: store, sdk: sdk, coord: coord, client: client}
}
