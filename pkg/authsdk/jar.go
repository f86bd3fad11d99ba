package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// DefaultCookieSlot is the backend slot holding persisted cookies.
const DefaultCookieSlot = "sessionCookies"

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// PersistentJar is an http.CookieJar that mirrors the API origin's cookies
// into a credstore.Backend slot, so the refresh cookie survives a restart.
type PersistentJar struct {
	origin  *url.URL
	backend credstore.Backend
	slot    string
	logger  *slog.Logger

	mu      sync.Mutex
	jar     *cookiejar.Jar
	cookies map[string]storedCookie
}

// NewPersistentJar loads persisted cookies for apiURL from backend.
func NewPersistentJar(ctx context.Context, backend credstore.Backend, slot, apiURL string, logger *slog.Logger) (*PersistentJar, error) {
	origin, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: parse api url: %w", err)
	}
	if slot == "" {
		slot = DefaultCookieSlot
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	j := &PersistentJar{
		origin:  origin,
		backend: backend,
		slot:    slot,
		logger:  slogx.OrDefault(logger),
		jar:     jar,
		cookies: make(map[string]storedCookie),
	}

	raw, err := backend.Load(ctx, slot)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
		return j, nil
	case err != nil:
		return nil, fmt.Errorf("cookie jar: load: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		// unreadable state is dropped; the user logs in again
		j.logger.Warn("discarding unreadable persisted cookies", "err", err)
		return j, nil
	}

	now := time.Now()
	restored := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}
		j.cookies[sc.Name] = sc
		restored = append(restored, sc.httpCookie())
	}
	j.jar.SetCookies(origin, restored)
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
	if u.Host != j.origin.Host {
		return
	}

	now := time.Now()
	for _, c := range cookies {
		sc := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, c.Name)
			continue
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				delete(j.cookies, c.Name)
				continue
			}
			sc.Expires = c.Expires
		}
		j.cookies[c.Name] = sc
	}

	if err := j.persistLocked(context.Background()); err != nil {
		j.logger.Warn("cookie persistence failed", "err", err)
	}
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie, in memory and in the backend.
func (j *PersistentJar) Clear(ctx context.Context) error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("cookie jar: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar = jar
	j.cookies = make(map[string]storedCookie)
	return j.persistLocked(ctx)
}

func (j *PersistentJar) persistLocked(ctx context.Context) error {
	if len(j.cookies) == 0 {
		if err := j.backend.Delete(ctx, j.slot); err != nil && !errors.Is(err, credstore.ErrNotFound) {
			return err
		}
		return nil
	}

	stored := make([]storedCookie, 0, len(j.cookies))
	for _, sc := range j.cookies {
		stored = append(stored, sc)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return j.backend.Save(ctx, j.slot, string(data))
}

func (sc storedCookie) httpCookie() *http.Cookie {
	path := sc.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     sc.Name,
		Value:    sc.Value,
		Path:     path,
		Expires:  sc.Expires,
		Secure:   sc.Secure,
		HttpOnly: sc.HttpOnly,
	}
}
