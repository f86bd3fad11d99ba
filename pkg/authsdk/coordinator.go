package authsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// DefaultRefreshTimeout bounds a single refresh attempt.
const DefaultRefreshTimeout = 10 * time.Second

// SessionState is the coarse session status observed by the access gate.
type SessionState int

const (
	StateAnonymous SessionState = iota
	StateRefreshing
	StateAuthenticated
	StateUnauthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRefreshing:
		return "refreshing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// TokenSource performs the backend refresh call.
type TokenSource interface {
	RefreshAccessToken(ctx context.Context) (credstore.Credential, error)
}

// attempt is one in-flight refresh. done is closed once cred/err are final.
type attempt struct {
	done chan struct{}
	cred credstore.Credential
	err  error
}

// Coordinator collapses concurrent refresh requests into a single backend
// call and is the only writer of the store on the refresh path.
type Coordinator struct {
	store   *credstore.Store
	source  TokenSource
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending *attempt

	// rejectedGen is the store generation at the last failed refresh, valid
	// when rejected is set.
	rejected    bool
	rejectedGen uint64
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRefreshTimeout bounds each backend refresh call.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCoordinatorLogger sets the coordinator's logger.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator returns a coordinator refreshing store through source.
func NewCoordinator(store *credstore.Store, source TokenSource, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:   store,
		source:  source,
		timeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = slogx.OrDefault(c.logger).With("component", "refresh_coordinator")
	return c
}

// Refresh obtains a new credential. Callers arriving while an attempt is
// outstanding share its outcome. The attempt itself is not bound to ctx:
// abandoning the wait does not cancel it for the other callers.
//
// Failures wrap ErrRefreshFailed and leave the store empty.
func (c *Coordinator) Refresh(ctx context.Context) (credstore.Credential, error) {
	c.mu.Lock()
	a := c.pending
	if a == nil {
		a = &attempt{done: make(chan struct{})}
		c.pending = a
		go c.run(a)
	}
	c.mu.Unlock()

	select {
	case <-a.done:
		return a.cred, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) run(a *attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	cred, err := c.source.RefreshAccessToken(ctx)
	if err == nil {
		if setErr := c.store.Set(ctx, cred); setErr != nil {
			if errors.Is(setErr, credstore.ErrEmptyCredential) {
				err = setErr
			} else {
				// in-memory value is current; only the durable copy lagged
				c.logger.Warn("refreshed credential not persisted", "err", setErr)
			}
		}
	}

	if err != nil {
		cred = ""
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.logger.Warn("credential clear failed", "err", clearErr)
		}
		c.logger.Info("refresh failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
	} else {
		c.logger.Debug("refresh succeeded", "duration_ms", time.Since(start).Milliseconds())
	}

	c.mu.Lock()
	a.cred, a.err = cred, err
	c.pending = nil
	c.rejected = err != nil
	c.rejectedGen = c.store.Generation()
	c.mu.Unlock()

	close(a.done)
}

// InFlight reports whether a refresh attempt is outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Wait returns a channel closed when the outstanding attempt completes, or
// nil when none is outstanding.
func (c *Coordinator) Wait() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	return c.pending.done
}

// State derives the session state from the store and the last refresh.
func (c *Coordinator) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.pending != nil:
		return StateRefreshing
	case c.rejected && c.rejectedGen == c.store.Generation():
		return StateUnauthenticated
	case c.store.Has():
		return StateAuthenticated
	default:
		return StateAnonymous
	}
}
