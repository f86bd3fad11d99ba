package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// CredentialStore is the part of credstore.Store the gate observes.
type CredentialStore interface {
	Get() (credstore.Credential, bool)
	Generation() uint64
	Clear(ctx context.Context) error
}

// Session is the refresh coordinator as seen by the gate.
type Session interface {
	Refresh(ctx context.Context) (credstore.Credential, error)
	InFlight() bool
	Wait() <-chan struct{}
	State() authsdk.SessionState
}

// IdentitySource resolves the identity behind the current credential.
type IdentitySource interface {
	Me(ctx context.Context) (*authsdk.UserResponse, error)
}

// Config controls the HTTP wrappers and the identity query.
type Config struct {
	LoginPath string
	HomePath  string

	// Wait is how long a wrapper blocks for a decision before rendering the
	// loading page. Zero never blocks.
	Wait time.Duration

	QueryTimeout time.Duration

	// OnRecovered, if set, runs after a recovery refresh restores the
	// session.
	OnRecovered func()
}

func (c *Config) defaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.HomePath == "" {
		c.HomePath = "/"
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 10 * time.Second
	}
}

// identityQuery is one /me lookup, valid for the credential it was issued
// with.
type identityQuery struct {
	cred credstore.Credential
	done chan struct{}
	user *authsdk.UserResponse
	err  error
}

// Gate evaluates routes against the shared session state. It starts a
// refresh only to recover a session when a protected route mounts with no
// stored credential.
type Gate struct {
	creds    CredentialStore
	session  Session
	identity IdentitySource
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	query *identityQuery

	recovery     chan struct{}
	recovered    bool
	recoveredGen uint64
}

// New returns a gate over the given collaborators.
func New(creds CredentialStore, session Session, identity IdentitySource, cfg Config, logger *slog.Logger) *Gate {
	cfg.defaults()
	return &Gate{
		creds:    creds,
		session:  session,
		identity: identity,
		cfg:      cfg,
		logger:   slogx.OrDefault(logger).With("component", "access_gate"),
	}
}

// Evaluate decides route without blocking. Mounting a protected route may
// kick off the recovery refresh and the identity query; both run in the
// background.
func (g *Gate) Evaluate(ctx context.Context, route Route) (Decision, *authsdk.UserResponse) {
	d, s := g.evaluate(ctx, route)
	return d, s.Identity
}

// Await re-evaluates route each time a pending refresh or identity query
// settles, until the decision is final or ctx ends. A public route also
// waits for a loading identity query. On ctx expiry the last decision is
// returned.
func (g *Gate) Await(ctx context.Context, route Route) (Decision, *authsdk.UserResponse) {
	for {
		d, s := g.evaluate(ctx, route)
		if d != Deciding && !(route == RoutePublic && s.SessionLoading) {
			return d, s.Identity
		}

		wait := g.pending()
		if wait == nil {
			continue
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return d, s.Identity
		}
	}
}

// Invalidate drops the cached identity, e.g. after logout.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	g.query = nil
	g.mu.Unlock()
}

func (g *Gate) evaluate(ctx context.Context, route Route) (Decision, Signals) {
	if route == RouteProtected {
		g.mount()
	}

	s := g.signals()
	if route == RoutePublic {
		return DecidePublic(s), s
	}

	d := DecideProtected(s)
	if d == Denied && s.HasStoredCredential {
		// the server refused the identity behind this credential
		g.logger.Info("identity rejected, clearing credential", "err", s.SessionErr)
		if err := g.creds.Clear(context.WithoutCancel(ctx)); err != nil {
			g.logger.Warn("credential clear failed", "err", err)
		}
		g.Invalidate()
	}
	return d, s
}

// mount starts the recovery refresh when a protected route finds no
// credential and nothing is refreshing. It runs at most once per store
// generation so a failed recovery settles on Denied.
func (g *Gate) mount() {
	if _, ok := g.creds.Get(); ok || g.session.InFlight() {
		return
	}
	// a refresh already failed for this session; only a new login revives it
	if g.session.State() == authsdk.StateUnauthenticated {
		return
	}
	gen := g.creds.Generation()

	g.mu.Lock()
	if g.recovery != nil || (g.recovered && g.recoveredGen == gen) {
		g.mu.Unlock()
		return
	}
	done := make(chan struct{})
	g.recovery = done
	g.recovered, g.recoveredGen = true, gen
	g.mu.Unlock()

	go func() {
		defer close(done)

		// the outcome lands in the shared store; nothing here depends on
		// the route that triggered it
		if _, err := g.session.Refresh(context.Background()); err != nil {
			g.logger.Debug("no recoverable session", "err", err)
		} else {
			g.logger.Info("session recovered")
			if g.cfg.OnRecovered != nil {
				g.cfg.OnRecovered()
			}
		}

		g.mu.Lock()
		g.recovery = nil
		g.mu.Unlock()
	}()
}

func (g *Gate) signals() Signals {
	cred, has := g.creds.Get()

	g.mu.Lock()
	recovering := g.recovery != nil
	g.mu.Unlock()

	s := Signals{
		HasStoredCredential: has,
		RefreshInFlight:     recovering || g.session.InFlight(),
	}
	if !has {
		return s
	}

	q := g.queryFor(cred)
	select {
	case <-q.done:
		s.Identity, s.SessionErr = q.user, q.err
	default:
		s.SessionLoading = true
	}
	return s
}

// queryFor returns the identity query for cred, starting one if the cached
// query belongs to another credential.
func (g *Gate) queryFor(cred credstore.Credential) *identityQuery {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.query != nil && g.query.cred == cred {
		return g.query
	}

	q := &identityQuery{cred: cred, done: make(chan struct{})}
	g.query = q
	go g.fetch(q)
	return q
}

func (g *Gate) fetch(q *identityQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.QueryTimeout)
	defer cancel()

	user, err := g.identity.Me(ctx)

	g.mu.Lock()
	q.user, q.err = user, err
	if err == nil {
		// a 401 inside Me may have refreshed; the identity holds for the
		// credential now stored
		if cur, ok := g.creds.Get(); ok {
			q.cred = cur
		}
	}
	g.mu.Unlock()

	close(q.done)
}

// pending returns a channel that closes when some input of the decision
// changes, or nil when nothing is pending.
func (g *Gate) pending() <-chan struct{} {
	g.mu.Lock()
	recovery := g.recovery
	query := g.query
	g.mu.Unlock()

	if recovery != nil {
		return recovery
	}
	if wait := g.session.Wait(); wait != nil {
		return wait
	}
	if query != nil {
		select {
		case <-query.done:
		default:
			return query.done
		}
	}
	return nil
}
