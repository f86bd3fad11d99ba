// Package expiry refreshes the access credential shortly before it expires.
package expiry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

const (
	// DefaultInterval suits a 15 minute credential: at least one check lands
	// inside the lead window.
	DefaultInterval = 14 * time.Minute
	DefaultLead     = 2 * time.Minute
)

// RefreshFunc obtains a new credential.
type RefreshFunc func(ctx context.Context) error

// Refresher matches authsdk.Coordinator.
type Refresher interface {
	Refresh(ctx context.Context) (credstore.Credential, error)
}

// RefreshWith adapts a Refresher to a RefreshFunc.
func RefreshWith(r Refresher) RefreshFunc {
	return func(ctx context.Context) error {
		_, err := r.Refresh(ctx)
		return err
	}
}

// CredentialStore is the part of credstore.Store the monitor needs.
type CredentialStore interface {
	Get() (credstore.Credential, bool)
	Clear(ctx context.Context) error
}

// Config holds the monitor's timing policy.
type Config struct {
	Interval time.Duration
	Lead     time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Monitor runs at most one check loop at a time.
type Monitor struct {
	store    CredentialStore
	interval time.Duration
	lead     time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped monitor.
func New(store CredentialStore, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Lead < 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{
		store:    store,
		interval: cfg.Interval,
		lead:     cfg.Lead,
		now:      cfg.Now,
		logger:   slogx.OrDefault(logger).With("component", "expiry_monitor"),
	}
}

// Start checks the credential now and then every interval, replacing any
// running loop. The loop ends on Stop, when ctx is cancelled, when no
// credential is stored, or after a failed refresh.
func (m *Monitor) Start(ctx context.Context, refresh RefreshFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	gen := m.gen
	m.cancel, m.done = cancel, done
	m.mu.Unlock()

	m.logger.Debug("expiry monitor started", "interval", m.interval, "lead", m.lead)
	go m.run(runCtx, gen, refresh, done)
}

// Stop cancels the running loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.gen++
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Debug("expiry monitor stopped")
}

// Running reports whether a loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) run(ctx context.Context, gen uint64, refresh RefreshFunc, done chan struct{}) {
	defer close(done)
	defer m.retire(gen)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if !m.check(ctx, gen, refresh) {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// check performs one tick and reports whether the loop should continue.
func (m *Monitor) check(ctx context.Context, gen uint64, refresh RefreshFunc) bool {
	if ctx.Err() != nil {
		return false
	}

	cred, ok := m.store.Get()
	if !ok {
		m.logger.Debug("no credential, stopping")
		return false
	}

	expiring, err := cred.ExpiresWithin(m.now(), m.lead)
	var decodeErr *credstore.DecodeError
	if errors.As(err, &decodeErr) {
		m.logger.Warn("credential undecodable, treating as expired", "err", err)
	}
	if !expiring {
		return true
	}

	if err := refresh(ctx); err != nil {
		// a replaced or stopped loop leaves the store to its successor
		if ctx.Err() != nil || !m.retire(gen) {
			return false
		}
		m.logger.Warn("proactive refresh failed, stopping", "err", err)
		if clearErr := m.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			m.logger.Warn("credential clear failed", "err", clearErr)
		}
		return false
	}

	m.logger.Debug("credential refreshed ahead of expiry")
	return true
}

// retire drops the loop's registration if gen is still current and reports
// whether it was.
func (m *Monitor) retire(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return false
	}
	m.cancel()
	m.cancel, m.done = nil, nil
	m.gen++
	return true
}
