package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aussiebroadwan/calendar/internal/console/web"
	"github.com/aussiebroadwan/calendar/pkg/authsdk"
	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/aussiebroadwan/calendar/pkg/expiry"
	"github.com/aussiebroadwan/calendar/pkg/gate"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the calendar console with its session pipeline.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// ctx bounds background session work; cancelled on shutdown
	ctx    context.Context
	cancel context.CancelFunc

	store       *credstore.Store
	jar         *authsdk.PersistentJar
	sdk         *authsdk.SDKClient
	coordinator *authsdk.Coordinator
	client      *authsdk.Client
	monitor     *expiry.Monitor
	gate        *gate.Gate

	server  *http.Server
	handler http.Handler

	closeOnce sync.Once
}

// New creates a new Application instance with all dependencies initialized.
// When a credential survives from a previous run, the expiry monitor starts
// right away.
func New(cfg Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "calendar-console",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  cfg.LogOutput,
		}),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initSession(); err != nil {
		cancel()
		return nil, err
	}
	app.initHTTP()

	if app.store.Has() {
		app.logger.Info("stored credential found, resuming session")
		app.SessionStarted()
	}
	return app, nil
}

// Handler exposes the console routes, for embedding in tests.
func (app *Application) Handler() http.Handler { return app.handler }

// Store exposes the credential store.
func (app *Application) Store() *credstore.Store { return app.store }

// Monitor exposes the expiry monitor.
func (app *Application) Monitor() *expiry.Monitor { return app.monitor }

// Run starts the console and blocks until shutdown is requested.
func (app *Application) Run() error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return app.Serve(ln)
}

// Serve runs on ln until SIGINT/SIGTERM or a server error.
func (app *Application) Serve(ln net.Listener) error {
	app.logger.Info("calendar console starting",
		"addr", ln.Addr().String(),
		"api_url", app.cfg.APIURL,
		"credential_backend", app.cfg.CredentialBackend,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		_ = app.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown gracefully shuts down the console.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down calendar console...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.Close(); err != nil {
		app.logger.Error("error closing credential backend", "error", err)
		return err
	}

	app.logger.Info("calendar console stopped")
	return nil
}

// Close stops the expiry monitor and releases the credential backend. The
// stored credential is kept for the next run.
func (app *Application) Close() error {
	var err error
	app.closeOnce.Do(func() {
		app.monitor.Stop()
		app.cancel()
		err = app.store.Close()
	})
	return err
}

// SessionStarted (re)starts the expiry monitor for the current credential.
func (app *Application) SessionStarted() {
	app.monitor.Start(app.ctx, expiry.RefreshWith(app.coordinator))
}

// SessionEnded stops the expiry monitor and forgets the refresh cookie.
func (app *Application) SessionEnded(ctx context.Context) {
	app.monitor.Stop()
	if err := app.jar.Clear(ctx); err != nil {
		app.logger.Warn("cookie jar clear failed", "err", err)
	}
}

func (app *Application) initSession() error {
	ctx, cancel := context.WithTimeout(app.ctx, 10*time.Second)
	defer cancel()

	backend, err := openBackend(ctx, app.cfg)
	if err != nil {
		return fmt.Errorf("failed to open credential backend: %w", err)
	}

	store, err := credstore.Open(ctx, backend, app.cfg.slot(), app.logger)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("failed to load credential: %w", err)
	}
	app.store = store

	jar, err := authsdk.NewPersistentJar(ctx, backend, authsdk.DefaultCookieSlot, app.cfg.APIURL, app.logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to load cookies: %w", err)
	}
	app.jar = jar

	app.sdk = authsdk.NewSDKClient(app.cfg.APIURL,
		authsdk.WithTimeout(app.cfg.HTTPTimeout),
		authsdk.WithCookieJar(jar),
		authsdk.WithLogger(app.logger),
	)
	app.coordinator = authsdk.NewCoordinator(store, app.sdk,
		authsdk.WithRefreshTimeout(app.cfg.RefreshTimeout),
		authsdk.WithCoordinatorLogger(app.logger),
	)
	app.client = authsdk.NewClient(app.sdk, store, app.coordinator,
		authsdk.WithRateLimit(app.cfg.RequestsPerSecond, int(app.cfg.RequestsPerSecond)+1),
		authsdk.WithClientLogger(app.logger),
	)
	app.monitor = expiry.New(store, app.cfg.expiry(), app.logger)
	app.gate = gate.New(store, app.coordinator, app.client, gate.Config{
		Wait:        app.cfg.GateWait,
		OnRecovered: app.SessionStarted,
	}, app.logger)
	return nil
}

func (app *Application) initHTTP() {
	console := &web.Console{
		Auth:        app.sdk,
		Credentials: app.store,
		API:         app.client,
		Gate:        app.gate,
		Lifecycle:   app,
		Logger:      app.logger,
	}
	app.handler = console.Routes()

	app.server = &http.Server{
		Addr:              app.cfg.ListenAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
