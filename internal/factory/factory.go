package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/backend/memory"
	"github.com/mcoot/arena-auth/internal/backend/postgres"
	"github.com/mcoot/arena-auth/internal/backend/supabase"
	"github.com/mcoot/arena-auth/internal/config"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/dependencies/navigate"
	"github.com/mcoot/arena-auth/internal/dependencies/notify"
	"github.com/mcoot/arena-auth/internal/dependencies/random"
	"github.com/mcoot/arena-auth/internal/services/role"
	"github.com/mcoot/arena-auth/internal/services/session"
	"github.com/mcoot/arena-auth/internal/services/signup"
	"github.com/mcoot/arena-auth/internal/storage"
	filestorage "github.com/mcoot/arena-auth/internal/storage/file"
	memstorage "github.com/mcoot/arena-auth/internal/storage/memory"
	redisstorage "github.com/mcoot/arena-auth/internal/storage/redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Store storage.Store
	Cache *storage.IdentityCache

	// External dependencies
	Clock     clock.Clock
	Auth      backend.Auth
	Profiles  backend.Profiles
	Notifier  notify.Notifier
	Navigator navigate.Navigator

	// Services
	Resolver role.Resolver
	SignUp   *signup.Protocol
	Session  *session.Synchronizer

	closers []func() error
}

// Config holds configuration for the application factory
type Config struct {
	config.Config

	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Notifier shows notifications (optional)
	// If nil, notifications are logged
	Notifier notify.Notifier
	// Navigator receives redirects (optional)
	// If nil, an unprinted history is kept
	Navigator navigate.Navigator
	// Directory backs the memory backend (optional)
	// If nil, an empty one is created
	Directory *memory.Directory
}

// New creates a new application with all dependencies wired.
// The synchronizer is not initialized; callers run Session.Initialize.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	app := &App{Clock: clock.New()}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	store, err := newStore(ctx, cfg.Config)
	if err != nil {
		return nil, err
	}
	app.Store = store
	if c, isCloser := store.(io.Closer); isCloser {
		app.closers = append(app.closers, c.Close)
	}

	var (
		auth     backend.Auth
		profiles backend.Profiles
	)
	switch cfg.Backend {
	case config.BackendSupabase:
		client, err := supabase.New(supabase.Config{
			URL:     cfg.SupabaseURL,
			AnonKey: cfg.SupabaseAnonKey,
		}, store, app.Clock, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		auth, profiles = client, client

	case config.BackendMemory:
		dir := cfg.Directory
		if dir == nil {
			dir = memory.NewDirectory(memory.DefaultOptions(), app.Clock, random.New(), logger)
		}
		client := memory.NewClient(dir, app.Clock, logger)
		app.closers = append(app.closers, client.Close)
		auth, profiles = client, client
	}

	if cfg.ProfilesDatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.ProfilesDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("profiles database: %w", err)
		}
		app.closers = append(app.closers, func() error {
			pg.Close()
			return nil
		})
		profiles = pg
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	navigator := cfg.Navigator
	if navigator == nil {
		navigator = navigate.NewHistory(nil)
	}

	signUpCfg := signup.Config{
		MaxAttempts: cfg.SignUpMaxAttempts,
		RetryDelay:  cfg.SignUpRetryDelay,
	}
	wire(app, auth, profiles, notifier, navigator, signUpCfg, logger)

	ok = true
	return app, nil
}

func newStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.State {
	case config.StateMemory:
		return memstorage.New(), nil
	case config.StateFile:
		dir := cfg.StateDir
		if dir == "" {
			dir = filestorage.DefaultDir()
		}
		return filestorage.New(dir)
	case config.StateRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		if cfg.RedisNamespace != "" {
			redisCfg.Namespace = cfg.RedisNamespace
		}
		return redisstorage.New(ctx, redisCfg)
	default:
		return nil, fmt.Errorf("invalid state store %q", cfg.State)
	}
}

// wire creates the services on top of the given dependencies (shared with tests)
func wire(app *App, auth backend.Auth, profiles backend.Profiles, notifier notify.Notifier,
	navigator navigate.Navigator, signUpCfg signup.Config, logger *slog.Logger) {
	app.Auth = auth
	app.Profiles = profiles
	app.Notifier = notifier
	app.Navigator = navigator
	app.Cache = storage.NewIdentityCache(app.Store)
	app.Resolver = role.NewEmailHeuristic()
	app.SignUp = signup.New(auth, profiles, app.Clock, logger, signUpCfg)
	app.Session = session.New(session.Config{
		Auth:      auth,
		Profiles:  profiles,
		SignUp:    app.SignUp,
		Resolver:  app.Resolver,
		Cache:     app.Cache,
		Notifier:  notifier,
		Navigator: navigator,
		Logger:    logger,
	})
}

// Close releases the session subscription, event hubs and connections
func (a *App) Close() error {
	if a.Session != nil {
		a.Session.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
