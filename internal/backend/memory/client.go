package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/events"
	"github.com/mcoot/arena-auth/internal/model"
)

// Client is the client side of the in-process service: it holds the current
// session and reports changes to it, the way the hosted client library does.
type Client struct {
	dir    *Directory
	clock  clock.Clock
	logger *slog.Logger
	hub    *events.Hub[backend.SessionEvent]

	mu      sync.Mutex
	session *backend.Session
}

var (
	_ backend.Auth     = (*Client)(nil)
	_ backend.Profiles = (*Client)(nil)
)

// NewClient creates a client talking to dir
func NewClient(dir *Directory, clk clock.Clock, logger *slog.Logger) *Client {
	logger = logger.With(slog.String("component", "memory_client"))
	hub := events.NewHub[backend.SessionEvent]("auth", logger)
	go hub.Run()
	return &Client{
		dir:    dir,
		clock:  clk,
		logger: logger,
		hub:    hub,
	}
}

// Close stops event delivery
func (c *Client) Close() error {
	c.hub.Close()
	return nil
}

// GetSession returns the current session, refreshing it if the access token expired
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !current.Expired(c.clock.Now()) {
		s := *current
		return &s, nil
	}

	refreshed, err := c.dir.Refresh(ctx, current.RefreshToken)
	if err != nil {
		c.logger.Info("session refresh failed", slog.String("error", err.Error()))
		c.setSession(nil)
		c.publish(backend.EventSignedOut, nil)
		return nil, nil
	}

	c.setSession(refreshed)
	c.publish(backend.EventTokenRefreshed, refreshed)
	s := *refreshed
	return &s, nil
}

func (c *Client) OnAuthStateChange(fn func(backend.SessionEvent)) backend.Subscription {
	return c.hub.Subscribe(fn)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	session, err := c.dir.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	c.publish(backend.EventSignedIn, session)
	s := *session
	return &s, nil
}

// SignUp creates the account only. A session is opened by signing in.
func (c *Client) SignUp(ctx context.Context, params backend.SignUpParams) (*backend.User, error) {
	return c.dir.CreateUser(ctx, params)
}

// SignOut ends the current session. Without a session it does nothing.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.session
	c.session = nil
	c.mu.Unlock()

	if current == nil {
		return nil
	}

	err := c.dir.SignOut(ctx, current.AccessToken)
	c.publish(backend.EventSignedOut, nil)
	if err != nil && !errors.Is(err, model.ErrNotAuthenticated) {
		return err
	}
	return nil
}

func (c *Client) GetProfileByID(ctx context.Context, id model.UserID) (*model.Profile, error) {
	return c.dir.GetProfileByID(ctx, id)
}

func (c *Client) FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return c.dir.FindProfileByUsername(ctx, username)
}

func (c *Client) setSession(s *backend.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) publish(name backend.EventName, s *backend.Session) {
	ev, err := backend.NewSessionEvent(name, s)
	if err != nil {
		c.logger.Error("invalid session event", slog.String("error", err.Error()))
		return
	}
	c.hub.Publish(ev)
}
