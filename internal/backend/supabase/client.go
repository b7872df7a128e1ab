// Package supabase talks to a hosted auth service (GoTrue) and its REST
// gateway (PostgREST) over HTTP.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/events"
	"github.com/mcoot/arena-auth/internal/model"
	"github.com/mcoot/arena-auth/internal/storage"
)

// SessionKey is the storage key the session is persisted under
const SessionKey = "auth.session"

// Config holds the service endpoint and credentials
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co
	URL string
	// AnonKey is the public API key sent with every request
	AnonKey string
	// RefreshMargin refreshes the access token this long before it expires
	RefreshMargin time.Duration
	// Timeout bounds each HTTP request
	Timeout time.Duration
}

// Client implements backend.Auth and backend.Profiles against the hosted service
type Client struct {
	baseURL       string
	anonKey       string
	refreshMargin time.Duration
	httpClient    *http.Client
	store         storage.Store
	clock         clock.Clock
	logger        *slog.Logger
	hub           *events.Hub[backend.SessionEvent]

	mu      sync.Mutex
	loaded  bool
	session *backend.Session
}

var (
	_ backend.Auth     = (*Client)(nil)
	_ backend.Profiles = (*Client)(nil)
)

// New creates a client. The session is read from store on first use.
func New(cfg Config, store storage.Store, clk clock.Clock, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase: URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("supabase: invalid URL: %w", err)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase: anon key is required")
	}
	if cfg.RefreshMargin == 0 {
		cfg.RefreshMargin = 10 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger = logger.With(slog.String("component", "supabase"))
	hub := events.NewHub[backend.SessionEvent]("auth", logger)
	go hub.Run()

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.URL, "/"),
		anonKey:       cfg.AnonKey,
		refreshMargin: cfg.RefreshMargin,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		store:         store,
		clock:         clk,
		logger:        logger,
		hub:           hub,
	}, nil
}

// Close stops event delivery
func (c *Client) Close() error {
	c.hub.Close()
	return nil
}

// GetSession returns the persisted session, refreshing it when the access
// token is about to expire. A session the service no longer accepts is
// dropped and reported as signed out.
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	current, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	if !current.Expired(c.clock.Now().Add(c.refreshMargin)) {
		return current, nil
	}

	var body sessionBody
	err = c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}},
		"", refreshGrant{RefreshToken: current.RefreshToken}, &body)
	if err != nil {
		if errors.Is(err, model.ErrNotAuthenticated) || isClientError(err) {
			c.logger.Info("stored session rejected", slog.String("error", err.Error()))
			if err := c.setSession(ctx, nil); err != nil {
				return nil, err
			}
			c.publish(backend.EventSignedOut, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	refreshed, err := body.toSession(c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if err := c.setSession(ctx, refreshed); err != nil {
		return nil, err
	}
	c.publish(backend.EventTokenRefreshed, refreshed)
	return copySession(refreshed), nil
}

func (c *Client) OnAuthStateChange(fn func(backend.SessionEvent)) backend.Subscription {
	return c.hub.Subscribe(fn)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	var body sessionBody
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}},
		"", passwordGrant{Email: email, Password: password}, &body)
	if err != nil {
		return nil, err
	}

	session, err := body.toSession(c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := c.setSession(ctx, session); err != nil {
		return nil, err
	}
	c.publish(backend.EventSignedIn, session)
	return copySession(session), nil
}

// SignUp creates the account only. When the service confirms emails
// automatically it also returns tokens; those are discarded and the session
// is opened by signing in.
func (c *Client) SignUp(ctx context.Context, params backend.SignUpParams) (*backend.User, error) {
	var resp signUpResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, "",
		signUpBody{Email: params.Email, Password: params.Password, Data: params.Metadata}, &resp)
	if err != nil {
		return nil, err
	}

	user := resp.toUser()
	if user.ID == "" {
		return nil, errors.New("sign up: response has no user")
	}
	return &user, nil
}

// SignOut revokes the session on the service and forgets it locally.
// The local session is removed even if the service call fails.
func (c *Client) SignOut(ctx context.Context) error {
	current, err := c.current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	remoteErr := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, current.AccessToken, nil, nil)
	if err := c.setSession(ctx, nil); err != nil {
		return err
	}
	c.publish(backend.EventSignedOut, nil)

	if remoteErr != nil && !errors.Is(remoteErr, model.ErrNotAuthenticated) && !isNotFound(remoteErr) {
		return fmt.Errorf("sign out: %w", remoteErr)
	}
	return nil
}

// User asks the service who the current access token belongs to
func (c *Client) User(ctx context.Context) (*backend.User, error) {
	current, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, model.ErrNotAuthenticated
	}

	var body userBody
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, current.AccessToken, nil, &body); err != nil {
		return nil, err
	}
	user := body.toUser()
	return &user, nil
}

// Health reports the status string of the auth service
func (c *Client) Health(ctx context.Context) (string, error) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/v1/health", nil, "", nil, &body); err != nil {
		return "", err
	}
	return body.Status, nil
}

func (c *Client) GetProfileByID(ctx context.Context, id model.UserID) (*model.Profile, error) {
	return c.selectProfile(ctx, url.Values{
		"select": {profileColumns},
		"id":     {"eq." + string(id)},
	})
}

func (c *Client) FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return c.selectProfile(ctx, url.Values{
		"select":   {profileColumns},
		"username": {"ilike." + escapeLike(username)},
		"limit":    {"1"},
	})
}

func (c *Client) selectProfile(ctx context.Context, query url.Values) (*model.Profile, error) {
	bearer := c.anonKey
	if current, err := c.current(ctx); err == nil && current != nil {
		bearer = current.AccessToken
	}

	var rows []model.Profile
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles", query, bearer, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, model.ErrProfileNotFound
	}
	return &rows[0], nil
}

// escapeLike makes every character of s match literally in an ilike pattern
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `\*`)
	return r.Replace(s)
}

// current returns the in-memory session, loading it from storage once
func (c *Client) current(ctx context.Context) (*backend.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		var s backend.Session
		err := storage.GetJSON(ctx, c.store, SessionKey, &s)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			c.logger.Warn("discarding unreadable stored session", slog.String("error", err.Error()))
			_ = c.store.Delete(ctx, SessionKey)
		case s.AccessToken != "" && s.User.ID != "":
			c.session = &s
		}
		c.loaded = true
	}
	return copySession(c.session), nil
}

func (c *Client) setSession(ctx context.Context, s *backend.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = true
	c.session = copySession(s)
	if s == nil {
		if err := c.store.Delete(ctx, SessionKey); err != nil {
			return fmt.Errorf("clear stored session: %w", err)
		}
		return nil
	}
	if err := storage.SetJSON(ctx, c.store, SessionKey, s); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (c *Client) publish(name backend.EventName, s *backend.Session) {
	ev, err := backend.NewSessionEvent(name, s)
	if err != nil {
		c.logger.Error("invalid session event", slog.String("error", err.Error()))
		return
	}
	c.hub.Publish(ev)
}

// do performs a request. bearer defaults to the anon key.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.BackendError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.BackendError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode))

	if resp.StatusCode >= 400 {
		return translateError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

func isClientError(err error) bool {
	var berr *model.BackendError
	return errors.As(err, &berr) && berr.Status >= 400 && berr.Status < 500
}

func isNotFound(err error) bool {
	var berr *model.BackendError
	return errors.As(err, &berr) && berr.Status == http.StatusNotFound
}

func copySession(s *backend.Session) *backend.Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
