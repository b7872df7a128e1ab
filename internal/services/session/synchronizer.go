// Package session keeps the signed-in identity consistent with the auth
// backend and drives the side effects of signing in and out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/dependencies/navigate"
	"github.com/mcoot/arena-auth/internal/dependencies/notify"
	"github.com/mcoot/arena-auth/internal/forms"
	"github.com/mcoot/arena-auth/internal/model"
	"github.com/mcoot/arena-auth/internal/services/role"
	"github.com/mcoot/arena-auth/internal/services/signup"
	"github.com/mcoot/arena-auth/internal/storage"
)

// Config holds the synchronizer's collaborators
type Config struct {
	Auth      backend.Auth
	Profiles  backend.Profiles
	SignUp    *signup.Protocol
	Resolver  role.Resolver
	Cache     *storage.IdentityCache
	Notifier  notify.Notifier
	Navigator navigate.Navigator
	Logger    *slog.Logger
}

// Synchronizer owns the signed-in identity. It is the only writer of the
// identity and its cache entry.
//
// Session events announce a principal once: the backend reports a sign-in
// both as a return value and as an event, and token refreshes for the same
// user are applied silently. Startup and explicit sign-in always redirect.
type Synchronizer struct {
	auth      backend.Auth
	profiles  backend.Profiles
	signup    *signup.Protocol
	resolver  role.Resolver
	cache     *storage.IdentityCache
	notifier  notify.Notifier
	navigator navigate.Navigator
	logger    *slog.Logger

	mu        sync.Mutex
	identity  *model.Identity
	announced model.UserID
	// epoch changes whenever the identity is cleared, so a reconcile that
	// started before a sign-out cannot store its result afterwards
	epoch       uint64
	initialized bool
	closed      bool
	eventCtx    context.Context
	sub         backend.Subscription
}

// New creates a synchronizer. Nothing happens until Initialize.
func New(cfg Config) *Synchronizer {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = role.NewEmailHeuristic()
	}
	return &Synchronizer{
		auth:      cfg.Auth,
		profiles:  cfg.Profiles,
		signup:    cfg.SignUp,
		resolver:  resolver,
		cache:     cfg.Cache,
		notifier:  cfg.Notifier,
		navigator: cfg.Navigator,
		logger:    cfg.Logger.With(slog.String("component", "session")),
		eventCtx:  context.Background(),
	}
}

// Initialize restores the cached identity, subscribes to session events and
// checks the backend for an existing session. Later calls do nothing.
//
// When the backend has no session a cached identity is stale and is dropped.
func (s *Synchronizer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.eventCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	s.hydrate(ctx)

	sub := s.auth.OnAuthStateChange(func(ev backend.SessionEvent) {
		s.HandleSessionEvent(s.eventContext(), ev)
	})
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	current, err := s.auth.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if current == nil {
		if s.clear(ctx) {
			s.logger.Info("dropped cached identity without a session")
		}
		return nil
	}

	_ = s.reconcile(ctx, current.User, atStartup)
	return nil
}

func (s *Synchronizer) hydrate(ctx context.Context) {
	identity, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.Warn("discarding cached identity", slog.String("error", err.Error()))
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Error("failed to clear cache", slog.String("error", err.Error()))
		}
		return
	}
	if identity == nil {
		return
	}

	// A restored principal was announced by an earlier run; startup still
	// redirects to its dashboard
	s.mu.Lock()
	s.identity = identity
	s.announced = identity.ID
	s.mu.Unlock()
	s.logger.Debug("restored cached identity", slog.String("user_id", string(identity.ID)))
}

// HandleSessionEvent applies one session change from the backend.
//
// Events are delivered asynchronously and can arrive after a later SignIn or
// Logout has already run, so the backend's current session is checked before
// acting on one. A stale event is ignored.
func (s *Synchronizer) HandleSessionEvent(ctx context.Context, ev backend.SessionEvent) {
	s.mu.Lock()
	closed := s.closed
	epoch := s.epoch
	s.mu.Unlock()
	if closed {
		return
	}

	current, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Warn("could not confirm session event",
			slog.String("event", string(ev.EventName())),
			slog.String("error", err.Error()))
	}

	switch ev := ev.(type) {
	case backend.SessionPresent:
		user := ev.Session.User
		if err == nil {
			if current == nil {
				s.logger.Debug("ignoring stale session event", slog.String("event", string(ev.Name)))
				return
			}
			user = current.User
		}
		s.logger.Debug("session event",
			slog.String("event", string(ev.Name)),
			slog.String("user_id", string(user.ID)))
		_ = s.reconcileFrom(ctx, epoch, user, whenChanged)

	case backend.SessionAbsent:
		if err == nil && current != nil {
			s.logger.Debug("ignoring stale session event", slog.String("event", string(ev.Name)))
			return
		}
		s.logger.Debug("session event", slog.String("event", string(ev.Name)))
		s.clear(ctx)
		s.navigator.Navigate(ctx, model.RouteHome)

	default:
		s.logger.Error("unknown session event", slog.Any("event", ev))
	}
}

// trigger is what started a reconcile. It decides which side effects run.
type trigger int

const (
	// whenChanged announces and redirects only for a new principal
	whenChanged trigger = iota
	// atStartup always redirects and announces only a new principal
	atStartup
	// always announces and redirects
	always
)

// reconcile builds the identity for user. Any failure forces a logout, so
// the synchronizer never holds an identity without a matching profile.
func (s *Synchronizer) reconcile(ctx context.Context, user backend.User, by trigger) error {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	return s.reconcileFrom(ctx, epoch, user, by)
}

// reconcileFrom is reconcile for a caller that observed the state at epoch.
// The result is dropped if the identity was cleared since then.
func (s *Synchronizer) reconcileFrom(ctx context.Context, epoch uint64, user backend.User, by trigger) error {
	identity, err := s.buildIdentity(ctx, user)
	if err != nil {
		s.logger.Warn("reconcile failed",
			slog.String("user_id", string(user.ID)),
			slog.String("error", err.Error()))
		s.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Title:   "Session error",
			Message: "We couldn't load your profile. Please sign in again.",
		})
		s.forceLogout(ctx)
		return err
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("dropping reconcile result after sign-out", slog.String("user_id", string(user.ID)))
		return nil
	}
	s.identity = identity
	announce := s.announced != identity.ID
	s.announced = identity.ID
	s.mu.Unlock()

	if err := s.cache.Save(ctx, identity); err != nil {
		s.logger.Error("failed to cache identity", slog.String("error", err.Error()))
	}

	if announce || by == always {
		s.logger.Info("signed in",
			slog.String("user_id", string(identity.ID)),
			slog.String("role", string(identity.Role)))
		s.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelSuccess,
			Title:   "Signed in",
			Message: "Welcome, " + identity.Name,
		})
	}
	if announce || by != whenChanged {
		s.navigator.Navigate(ctx, model.DashboardFor(identity.Role))
	}
	return nil
}

func (s *Synchronizer) buildIdentity(ctx context.Context, user backend.User) (*model.Identity, error) {
	if user.ID == "" {
		return nil, errors.New("session user has no id")
	}

	profile, err := s.profiles.GetProfileByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if !profile.Complete() {
		return nil, model.ErrProfileIncomplete
	}

	resolved, err := s.resolver.ResolveRole(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	r, err := model.ParseRole(string(resolved))
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}

	return &model.Identity{
		ID:      user.ID,
		Email:   user.Email,
		Name:    profile.DisplayName(),
		Role:    r,
		Profile: profile,
	}, nil
}

// forceLogout ends the backend session and drops local state. The signed-out
// event that follows finds nothing left to clear.
func (s *Synchronizer) forceLogout(ctx context.Context) {
	if err := s.auth.SignOut(ctx); err != nil {
		s.logger.Warn("backend sign-out failed during forced logout", slog.String("error", err.Error()))
	}
	s.clear(ctx)
	s.navigator.Navigate(ctx, model.RouteHome)
}

// clear drops the identity and its cache entry. It reports whether an
// identity was held.
func (s *Synchronizer) clear(ctx context.Context) bool {
	s.mu.Lock()
	had := s.identity != nil
	s.identity = nil
	s.announced = ""
	s.epoch++
	s.mu.Unlock()

	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Error("failed to clear cache", slog.String("error", err.Error()))
	}
	return had
}

// SignIn verifies the credentials with the backend. Expected failures are
// reported in the result, never as a panic or separate error.
func (s *Synchronizer) SignIn(ctx context.Context, email, password string) forms.SignInResult {
	s.mu.Lock()
	held := s.announced
	s.mu.Unlock()

	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.Info("sign in failed", slog.String("error", err.Error()))
		s.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Title:   "Sign in failed",
			Message: forms.SignInErrors(err)[forms.FieldRoot],
		})
		return forms.SignInResult{Err: err}
	}

	// The signed-in event may be handled first and announce a new principal.
	// Signing in again as the held principal is announced here.
	by := whenChanged
	if held != "" && held == sess.User.ID {
		by = always
	}
	_ = s.reconcile(ctx, sess.User, by)
	return forms.SignInResult{}
}

// SignUp registers a new account, waits for its profile and then signs in
// with the same credentials. Registration failures are returned; the result
// carries the outcome of the follow-up sign-in.
func (s *Synchronizer) SignUp(ctx context.Context, req model.SignUpRequest) (forms.SignInResult, error) {
	result, err := s.signup.Register(ctx, req)
	if err != nil {
		s.logger.Info("sign up failed", slog.String("error", err.Error()))
		s.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Title:   "Sign up failed",
			Message: signUpMessage(err),
		})
		return forms.SignInResult{}, err
	}

	s.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelSuccess,
		Title:   "Account created",
		Message: "Welcome to the arena, " + result.Profile.DisplayName(),
	})

	return s.SignIn(ctx, req.Email, req.Password), nil
}

// signUpMessage picks the message the sign-up form would show for err
func signUpMessage(err error) string {
	errs := forms.SignUpErrors(err)
	for _, field := range []string{"username", "email", forms.FieldRoot} {
		if msg, ok := errs[field]; ok {
			return msg
		}
	}
	return err.Error()
}

// Logout signs out of the backend and drops local state. It does nothing
// when nobody is signed in. Local state is dropped even if the backend call
// fails; that error is returned.
func (s *Synchronizer) Logout(ctx context.Context) error {
	s.mu.Lock()
	signedIn := s.identity != nil
	s.mu.Unlock()
	if !signedIn {
		return nil
	}

	remoteErr := s.auth.SignOut(ctx)
	s.clear(ctx)

	s.logger.Info("signed out")
	s.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelInfo,
		Title:   "Signed out",
		Message: "You have been signed out",
	})
	s.navigator.Navigate(ctx, model.RouteHome)

	if remoteErr != nil {
		return fmt.Errorf("sign out: %w", remoteErr)
	}
	return nil
}

// Current returns a copy of the signed-in identity, or nil
func (s *Synchronizer) Current() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Clone()
}

// Close releases the event subscription. Events arriving afterwards are ignored.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Synchronizer) eventContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventCtx
}
