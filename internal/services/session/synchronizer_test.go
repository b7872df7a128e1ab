package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/backend/memory"
	"github.com/mcoot/arena-auth/internal/dependencies/mocks"
	"github.com/mcoot/arena-auth/internal/dependencies/navigate"
	"github.com/mcoot/arena-auth/internal/dependencies/notify"
	"github.com/mcoot/arena-auth/internal/model"
	"github.com/mcoot/arena-auth/internal/services/role"
	"github.com/mcoot/arena-auth/internal/services/signup"
	"github.com/mcoot/arena-auth/internal/storage"
	memstore "github.com/mcoot/arena-auth/internal/storage/memory"
	"github.com/mcoot/arena-auth/internal/testutil"
)

const password = "abcdefg1!"

// countingAuth records subscriptions so leaks can be asserted
type countingAuth struct {
	backend.Auth

	mu           sync.Mutex
	subscribed   int
	unsubscribed int
}

func (a *countingAuth) OnAuthStateChange(fn func(backend.SessionEvent)) backend.Subscription {
	a.mu.Lock()
	a.subscribed++
	a.mu.Unlock()
	return &countingSubscription{inner: a.Auth.OnAuthStateChange(fn), auth: a}
}

func (a *countingAuth) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subscribed, a.unsubscribed
}

type countingSubscription struct {
	inner backend.Subscription
	auth  *countingAuth
}

func (s *countingSubscription) Unsubscribe() {
	s.auth.mu.Lock()
	s.auth.unsubscribed++
	s.auth.mu.Unlock()
	s.inner.Unsubscribe()
}

type SynchronizerSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *mocks.MockClock
	dir      *memory.Directory
	client   *memory.Client
	auth     *countingAuth
	store    *memstore.Storage
	cache    *storage.IdentityCache
	notifier *mocks.MockNotifier
	history  *navigate.History
	sync     *Synchronizer
}

func TestSynchronizerSuite(t *testing.T) {
	suite.Run(t, new(SynchronizerSuite))
}

func (s *SynchronizerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	s.build(memory.DefaultOptions())
}

func (s *SynchronizerSuite) TearDownTest() {
	s.sync.Close()
	_ = s.client.Close()
}

func (s *SynchronizerSuite) build(opts memory.Options) {
	s.dir = memory.NewDirectory(opts, s.clock, mocks.NewMockRandom(), testutil.NopLogger())
	s.client = memory.NewClient(s.dir, s.clock, testutil.NopLogger())
	s.auth = &countingAuth{Auth: s.client}
	s.store = memstore.New()
	s.cache = storage.NewIdentityCache(s.store)
	s.notifier = mocks.NewMockNotifier()
	s.history = navigate.NewHistory(nil)
	s.sync = New(Config{
		Auth:      s.auth,
		Profiles:  s.client,
		SignUp:    signup.New(s.client, s.client, s.clock, testutil.NopLogger(), signup.DefaultConfig()),
		Resolver:  role.NewEmailHeuristic(),
		Cache:     s.cache,
		Notifier:  s.notifier,
		Navigator: s.history,
		Logger:    testutil.NopLogger(),
	})
}

// rebuild replaces the synchronizer with one using a different backend setup
func (s *SynchronizerSuite) rebuild(opts memory.Options) {
	s.sync.Close()
	_ = s.client.Close()
	s.build(opts)
}

func (s *SynchronizerSuite) createUser(email, username string) *backend.User {
	meta := map[string]any{"full_name": "Test User"}
	if username != "" {
		meta["username"] = username
	}
	user, err := s.dir.CreateUser(s.ctx, backend.SignUpParams{Email: email, Password: password, Metadata: meta})
	s.Require().NoError(err)
	return user
}

func (s *SynchronizerSuite) assertSignedOut() {
	s.Nil(s.sync.Current())
	_, err := s.store.Get(s.ctx, storage.IdentityKey)
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *SynchronizerSuite) TestInitializeWithoutSession() {
	s.Require().NoError(s.sync.Initialize(s.ctx))

	s.Nil(s.sync.Current())
	s.Empty(s.notifier.Notifications())
	s.Empty(s.history.Routes())
}

func (s *SynchronizerSuite) TestInitializeDropsStaleCache() {
	stale := &model.Identity{ID: "u1", Email: "ada@example.com", Name: "Ada", Role: model.RolePlayer}
	s.Require().NoError(s.cache.Save(s.ctx, stale))

	s.Require().NoError(s.sync.Initialize(s.ctx))

	s.assertSignedOut()
}

func (s *SynchronizerSuite) TestInitializeDiscardsCorruptCache() {
	s.Require().NoError(s.store.Set(s.ctx, storage.IdentityKey, []byte(`{"id":"u1","role":"overlord"}`)))

	s.Require().NoError(s.sync.Initialize(s.ctx))

	s.assertSignedOut()
}

func (s *SynchronizerSuite) TestInitializeReconcilesExistingSession() {
	user := s.createUser("ada@example.com", "ada")
	_, err := s.client.SignInWithPassword(s.ctx, "ada@example.com", password)
	s.Require().NoError(err)

	s.Require().NoError(s.sync.Initialize(s.ctx))

	current := s.sync.Current()
	s.Require().NotNil(current)
	s.Equal(user.ID, current.ID)
	s.Equal(model.RolePlayer, current.Role)
	s.Equal("Test User", current.Name)
	s.Equal("ada", current.Profile.Username)

	cached, err := s.cache.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(current, cached)

	s.Equal([]notify.Level{notify.LevelSuccess}, s.notifier.Levels())
	s.Equal(model.RoutePlayerDashboard, s.history.Current())
}

func (s *SynchronizerSuite) TestRestartWithCachedIdentityRedirectsToDashboard() {
	s.createUser("ada@example.com", "ada")
	_, err := s.client.SignInWithPassword(s.ctx, "ada@example.com", password)
	s.Require().NoError(err)
	s.Require().NoError(s.sync.Initialize(s.ctx))
	s.Require().NotNil(s.sync.Current())

	next := New(Config{
		Auth:      s.client,
		Profiles:  s.client,
		SignUp:    signup.New(s.client, s.client, s.clock, testutil.NopLogger(), signup.DefaultConfig()),
		Resolver:  role.NewEmailHeuristic(),
		Cache:     s.cache,
		Notifier:  s.notifier,
		Navigator: s.history,
		Logger:    testutil.NopLogger(),
	})
	defer next.Close()
	s.notifier.Reset()
	routes := len(s.history.Routes())

	s.Require().NoError(next.Initialize(s.ctx))

	s.Require().NotNil(next.Current())
	s.Equal("ada", next.Current().Profile.Username)
	s.Empty(s.notifier.Notifications(), "a restored principal is not welcomed again")
	s.Len(s.history.Routes(), routes+1)
	s.Equal(model.RoutePlayerDashboard, s.history.Current())
}

func (s *SynchronizerSuite) TestInitializeSubscribesOnce() {
	s.Require().NoError(s.sync.Initialize(s.ctx))
	s.Require().NoError(s.sync.Initialize(s.ctx))

	subscribed, unsubscribed := s.auth.counts()
	s.Equal(1, subscribed)
	s.Equal(0, unsubscribed)

	s.sync.Close()
	s.sync.Close()

	subscribed, unsubscribed = s.auth.counts()
	s.Equal(1, subscribed)
	s.Equal(1, unsubscribed)
}

func (s *SynchronizerSuite) TestSignInRedirectsByRole() {
	tests := []struct {
		email string
		route model.Route
		role  model.Role
	}{
		{"player@x.com", model.RoutePlayerDashboard, model.RolePlayer},
		{"admin@x.com", model.RouteAdminDashboard, model.RoleAdmin},
		{"sponsor@x.com", model.RouteSponsorDashboard, model.RoleSponsor},
	}

	for i, tt := range tests {
		s.Run(tt.email, func() {
			s.createUser(tt.email, "user"+string(rune('a'+i)))

			res := s.sync.SignIn(s.ctx, tt.email, password)
			s.Require().NoError(res.Err)

			s.Equal(tt.role, s.sync.Current().Role)
			s.Equal(tt.route, s.history.Current())
		})
	}
}

func (s *SynchronizerSuite) TestSignInFailure() {
	s.createUser("ada@example.com", "ada")

	res := s.sync.SignIn(s.ctx, "ada@example.com", "wrong-password1!")
	s.ErrorIs(res.Err, model.ErrInvalidCredentials)

	s.Nil(s.sync.Current())
	s.Equal([]notify.Level{notify.LevelError}, s.notifier.Levels())
	s.Empty(s.history.Routes())
}

func (s *SynchronizerSuite) TestSignInUnconfirmedEmail() {
	opts := memory.DefaultOptions()
	opts.RequireEmailConfirmation = true
	s.rebuild(opts)
	s.createUser("ada@example.com", "ada")

	res := s.sync.SignIn(s.ctx, "ada@example.com", password)
	s.ErrorIs(res.Err, model.ErrEmailNotConfirmed)
	s.Nil(s.sync.Current())
}

func (s *SynchronizerSuite) TestSignInEventIsNotAnnouncedTwice() {
	s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.Initialize(s.ctx))

	res := s.sync.SignIn(s.ctx, "ada@example.com", password)
	s.Require().NoError(res.Err)

	s.Never(func() bool { return len(s.notifier.Notifications()) > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	s.Equal([]notify.Level{notify.LevelSuccess}, s.notifier.Levels())
	s.Equal([]model.Route{model.RoutePlayerDashboard}, s.history.Routes())
}

func (s *SynchronizerSuite) TestSignInAgainAsHeldUserIsAnnounced() {
	s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.Initialize(s.ctx))
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)
	s.Never(func() bool { return len(s.notifier.Notifications()) > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	s.history.Navigate(s.ctx, model.RouteHome)
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)

	s.Never(func() bool { return len(s.notifier.Notifications()) > 2 }, 200*time.Millisecond, 10*time.Millisecond)
	s.Equal([]notify.Level{notify.LevelSuccess, notify.LevelSuccess}, s.notifier.Levels())
	s.Equal(model.RoutePlayerDashboard, s.history.Current())
}

func (s *SynchronizerSuite) TestMissingProfileForcesLogout() {
	s.createUser("ada@example.com", "")

	res := s.sync.SignIn(s.ctx, "ada@example.com", password)
	s.NoError(res.Err, "reconcile failures are not returned to the caller")

	s.assertSignedOut()
	s.Equal(0, s.dir.SessionCount())
	s.Equal([]notify.Level{notify.LevelError}, s.notifier.Levels())

	session, err := s.client.GetSession(s.ctx)
	s.Require().NoError(err)
	s.Nil(session)
}

func (s *SynchronizerSuite) TestIncompleteProfileForcesLogout() {
	user := s.createUser("ada@example.com", "ada")
	s.dir.PutProfile(user.ID, &model.Profile{Username: "", FullName: "Ada", Rating: 1000})

	s.sync.SignIn(s.ctx, "ada@example.com", password)

	s.assertSignedOut()
	s.Equal(0, s.dir.SessionCount())
}

func (s *SynchronizerSuite) TestResolverErrorForcesLogout() {
	s.sync.resolver = role.ResolverFunc(func(context.Context, string) (model.Role, error) {
		return "", context.DeadlineExceeded
	})
	s.createUser("ada@example.com", "ada")

	s.sync.SignIn(s.ctx, "ada@example.com", password)

	s.assertSignedOut()
}

func (s *SynchronizerSuite) TestUnknownRoleForcesLogout() {
	s.sync.resolver = role.ResolverFunc(func(context.Context, string) (model.Role, error) {
		return model.Role("owner"), nil
	})
	s.createUser("ada@example.com", "ada")

	s.sync.SignIn(s.ctx, "ada@example.com", password)

	s.assertSignedOut()
	s.Equal(0, s.dir.SessionCount())
	s.Equal(model.RouteHome, s.history.Current())
}

func (s *SynchronizerSuite) TestProfileRemovedOnRefreshForcesLogout() {
	user := s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)
	s.Require().NotNil(s.sync.Current())

	s.dir.DeleteProfile(user.ID)
	session, err := s.client.GetSession(s.ctx)
	s.Require().NoError(err)
	s.sync.HandleSessionEvent(s.ctx, backend.SessionPresent{Name: backend.EventTokenRefreshed, Session: *session})

	s.assertSignedOut()
	s.Equal(model.RouteHome, s.history.Current())
}

func (s *SynchronizerSuite) TestSessionAbsentClearsIdentity() {
	s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)
	s.notifier.Reset()

	s.Require().NoError(s.client.SignOut(s.ctx))
	s.sync.HandleSessionEvent(s.ctx, backend.SessionAbsent{Name: backend.EventSignedOut})

	s.assertSignedOut()
	s.Equal(model.RouteHome, s.history.Current())
	s.Empty(s.notifier.Notifications())
}

func (s *SynchronizerSuite) TestSessionAbsentWithoutIdentityNavigatesHome() {
	s.sync.HandleSessionEvent(s.ctx, backend.SessionAbsent{Name: backend.EventSignedOut})

	s.assertSignedOut()
	s.Equal([]model.Route{model.RouteHome}, s.history.Routes())
	s.Empty(s.notifier.Notifications())
}

func (s *SynchronizerSuite) TestStaleSignedOutEventIsIgnored() {
	s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)

	s.sync.HandleSessionEvent(s.ctx, backend.SessionAbsent{Name: backend.EventSignedOut})

	s.Require().NotNil(s.sync.Current())
	s.Equal(model.RoutePlayerDashboard, s.history.Current())
}

func (s *SynchronizerSuite) TestStaleSignedInEventIsIgnored() {
	s.createUser("ada@example.com", "ada")
	session, err := s.client.SignInWithPassword(s.ctx, "ada@example.com", password)
	s.Require().NoError(err)
	s.Require().NoError(s.client.SignOut(s.ctx))

	s.sync.HandleSessionEvent(s.ctx, backend.SessionPresent{Name: backend.EventSignedIn, Session: *session})

	s.Nil(s.sync.Current())
	s.Empty(s.history.Routes())
}

func (s *SynchronizerSuite) TestSessionPresentEventSignsIn() {
	s.createUser("sponsor@example.com", "acme")
	session, err := s.client.SignInWithPassword(s.ctx, "sponsor@example.com", password)
	s.Require().NoError(err)

	ev, err := backend.NewSessionEvent(backend.EventSignedIn, session)
	s.Require().NoError(err)
	s.sync.HandleSessionEvent(s.ctx, ev)

	s.Require().NotNil(s.sync.Current())
	s.Equal(model.RoleSponsor, s.sync.Current().Role)
	s.Equal(model.RouteSponsorDashboard, s.history.Current())
}

func (s *SynchronizerSuite) TestRefreshForSameUserIsSilent() {
	user := s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)

	s.dir.PutProfile(user.ID, &model.Profile{Username: "ada", FullName: "Ada Lovelace", Rating: 1200})
	session, err := s.client.GetSession(s.ctx)
	s.Require().NoError(err)
	s.sync.HandleSessionEvent(s.ctx, backend.SessionPresent{Name: backend.EventTokenRefreshed, Session: *session})

	s.Equal(1200, s.sync.Current().Profile.Rating)
	cached, err := s.cache.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal("Ada Lovelace", cached.Name)

	s.Len(s.notifier.Notifications(), 1)
	s.Len(s.history.Routes(), 1)
}

func (s *SynchronizerSuite) TestSignUp() {
	opts := memory.DefaultOptions()
	opts.ProfileLag = 1
	s.rebuild(opts)

	res, err := s.sync.SignUp(s.ctx, model.SignUpRequest{
		Email: "grace@example.com", Password: password, Username: "Grace", FullName: "Grace Hopper",
	})
	s.Require().NoError(err)
	s.Require().NoError(res.Err)

	current := s.sync.Current()
	s.Require().NotNil(current)
	s.Equal("grace", current.Profile.Username)
	s.Equal("Grace Hopper", current.Name)

	notes := s.notifier.Notifications()
	s.Require().Len(notes, 2)
	s.Equal("Account created", notes[0].Title)
	s.Equal("Signed in", notes[1].Title)
	s.Equal(model.RoutePlayerDashboard, s.history.Current())
	s.Equal([]time.Duration{time.Second}, s.clock.Sleeps())
}

func (s *SynchronizerSuite) TestSignUpUsernameTaken() {
	s.createUser("ada@example.com", "ada")

	_, err := s.sync.SignUp(s.ctx, model.SignUpRequest{
		Email: "other@example.com", Password: password, Username: "ADA", FullName: "Other",
	})
	s.ErrorIs(err, model.ErrUsernameTaken)

	notes := s.notifier.Notifications()
	s.Require().Len(notes, 1)
	s.Equal(notify.LevelError, notes[0].Level)
	s.Equal("This username is already taken", notes[0].Message)
	s.Nil(s.sync.Current())
}

func (s *SynchronizerSuite) TestSignUpProfileTimeout() {
	opts := memory.DefaultOptions()
	opts.ProfileLag = 5
	s.rebuild(opts)

	_, err := s.sync.SignUp(s.ctx, model.SignUpRequest{
		Email: "grace@example.com", Password: password, Username: "grace", FullName: "Grace Hopper",
	})
	s.ErrorIs(err, model.ErrProfileCreationTimeout)

	s.Nil(s.sync.Current())
	s.Equal(0, s.dir.SessionCount())
	s.Len(s.clock.Sleeps(), 2)
}

func (s *SynchronizerSuite) TestLogout() {
	s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)
	s.notifier.Reset()

	s.Require().NoError(s.sync.Logout(s.ctx))

	s.assertSignedOut()
	s.Equal(0, s.dir.SessionCount())
	s.Equal([]notify.Level{notify.LevelInfo}, s.notifier.Levels())
	s.Equal(model.RouteHome, s.history.Current())

	// Logging out again is a no-op
	routes := len(s.history.Routes())
	s.Require().NoError(s.sync.Logout(s.ctx))
	s.assertSignedOut()
	s.Len(s.notifier.Notifications(), 1)
	s.Len(s.history.Routes(), routes)
}

func (s *SynchronizerSuite) TestLogoutWhenNeverSignedIn() {
	s.NoError(s.sync.Logout(s.ctx))
	s.Nil(s.sync.Current())
	s.Empty(s.notifier.Notifications())
}

func (s *SynchronizerSuite) TestEventsIgnoredAfterClose() {
	s.createUser("ada@example.com", "ada")
	session, err := s.dir.SignInWithPassword(s.ctx, "ada@example.com", password)
	s.Require().NoError(err)

	s.sync.Close()
	s.sync.HandleSessionEvent(s.ctx, backend.SessionPresent{Name: backend.EventSignedIn, Session: *session})

	s.Nil(s.sync.Current())
}

func (s *SynchronizerSuite) TestCurrentReturnsCopy() {
	s.createUser("ada@example.com", "ada")
	s.Require().NoError(s.sync.SignIn(s.ctx, "ada@example.com", password).Err)

	current := s.sync.Current()
	current.Role = model.RoleAdmin
	current.Profile.Username = "mallory"

	s.Equal(model.RolePlayer, s.sync.Current().Role)
	s.Equal("ada", s.sync.Current().Profile.Username)
}
