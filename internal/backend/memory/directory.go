package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/dependencies/random"
	"github.com/mcoot/arena-auth/internal/model"
)

// DefaultRating is the rating every new profile starts with
const DefaultRating = 1000

const (
	minPasswordLength  = 6
	refreshTokenLength = 24
)

// Options tunes the simulated service
type Options struct {
	// ProfileLag is how many by-id profile lookups miss after sign-up before
	// the profile row becomes visible. It simulates the asynchronous trigger
	// that creates profiles on the hosted service.
	ProfileLag int

	// RequireEmailConfirmation rejects sign-in until ConfirmEmail is called
	RequireEmailConfirmation bool

	// TokenTTL is the lifetime of access tokens
	TokenTTL time.Duration

	// JWTSecret signs access tokens
	JWTSecret []byte
}

// DefaultOptions returns options with no profile lag and an hour-long token
func DefaultOptions() Options {
	return Options{
		TokenTTL:  time.Hour,
		JWTSecret: []byte("arena-dev-secret"),
	}
}

type account struct {
	user         backend.User
	passwordHash []byte
	confirmed    bool
	createdAt    time.Time
}

type sessionRecord struct {
	userID    model.UserID
	createdAt time.Time
}

// Directory is the server-side state of an in-process auth service: accounts,
// profiles, and live sessions. It backs both the in-process Client and the
// local development server.
type Directory struct {
	mu sync.Mutex

	opts   Options
	clock  clock.Clock
	random random.Random
	tokens *tokenManager
	logger *slog.Logger

	accounts     map[model.UserID]*account
	emailIndex   map[string]model.UserID
	profiles     map[model.UserID]*model.Profile
	profileLag   map[model.UserID]int
	sessions     map[string]*sessionRecord
	refreshIndex map[string]string
}

// NewDirectory creates an empty directory
func NewDirectory(opts Options, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Directory {
	defaults := DefaultOptions()
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaults.TokenTTL
	}
	if len(opts.JWTSecret) == 0 {
		opts.JWTSecret = defaults.JWTSecret
	}
	return &Directory{
		opts:         opts,
		clock:        clk,
		random:       rnd,
		tokens:       &tokenManager{secret: opts.JWTSecret, ttl: opts.TokenTTL, clock: clk},
		logger:       logger.With(slog.String("component", "directory")),
		accounts:     make(map[model.UserID]*account),
		emailIndex:   make(map[string]model.UserID),
		profiles:     make(map[model.UserID]*model.Profile),
		profileLag:   make(map[model.UserID]int),
		sessions:     make(map[string]*sessionRecord),
		refreshIndex: make(map[string]string),
	}
}

// CreateUser registers an account and runs the profile trigger.
// The profile takes its username and full name from the metadata.
func (d *Directory) CreateUser(ctx context.Context, params backend.SignUpParams) (*backend.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, &model.BackendError{
			Status:  http.StatusBadRequest,
			Code:    "validation_failed",
			Message: "Unable to validate email address: invalid format",
		}
	}
	if len(params.Password) < minPasswordLength {
		return nil, &model.BackendError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "weak_password",
			Message: fmt.Sprintf("Password should be at least %d characters.", minPasswordLength),
		}
	}

	// Hash outside the lock; bcrypt is slow
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.emailIndex[email]; ok {
		return nil, model.ErrEmailTaken
	}

	username, _ := params.Metadata["username"].(string)
	fullName, _ := params.Metadata["full_name"].(string)
	if username != "" && d.usernameTakenLocked(username) {
		// The trigger fails on the unique index and the whole insert rolls back
		return nil, &model.BackendError{
			Status:  http.StatusInternalServerError,
			Code:    "unexpected_failure",
			Message: "Database error saving new user",
		}
	}

	id := model.UserID(uuid.NewString())
	metadata := make(map[string]any, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	acct := &account{
		user:         backend.User{ID: id, Email: email, Metadata: metadata},
		passwordHash: hash,
		confirmed:    !d.opts.RequireEmailConfirmation,
		createdAt:    d.clock.Now(),
	}
	d.accounts[id] = acct
	d.emailIndex[email] = id

	if username != "" {
		d.profiles[id] = &model.Profile{
			Username: username,
			FullName: fullName,
			Rating:   DefaultRating,
		}
		if d.opts.ProfileLag > 0 {
			d.profileLag[id] = d.opts.ProfileLag
		}
	}

	d.logger.Info("user created",
		slog.String("user_id", string(id)),
		slog.Bool("confirmed", acct.confirmed))

	user := acct.user
	return &user, nil
}

// SignInWithPassword verifies credentials and opens a session
func (d *Directory) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	d.mu.Lock()
	id, ok := d.emailIndex[strings.ToLower(strings.TrimSpace(email))]
	var acct *account
	if ok {
		acct = d.accounts[id]
	}
	d.mu.Unlock()

	if acct == nil {
		return nil, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !acct.confirmed {
		return nil, model.ErrEmailNotConfirmed
	}
	return d.openSessionLocked(acct)
}

// Refresh exchanges a refresh token for a new session. Refresh tokens are single use.
func (d *Directory) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sessionID, ok := d.refreshIndex[refreshToken]
	if !ok {
		return nil, fmt.Errorf("%w: invalid refresh token", model.ErrNotAuthenticated)
	}
	delete(d.refreshIndex, refreshToken)

	rec, ok := d.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session ended", model.ErrNotAuthenticated)
	}
	acct, ok := d.accounts[rec.userID]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", model.ErrNotAuthenticated)
	}
	return d.issueLocked(acct, sessionID)
}

// User returns the user an access token belongs to
func (d *Directory) User(ctx context.Context, accessToken string) (*backend.User, error) {
	claims, err := d.tokens.verify(accessToken)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[claims.SessionID]; !ok {
		return nil, fmt.Errorf("%w: session ended", model.ErrNotAuthenticated)
	}
	acct, ok := d.accounts[model.UserID(claims.Subject)]
	if !ok {
		return nil, fmt.Errorf("%w: user not found", model.ErrNotAuthenticated)
	}
	user := acct.user
	return &user, nil
}

// SignOut ends the session the access token belongs to
func (d *Directory) SignOut(ctx context.Context, accessToken string) error {
	claims, err := d.tokens.verify(accessToken)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.sessions, claims.SessionID)
	for token, sid := range d.refreshIndex {
		if sid == claims.SessionID {
			delete(d.refreshIndex, token)
		}
	}
	return nil
}

// GetProfileByID returns the profile row of a user
func (d *Directory) GetProfileByID(ctx context.Context, id model.UserID) (*model.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if remaining := d.profileLag[id]; remaining > 0 {
		d.profileLag[id] = remaining - 1
		return nil, model.ErrProfileNotFound
	}
	delete(d.profileLag, id)

	p, ok := d.profiles[id]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

// FindProfileByUsername looks a profile up ignoring case
func (d *Directory) FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.profiles {
		if strings.EqualFold(p.Username, username) {
			return cloneProfile(p), nil
		}
	}
	return nil, model.ErrProfileNotFound
}

// ConfirmEmail marks an account's email as confirmed
func (d *Directory) ConfirmEmail(email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.emailIndex[strings.ToLower(email)]
	if !ok {
		return fmt.Errorf("confirm email: no account for %s", email)
	}
	d.accounts[id].confirmed = true
	return nil
}

// PutProfile replaces a user's profile row
func (d *Directory) PutProfile(id model.UserID, p *model.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[id] = cloneProfile(p)
	delete(d.profileLag, id)
}

// DeleteProfile removes a user's profile row
func (d *Directory) DeleteProfile(id model.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.profiles, id)
	delete(d.profileLag, id)
}

// UserByEmail returns the account for an email
func (d *Directory) UserByEmail(email string) (*backend.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.emailIndex[strings.ToLower(email)]
	if !ok {
		return nil, errors.New("user not found")
	}
	user := d.accounts[id].user
	return &user, nil
}

// SessionCount returns the number of live sessions
func (d *Directory) SessionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *Directory) usernameTakenLocked(username string) bool {
	for _, p := range d.profiles {
		if strings.EqualFold(p.Username, username) {
			return true
		}
	}
	return false
}

func (d *Directory) openSessionLocked(acct *account) (*backend.Session, error) {
	sessionID := uuid.NewString()
	d.sessions[sessionID] = &sessionRecord{userID: acct.user.ID, createdAt: d.clock.Now()}
	return d.issueLocked(acct, sessionID)
}

func (d *Directory) issueLocked(acct *account, sessionID string) (*backend.Session, error) {
	access, expiresAt, err := d.tokens.issue(acct.user.ID, acct.user.Email, sessionID)
	if err != nil {
		return nil, err
	}
	refresh := d.random.Token(refreshTokenLength)
	d.refreshIndex[refresh] = sessionID

	return &backend.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         acct.user,
	}, nil
}

func cloneProfile(p *model.Profile) *model.Profile {
	out := *p
	if p.AvatarURL != nil {
		avatar := *p.AvatarURL
		out.AvatarURL = &avatar
	}
	return &out
}
