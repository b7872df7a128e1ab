// Package backend defines the boundary to the hosted auth service: the auth
// API, the profile store, and the session events they emit.
package backend

import (
	"context"
	"time"

	"github.com/mcoot/arena-auth/internal/model"
)

// User is an account as the auth service reports it
type User struct {
	ID       model.UserID   `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is an authenticated session issued by the auth service
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SignUpParams is the account creation request. Metadata is attached to the
// new user and read by the service when it creates the profile row.
type SignUpParams struct {
	Email    string
	Password string
	Metadata map[string]any
}

// Subscription releases an event listener
type Subscription interface {
	Unsubscribe()
}

// Auth is the auth half of the hosted service
type Auth interface {
	// GetSession returns the current session, or nil when signed out
	GetSession(ctx context.Context) (*Session, error)
	// OnAuthStateChange registers fn for every later session change
	OnAuthStateChange(fn func(SessionEvent)) Subscription
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, params SignUpParams) (*User, error)
	SignOut(ctx context.Context) error
}

// Profiles is the queryable profile store.
// Both lookups return model.ErrProfileNotFound when there is no row.
type Profiles interface {
	GetProfileByID(ctx context.Context, id model.UserID) (*model.Profile, error)
	// FindProfileByUsername matches case-insensitively
	FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error)
}
