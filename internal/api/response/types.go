package response

import (
	"time"

	"github.com/mcoot/arena-auth/internal/backend"
)

// User represents an account in API responses
type User struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud"`
	Role         string         `json:"role"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// UserFromBackend converts a backend.User to a response User
func UserFromBackend(u *backend.User) User {
	metadata := u.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return User{
		ID:           string(u.ID),
		Aud:          "authenticated",
		Role:         "authenticated",
		Email:        u.Email,
		UserMetadata: metadata,
	}
}

// Session is the token grant response
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// SessionFromBackend converts a backend.Session issued at now
func SessionFromBackend(s *backend.Session, now time.Time) Session {
	return Session{
		AccessToken:  s.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.ExpiresAt.Sub(now).Seconds()),
		ExpiresAt:    s.ExpiresAt.Unix(),
		RefreshToken: s.RefreshToken,
		User:         UserFromBackend(&s.User),
	}
}

// Health is the body of GET /health
type Health struct {
	Status string `json:"status"`
}
