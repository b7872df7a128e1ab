package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mcoot/arena-auth/internal/api/apierr"
	"github.com/mcoot/arena-auth/internal/backend"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

// TokenVerifier resolves an access token to its user
type TokenVerifier interface {
	User(ctx context.Context, accessToken string) (*backend.User, error)
}

// APIKey rejects requests whose apikey header is not the project's anon key
func APIKey(anonKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("apikey")
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(anonKey)) != 1 {
				apierr.WriteError(w, apierr.NewInvalidAPIKeyError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Bearer requires a valid user access token.
// The anon key is accepted by APIKey but is not a user token, so it fails here.
func Bearer(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			user, err := verifier.User(r.Context(), token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, userContextKey, user)
			ctx = context.WithValue(ctx, tokenContextKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// GetUser returns the authenticated user from the request context
func GetUser(ctx context.Context) *backend.User {
	user, _ := ctx.Value(userContextKey).(*backend.User)
	return user
}

// GetToken returns the verified access token from the request context
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// MustGetUser returns the authenticated user or panics
func MustGetUser(ctx context.Context) *backend.User {
	user := GetUser(ctx)
	if user == nil {
		panic("no user in context - bearer middleware not applied?")
	}
	return user
}
