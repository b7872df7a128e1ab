package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/model"
)

const issuer = "arena-auth-dev"

// accessClaims mirrors the claims the hosted service puts in its access tokens
type accessClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// tokenManager signs and verifies HS256 access tokens
type tokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func (t *tokenManager) issue(id model.UserID, email, sessionID string) (string, time.Time, error) {
	now := t.clock.Now()
	expiresAt := now.Add(t.ttl).Truncate(time.Second)
	claims := accessClaims{
		Email:     email,
		Role:      "authenticated",
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (t *tokenManager) verify(token string) (*accessClaims, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", model.ErrNotAuthenticated)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrNotAuthenticated, err)
	}
	return claims, nil
}
