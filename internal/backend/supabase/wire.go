package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/model"
)

// profileColumns is the projection every profile read selects
const profileColumns = "username,full_name,avatar_url,rating"

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type signUpBody struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

type userBody struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userBody) toUser() backend.User {
	return backend.User{ID: model.UserID(u.ID), Email: u.Email, Metadata: u.UserMetadata}
}

type sessionBody struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	User         *userBody `json:"user"`
}

// signUpResponse is either a bare user (confirmation pending) or a session
type signUpResponse struct {
	userBody
	AccessToken string    `json:"access_token"`
	User        *userBody `json:"user"`
}

func (r signUpResponse) toUser() backend.User {
	if r.User != nil {
		return r.User.toUser()
	}
	return r.userBody.toUser()
}

// toSession converts a token response. The expiry comes from expires_at when
// present, otherwise from the access token's exp claim.
func (b sessionBody) toSession(now time.Time) (*backend.Session, error) {
	if b.AccessToken == "" || b.User == nil || b.User.ID == "" {
		return nil, errors.New("incomplete session in response")
	}

	var expiresAt time.Time
	switch {
	case b.ExpiresAt > 0:
		expiresAt = time.Unix(b.ExpiresAt, 0)
	case b.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(b.ExpiresIn) * time.Second)
	default:
		exp, err := tokenExpiry(b.AccessToken)
		if err != nil {
			return nil, err
		}
		expiresAt = exp
	}

	return &backend.Session{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		ExpiresAt:    expiresAt.UTC(),
		User:         b.User.toUser(),
	}, nil
}

// tokenExpiry reads the exp claim without verifying the signature.
// The client cannot verify it and only needs to know when to refresh.
func tokenExpiry(accessToken string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// errorBody covers the auth service's and the REST gateway's error shapes
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (b errorBody) code() string {
	if b.ErrorCode != "" {
		return b.ErrorCode
	}
	var s string
	if err := json.Unmarshal(b.Code, &s); err == nil {
		return s
	}
	return b.Error
}

func (b errorBody) message() string {
	for _, m := range []string{b.Msg, b.ErrorDescription, b.Message, b.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

// translateError maps an error response to the application's errors
func translateError(status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	code := body.code()
	msg := body.message()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	switch {
	case code == "invalid_credentials" || strings.Contains(msg, "Invalid login credentials"):
		return model.ErrInvalidCredentials
	case code == "email_not_confirmed" || strings.Contains(msg, "Email not confirmed"):
		return model.ErrEmailNotConfirmed
	case code == "user_already_exists" || code == "email_exists" ||
		strings.Contains(msg, "already registered"):
		return model.ErrEmailTaken
	case status == http.StatusUnauthorized || code == "bad_jwt" ||
		code == "session_not_found" || code == "refresh_token_not_found" ||
		strings.Contains(msg, "Invalid Refresh Token"):
		return fmt.Errorf("%w: %s", model.ErrNotAuthenticated, msg)
	default:
		return &model.BackendError{Status: status, Code: code, Message: msg}
	}
}
