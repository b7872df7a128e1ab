package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mcoot/arena-auth/internal/api/apierr"
	"github.com/mcoot/arena-auth/internal/api/middleware"
	"github.com/mcoot/arena-auth/internal/api/request"
	"github.com/mcoot/arena-auth/internal/api/response"
	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
)

// AuthService is the account and session store behind the auth endpoints
type AuthService interface {
	CreateUser(ctx context.Context, params backend.SignUpParams) (*backend.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*backend.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AuthHandler serves the /auth/v1 endpoints
type AuthHandler struct {
	service AuthService
	clock   clock.Clock
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service AuthService, clk clock.Clock) *AuthHandler {
	return &AuthHandler{
		service: service,
		clock:   clk,
	}
}

// Token handles POST /auth/v1/token?grant_type=...
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var (
		session *backend.Session
		err     error
	)

	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		var req request.PasswordGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
			return
		}
		if req.Email == "" || req.Password == "" {
			apierr.WriteError(w, apierr.NewInvalidRequestError("email and password are required"))
			return
		}
		session, err = h.service.SignInWithPassword(r.Context(), req.Email, req.Password)

	case "refresh_token":
		var req request.RefreshGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
			return
		}
		if req.RefreshToken == "" {
			apierr.WriteError(w, apierr.NewInvalidRequestError("refresh_token is required"))
			return
		}
		session, err = h.service.Refresh(r.Context(), req.RefreshToken)

	default:
		apierr.WriteError(w, apierr.NewInvalidRequestError("unsupported grant_type: "+grant))
		return
	}

	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromBackend(session, h.clock.Now()))
}

// SignUp handles POST /auth/v1/signup.
// The account is created without a session; clients sign in afterwards.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req request.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Email == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("email is required"))
		return
	}
	if req.Password == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("password is required"))
		return
	}

	user, err := h.service.CreateUser(r.Context(), backend.SignUpParams{
		Email:    req.Email,
		Password: req.Password,
		Metadata: req.Data,
	})
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromBackend(user))
}

// Logout handles POST /auth/v1/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context(), middleware.GetToken(r.Context())); err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// User handles GET /auth/v1/user
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	response.JSON(w, http.StatusOK, response.UserFromBackend(user))
}
