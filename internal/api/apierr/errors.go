package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/arena-auth/internal/model"
)

// APIError is the error body the auth service returns
type APIError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
}

// Common error codes
const (
	CodeValidationFailed   = "validation_failed"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeBadJWT             = "bad_jwt"
	CodeNoAuthorization    = "no_authorization"
	CodeInvalidAPIKey      = "invalid_api_key"
	CodeNotFound           = "not_found"
	CodeUnexpectedFailure  = "unexpected_failure"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Msg
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(he.apiError)
}

func newHTTPError(status int, code, msg string) *httpError {
	return &httpError{status, APIError{Code: status, ErrorCode: code, Msg: msg}}
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var be *model.BackendError
	if errors.As(err, &be) && be.Status != 0 {
		return newHTTPError(be.Status, be.Code, be.Message)
	}

	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return newHTTPError(http.StatusBadRequest, CodeInvalidCredentials, "Invalid login credentials")
	case errors.Is(err, model.ErrEmailNotConfirmed):
		return newHTTPError(http.StatusBadRequest, CodeEmailNotConfirmed, "Email not confirmed")
	case errors.Is(err, model.ErrEmailTaken):
		return newHTTPError(http.StatusUnprocessableEntity, CodeUserAlreadyExists, "User already registered")
	case errors.Is(err, model.ErrNotAuthenticated):
		return newHTTPError(http.StatusUnauthorized, CodeBadJWT, "invalid JWT: "+err.Error())
	default:
		return newHTTPError(http.StatusInternalServerError, CodeUnexpectedFailure, "Internal server error")
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return newHTTPError(http.StatusBadRequest, CodeValidationFailed, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return newHTTPError(http.StatusUnauthorized, CodeNoAuthorization, "This endpoint requires a Bearer token")
}

// NewInvalidAPIKeyError creates an error for a missing or wrong apikey header
func NewInvalidAPIKeyError() error {
	return newHTTPError(http.StatusUnauthorized, CodeInvalidAPIKey, "Invalid API key")
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) error {
	return newHTTPError(http.StatusNotFound, CodeNotFound, message)
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return newHTTPError(http.StatusInternalServerError, CodeUnexpectedFailure, "Internal server error")
}
