package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/arena-auth/internal/model"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"invalid credentials", model.ErrInvalidCredentials, http.StatusBadRequest, CodeInvalidCredentials, "Invalid login credentials"},
		{"email not confirmed", fmt.Errorf("x: %w", model.ErrEmailNotConfirmed), http.StatusBadRequest, CodeEmailNotConfirmed, "Email not confirmed"},
		{"email taken", model.ErrEmailTaken, http.StatusUnprocessableEntity, CodeUserAlreadyExists, "User already registered"},
		{"backend error", &model.BackendError{Status: 500, Code: CodeUnexpectedFailure, Message: "Database error saving new user"},
			http.StatusInternalServerError, CodeUnexpectedFailure, "Database error saving new user"},
		{"invalid request", NewInvalidRequestError("bad body"), http.StatusBadRequest, CodeValidationFailed, "bad body"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeUnexpectedFailure, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body APIError
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.code, body.ErrorCode)
			assert.Equal(t, tt.msg, body.Msg)
		})
	}
}

func TestWriteErrorNotAuthenticated(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, fmt.Errorf("%w: token expired", model.ErrNotAuthenticated))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), CodeBadJWT)
}
