package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Credential errors
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrNotAuthenticated   = errors.New("not authenticated")

	// Registration errors
	ErrUsernameTaken          = errors.New("username already exists")
	ErrEmailTaken             = errors.New("email already registered")
	ErrProfileCreationTimeout = errors.New("profile creation failed")

	// Profile errors
	ErrProfileNotFound   = errors.New("profile not found")
	ErrProfileIncomplete = errors.New("profile is incomplete")
)

// BackendError is an error reported by the auth backend that has no
// dedicated meaning in this application
type BackendError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("backend error (%d %s): %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("backend error: %v", e.Err)
	default:
		return fmt.Sprintf("backend error (%d)", e.Status)
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
