package forms

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/mcoot/arena-auth/internal/model"
)

// FieldRoot is the form-level slot for errors that belong to no single field
const FieldRoot = "root"

// Errors maps a form field (json name) to the message shown next to it
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return strings.Join(parts, "; ")
}

// Has reports whether the field has an error
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// FromValidation flattens ozzo validation errors into Errors.
// Anything that is not a validation error ends up on the root slot.
func FromValidation(err error) Errors {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		out := make(Errors, len(verrs))
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	var ferrs Errors
	if errors.As(err, &ferrs) {
		return ferrs
	}

	return Errors{FieldRoot: err.Error()}
}

const (
	msgInvalidCredentials = "Invalid credentials. Please check your email and password."
	msgEmailNotConfirmed  = "Please confirm your email before signing in."
	msgSignInFailed       = "Could not sign in. Please try again."
	msgUsernameTaken      = "This username is already taken"
	msgEmailTaken         = "This email is already registered"
	msgSignUpFailed       = "Could not create the account. Please try again."
)

// SignInErrors translates a failed sign-in into form errors
func SignInErrors(err error) Errors {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrInvalidCredentials):
		return Errors{FieldRoot: msgInvalidCredentials}
	case errors.Is(err, model.ErrEmailNotConfirmed):
		return Errors{FieldRoot: msgEmailNotConfirmed}
	default:
		return Errors{FieldRoot: msgSignInFailed}
	}
}

// SignUpErrors translates a failed sign-up into form errors
func SignUpErrors(err error) Errors {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrUsernameTaken):
		return Errors{"username": msgUsernameTaken}
	case errors.Is(err, model.ErrEmailTaken):
		return Errors{"email": msgEmailTaken}
	default:
		return Errors{FieldRoot: msgSignUpFailed}
	}
}
