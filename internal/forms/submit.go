package forms

import (
	"context"

	"github.com/mcoot/arena-auth/internal/model"
)

// SignInResult mirrors the result of a sign-in attempt. Err is nil on success.
type SignInResult struct {
	Err error
}

// SignInFunc performs a sign-in and reports failures through the result
type SignInFunc func(ctx context.Context, email, password string) SignInResult

// SignUpFunc performs a sign-up
type SignUpFunc func(ctx context.Context, req model.SignUpRequest) error

// SubmitSignIn validates the form and, only if it is valid, calls signIn.
// The returned Errors is nil on success.
func SubmitSignIn(ctx context.Context, form SignInForm, signIn SignInFunc) Errors {
	form.Normalize()
	if err := form.Validate(); err != nil {
		return FromValidation(err)
	}

	res := signIn(ctx, form.Email, form.Password)
	return SignInErrors(res.Err)
}

// SubmitSignUp validates the form and, only if it is valid, calls signUp.
// The returned Errors is nil on success.
func SubmitSignUp(ctx context.Context, form SignUpForm, signUp SignUpFunc) Errors {
	form.Normalize()
	if err := form.Validate(); err != nil {
		return FromValidation(err)
	}

	return SignUpErrors(signUp(ctx, form.Request()))
}
