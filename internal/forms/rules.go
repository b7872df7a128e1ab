package forms

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/mcoot/arena-auth/internal/model"
)

var (
	usernamePattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
	digitPattern     = regexp.MustCompile(`[0-9]`)
	specialPattern   = regexp.MustCompile(`[^a-zA-Z0-9]`)
	emailRequiredMsg = "Email is required"
	emailInvalidMsg  = "Invalid email address"
)

// SignInForm is the raw input of the sign-in form
type SignInForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims surrounding whitespace from the email
func (f *SignInForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
}

// Validate checks the form, returning validation.Errors keyed by json field name
func (f SignInForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email,
			validation.Required.Error(emailRequiredMsg),
			is.Email.Error(emailInvalidMsg),
		),
		validation.Field(&f.Password,
			validation.Required.Error("Password is required"),
			validation.RuneLength(8, 0).Error("Password must be at least 8 characters"),
		),
	)
}

// SignUpForm is the raw input of the sign-up form
type SignUpForm struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	FullName        string `json:"full_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Normalize trims surrounding whitespace from the text fields.
// Passwords are taken as typed.
func (f *SignUpForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
	f.Username = strings.TrimSpace(f.Username)
	f.FullName = strings.TrimSpace(f.FullName)
}

// Validate checks the form, returning validation.Errors keyed by json field name
func (f SignUpForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email,
			validation.Required.Error(emailRequiredMsg),
			is.Email.Error(emailInvalidMsg),
		),
		validation.Field(&f.Username,
			validation.Required.Error("Username must be at least 3 characters"),
			validation.RuneLength(3, 0).Error("Username must be at least 3 characters"),
			validation.RuneLength(0, 20).Error("Username cannot be longer than 20 characters"),
			validation.Match(usernamePattern).Error("Only letters, numbers and underscores, starting with a letter"),
		),
		validation.Field(&f.FullName,
			validation.Required.Error("Full name must be at least 2 characters"),
			validation.RuneLength(2, 0).Error("Full name must be at least 2 characters"),
			validation.RuneLength(0, 50).Error("Full name cannot be longer than 50 characters"),
		),
		validation.Field(&f.Password,
			validation.Required.Error("Password must be at least 8 characters"),
			validation.RuneLength(8, 0).Error("Password must be at least 8 characters"),
			validation.Match(digitPattern).Error("Password must contain at least one number"),
			validation.Match(specialPattern).Error("Password must contain at least one special character"),
		),
		validation.Field(&f.ConfirmPassword,
			validation.By(equalsString(f.Password, "Passwords do not match")),
		),
	)
}

// Request converts a validated form into the sign-up request the backend receives
func (f SignUpForm) Request() model.SignUpRequest {
	return model.SignUpRequest{
		Email:    f.Email,
		Password: f.Password,
		Username: f.Username,
		FullName: f.FullName,
	}
}

// equalsString checks that the value matches str exactly
func equalsString(str, msg string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New(msg)
		}
		return nil
	}
}
