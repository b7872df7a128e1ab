package request

// PasswordGrantRequest is the body of POST /auth/v1/token?grant_type=password
type PasswordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshGrantRequest is the body of POST /auth/v1/token?grant_type=refresh_token
type RefreshGrantRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignUpRequest is the body of POST /auth/v1/signup. Data becomes the user metadata.
type SignUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data"`
}
