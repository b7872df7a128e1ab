package model

// UserID uniquely identifies an account on the auth backend
type UserID string

// Profile is the public profile row created for every account
type Profile struct {
	Username  string  `json:"username"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
	Rating    int     `json:"rating"`
}

// Complete reports whether the profile carries the fields an Identity needs
func (p *Profile) Complete() bool {
	return p != nil && p.Username != ""
}

// DisplayName returns the full name, falling back to the username
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// Identity is the signed-in principal as the application sees it.
// It is assembled from the backend user and its profile row.
type Identity struct {
	ID      UserID   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Role    Role     `json:"role"`
	Profile *Profile `json:"profile,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate shared state
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	if i.Profile != nil {
		p := *i.Profile
		if p.AvatarURL != nil {
			avatar := *p.AvatarURL
			p.AvatarURL = &avatar
		}
		out.Profile = &p
	}
	return &out
}

// Valid checks the Identity invariants: known role and, when present, a complete profile
func (i *Identity) Valid() bool {
	if i == nil || i.ID == "" || !i.Role.IsValid() {
		return false
	}
	return i.Profile == nil || i.Profile.Complete()
}

// SignUpRequest carries the fields submitted to create an account
type SignUpRequest struct {
	Email    string
	Password string
	Username string
	FullName string
}
