package model

import "fmt"

// Role is the access level that decides which dashboard a user lands on
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSponsor Role = "sponsor"
	RolePlayer  Role = "player"
)

// IsValid checks if the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSponsor, RolePlayer:
		return true
	default:
		return false
	}
}

// ParseRole converts a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
