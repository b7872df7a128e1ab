package role

import (
	"context"
	"strings"

	"github.com/mcoot/arena-auth/internal/model"
)

// Resolver decides which role an authenticated email belongs to.
// Callers only depend on this interface so the policy can be swapped for a
// real lookup (e.g. a roles table) without touching them.
type Resolver interface {
	ResolveRole(ctx context.Context, email string) (model.Role, error)
}

// ResolverFunc adapts a plain function to the Resolver interface
type ResolverFunc func(ctx context.Context, email string) (model.Role, error)

func (f ResolverFunc) ResolveRole(ctx context.Context, email string) (model.Role, error) {
	return f(ctx, email)
}

// EmailHeuristic assigns roles by looking for "admin" or "sponsor" in the email.
//
// This is a placeholder policy. Anyone can register an address containing
// "admin", so it must never be used as an authorization boundary.
type EmailHeuristic struct{}

// NewEmailHeuristic creates the placeholder resolver
func NewEmailHeuristic() *EmailHeuristic {
	return &EmailHeuristic{}
}

var _ Resolver = (*EmailHeuristic)(nil)

// ResolveRole never fails
func (EmailHeuristic) ResolveRole(_ context.Context, email string) (model.Role, error) {
	return Resolve(email), nil
}

// Resolve applies the heuristic: admin first, then sponsor, otherwise player.
// Matching is case-sensitive.
func Resolve(email string) model.Role {
	switch {
	case strings.Contains(email, "admin"):
		return model.RoleAdmin
	case strings.Contains(email, "sponsor"):
		return model.RoleSponsor
	default:
		return model.RolePlayer
	}
}
