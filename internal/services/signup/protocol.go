// Package signup creates accounts and waits for the profile row the backend
// derives from them.
package signup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/dependencies/clock"
	"github.com/mcoot/arena-auth/internal/model"
)

// Config holds configuration for the sign-up protocol
type Config struct {
	// MaxAttempts is the number of profile lookups after account creation
	MaxAttempts int
	// RetryDelay is the fixed wait between lookups
	RetryDelay time.Duration
}

// DefaultConfig returns the default polling budget: 3 attempts, 1s apart
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	}
}

// Result is a completed sign-up
type Result struct {
	User    *backend.User
	Profile *model.Profile
}

// Protocol runs the sign-up sequence: username check, account creation,
// then a bounded poll for the profile row.
type Protocol struct {
	auth     backend.Auth
	profiles backend.Profiles
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
}

// New creates a sign-up protocol
func New(auth backend.Auth, profiles backend.Profiles, clk clock.Clock, logger *slog.Logger, cfg Config) *Protocol {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	return &Protocol{
		auth:     auth,
		profiles: profiles,
		clock:    clk,
		logger:   logger.With(slog.String("component", "signup")),
		cfg:      cfg,
	}
}

// Register creates the account described by req.
//
// It fails with model.ErrUsernameTaken before any account is created when a
// profile already uses the username (ignoring case). If the profile row does
// not appear within the polling budget it fails with
// model.ErrProfileCreationTimeout; the account exists at that point.
func (p *Protocol) Register(ctx context.Context, req model.SignUpRequest) (*Result, error) {
	username := strings.ToLower(req.Username)

	_, err := p.profiles.FindProfileByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, model.ErrUsernameTaken
	case !errors.Is(err, model.ErrProfileNotFound):
		return nil, fmt.Errorf("check username: %w", err)
	}

	user, err := p.auth.SignUp(ctx, backend.SignUpParams{
		Email:    req.Email,
		Password: req.Password,
		Metadata: map[string]any{
			"username":  username,
			"full_name": req.FullName,
		},
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("account created, waiting for profile", slog.String("user_id", string(user.ID)))

	profile, err := p.awaitProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &Result{User: user, Profile: profile}, nil
}

// awaitProfile looks the profile up until it exists or the attempts run out.
// Lookup errors count as a miss.
func (p *Protocol) awaitProfile(ctx context.Context, id model.UserID) (*model.Profile, error) {
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		profile, err := p.profiles.GetProfileByID(ctx, id)
		if err == nil {
			p.logger.Debug("profile found", slog.String("user_id", string(id)), slog.Int("attempt", attempt))
			return profile, nil
		}
		if !errors.Is(err, model.ErrProfileNotFound) {
			p.logger.Warn("profile lookup failed",
				slog.String("user_id", string(id)),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := p.clock.Sleep(ctx, p.cfg.RetryDelay); err != nil {
			return nil, err
		}
	}

	p.logger.Warn("profile never appeared",
		slog.String("user_id", string(id)),
		slog.Int("attempts", p.cfg.MaxAttempts))
	return nil, model.ErrProfileCreationTimeout
}
