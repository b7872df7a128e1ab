// Package postgres reads profile rows straight from the project database.
// It is an alternative to the REST gateway for tools running next to the
// database; the auth half still goes through the hosted service.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/arena-auth/internal/backend"
	"github.com/mcoot/arena-auth/internal/model"
)

// Ensure Profiles satisfies the backend.Profiles interface at compile time.
var _ backend.Profiles = (*Profiles)(nil)

const selectProfile = `SELECT username, COALESCE(full_name, ''), avatar_url, rating FROM public.profiles`

// Profiles is a read-only view of the profiles table
type Profiles struct {
	pool *pgxpool.Pool
}

// New connects to the database. The schema is owned by the hosted project,
// so nothing is migrated here.
func New(ctx context.Context, databaseURL string) (*Profiles, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Profiles{pool: pool}, nil
}

// Close releases database resources.
func (p *Profiles) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Profiles) GetProfileByID(ctx context.Context, id model.UserID) (*model.Profile, error) {
	row := p.pool.QueryRow(ctx, selectProfile+` WHERE id::text = $1`, string(id))
	return scanProfile(row)
}

func (p *Profiles) FindProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	row := p.pool.QueryRow(ctx, selectProfile+` WHERE lower(username) = lower($1) LIMIT 1`, username)
	return scanProfile(row)
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var profile model.Profile
	if err := row.Scan(&profile.Username, &profile.FullName, &profile.AvatarURL, &profile.Rating); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &profile, nil
}
