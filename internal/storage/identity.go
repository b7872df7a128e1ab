package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcoot/arena-auth/internal/model"
)

// IdentityKey is the fixed key the signed-in identity is cached under
const IdentityKey = "user"

// IdentityCache persists the signed-in identity between runs
type IdentityCache struct {
	store Store
}

// NewIdentityCache creates a cache on top of store
func NewIdentityCache(store Store) *IdentityCache {
	return &IdentityCache{store: store}
}

// Load returns the cached identity, or nil when nothing usable is cached.
// An entry that fails to decode or breaks the identity invariants is
// reported as an error so the caller can discard it.
func (c *IdentityCache) Load(ctx context.Context) (*model.Identity, error) {
	var identity model.Identity
	err := GetJSON(ctx, c.store, IdentityKey, &identity)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cached identity: %w", err)
	}
	if !identity.Valid() {
		return nil, fmt.Errorf("load cached identity: invalid entry for %q", identity.ID)
	}
	return &identity, nil
}

// Save writes the identity
func (c *IdentityCache) Save(ctx context.Context, identity *model.Identity) error {
	if err := SetJSON(ctx, c.store, IdentityKey, identity); err != nil {
		return fmt.Errorf("save cached identity: %w", err)
	}
	return nil
}

// Clear removes the cached identity
func (c *IdentityCache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, IdentityKey); err != nil {
		return fmt.Errorf("clear cached identity: %w", err)
	}
	return nil
}
