package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value
var ErrNotFound = errors.New("key not found")

// Store is the client's persisted key/value state (the browser storage analogue)
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// GetJSON reads key and decodes it into v
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SetJSON encodes v and writes it under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data)
}
