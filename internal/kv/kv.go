// Package kv defines the namespaced key/value store that backs sessions and
// workspaces, along with in-memory and file implementations.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a key/value store holding JSON-encoded values.
// Writes replace the whole value stored under a key.
type Store interface {
	// Get returns the raw value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// GetJSON decodes the value under key into v.
// It reports false without touching v when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
