// Package storage is the persistence adapter the tracking core writes through.
// The core only needs whole-document load and save by key; backends hold no
// domain logic.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Persisted document keys.
const (
	KeyTravelCountries  = "travelCountries"
	KeyPreviousLocation = "previousLocation"
	KeySubscription     = "subscription"
)

// Store persists opaque JSON documents by key.
type Store interface {
	// Load returns the stored document, or nil with a nil error when the key
	// has never been written.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the document stored under key.
	Save(ctx context.Context, key string, value []byte) error
}

// LoadJSON decodes the document under key into dst. found is false when the
// key is absent, leaving dst untouched.
func LoadJSON(ctx context.Context, s Store, key string, dst any) (found bool, err error) {
	raw, err := s.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
