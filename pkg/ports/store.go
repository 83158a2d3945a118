package ports

import (
	"context"
	"errors"
)

// ErrPreferenceNotFound is returned by Load when the key holds no value.
var ErrPreferenceNotFound = errors.New("preference not found")

// PreferenceStore persists the values of preference objects across runs.
// Values are plain data (strings, numbers, booleans, maps and slices of them); stores
// backed by JSON return numbers as float64.
type PreferenceStore interface {
	// Save persists the value under key, replacing any previous one.
	Save(ctx context.Context, key string, value any) error

	// Load retrieves the value of key.
	// Returns ErrPreferenceNotFound if the key does not exist.
	Load(ctx context.Context, key string) (any, error)

	// Delete removes the value of key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the stored keys.
	List(ctx context.Context) ([]string, error)
}
