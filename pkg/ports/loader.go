package ports

import "errors"

// ErrConfigNotFound is returned by a ConfigLoader when no document matches the id.
var ErrConfigNotFound = errors.New("config not found")

// ConfigLoader defines how the launcher retrieves configuration documents.
type ConfigLoader interface {
	// GetConfig retrieves the raw document of a configuration by id.
	// It returns ErrConfigNotFound (possibly wrapped) when the id is unknown.
	GetConfig(id string) ([]byte, error)

	// ListConfigs returns the ids of every available configuration, sorted.
	ListConfigs() ([]string, error)
}
