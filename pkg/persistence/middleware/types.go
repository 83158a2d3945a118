package middleware

import "github.com/aretw0/sight/pkg/ports"

// Middleware wraps a PreferenceStore to add behavior.
type Middleware func(ports.PreferenceStore) ports.PreferenceStore
