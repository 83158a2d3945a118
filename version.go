package sight

import _ "embed"

// Version is the release of the module, trailing newline included.
//
//go:embed VERSION
var Version string
