// Package version exposes the build identity the server logs at startup.
// The values are stamped with -ldflags during release builds; a plain
// go build keeps the dev defaults.
package version

//nolint:revive // Stamped via -ldflags, not assigned in code.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
