// Package buildinfo carries the version stamped into the fluxo binary.
package buildinfo

// Set via -ldflags "-X github.com/fluxo-dev/fluxo/internal/buildinfo.Version=..." at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
