// Package version exposes the neardup build metadata stamped in at link
// time; the server logs it on startup.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
