// Package version carries build metadata stamped in via -ldflags.
package version

var (
	// Version is the release tag, or "dev" for unstamped builds.
	Version = "dev"
	// GitSHA is the git commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)
