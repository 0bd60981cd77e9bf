// Package version holds build metadata injected at link time via -ldflags.
package version

var (
	// Version is the semantic version of the build, e.g. "0.1.0".
	Version = "dev"

	// Commit is the git commit SHA the binary was built from.
	Commit = "unknown"
)
