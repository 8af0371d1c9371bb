// Package version carries build metadata stamped in with -ldflags -X.
package version

var (
	// GitVersion is the release tag atlas-fetch was built from.
	GitVersion = "unknown"
	// GitCommit is the commit atlas-fetch was built from.
	GitCommit = "unknown"
)
