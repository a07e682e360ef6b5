// Package version holds the linesearch build identity.
package version

import "fmt"

// Overridden at build time:
// go build -ldflags "-X linesearch/internal/version.Version=1.2.0 -X linesearch/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "1.0.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the version with a short commit suffix when one is known.
func Info() string {
	if Commit == "unknown" || len(Commit) <= 7 {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit[:7])
}

// Full returns the multi-line form printed by `linesearch version`.
func Full() string {
	return fmt.Sprintf("linesearch %s\ncommit: %s\nbuilt: %s", Version, Commit, BuildDate)
}
