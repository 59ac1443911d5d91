package version

import "fmt"

// Version/Commit are injected at build time via -ldflags; defaults are dev placeholders.
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full returns the version string printed by the CLI.
func Full() string {
	return fmt.Sprintf("npmcache %s (%s)", Version, Commit)
}
