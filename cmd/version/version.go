package version

import "fmt"

// Overridden at build time via ldflags; defaults show up when running
// straight from source.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// PrintFullVersion prints detailed version information.
func PrintFullVersion() {
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Git Commit: %s\n", Commit)
	fmt.Printf("Build Time: %s\n", BuildTime)
}
