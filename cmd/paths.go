package cmd

import (
	"os"
	"path/filepath"
)

// stateDir returns the per-user state directory, ~/.convoy by default.
// CONVOY_STATE_DIR overrides it.
func stateDir() string {
	if dir := os.Getenv("CONVOY_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".convoy"
	}
	return filepath.Join(home, ".convoy")
}

func cacheDir() string {
	return filepath.Join(stateDir(), "cache")
}

func resumeDir() string {
	return filepath.Join(stateDir(), "resume")
}
