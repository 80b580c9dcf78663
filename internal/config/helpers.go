package config

import (
	"os"
	"path/filepath"
)

// EnvHome overrides the home directory.
const EnvHome = "COUNCIL_HOME"

// DefaultHomeDir returns $COUNCIL_HOME, ~/.council, or a temp-dir fallback
// when the user home cannot be determined.
func DefaultHomeDir() string {
	if home := os.Getenv(EnvHome); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".council")
	}
	return filepath.Join(userHome, ".council")
}

// DefaultConfigPath returns the default config file path for a given home directory
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}
