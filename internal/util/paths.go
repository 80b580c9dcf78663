// Package util holds small helpers shared by config and the CLI.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ to the user home directory and cleans
// the result. Empty input returns empty output.
//
// Examples:
//   - "~" -> "/home/user"
//   - "~/.council/agents.yaml" -> "/home/user/.council/agents.yaml"
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}

	return filepath.Clean(path), nil
}

// ResolvePath expands path and anchors it at base when it is still
// relative afterwards. Empty paths stay empty.
func ResolvePath(base, path string) (string, error) {
	expanded, err := ExpandPath(path)
	if err != nil || expanded == "" {
		return expanded, err
	}
	if filepath.IsAbs(expanded) || base == "" {
		return expanded, nil
	}
	return filepath.Join(base, expanded), nil
}
