package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath returns the absolute per-user configuration path.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// ExpandPath resolves a leading "~" to the home directory and returns an
// absolute, cleaned path. Empty input is returned unchanged.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = home + strings.TrimPrefix(path, "~")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}
	return abs, nil
}
