package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// EnvPrefix prefixes every environment override, e.g. PHOENIX_API_BASE_URL.
const EnvPrefix = "PHOENIX"

// EnvConfigDir overrides the configuration directory.
const EnvConfigDir = "PHOENIX_CONFIG_DIR"

// Dir returns the configuration directory: $PHOENIX_CONFIG_DIR, or ~/.phoenix.
func Dir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".phoenix"), nil
}

func configFile(dir string) string {
	return filepath.Join(dir, "config.yaml")
}

func defaultStorePath(dir, backend string) string {
	switch backend {
	case BackendBolt:
		return filepath.Join(dir, "credentials.db")
	default:
		return filepath.Join(dir, "credentials.yaml")
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
