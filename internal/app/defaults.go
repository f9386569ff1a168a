package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FIELDSYNC_CONFIG_PATH: config file location (default: ~/.config/fieldsync.toml)
//   - FIELDSYNC_HOME: base directory for fieldsync data (default: ~/.local/share/fieldsync)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking FIELDSYNC_CONFIG_PATH
// env var first, then falling back to the default ~/.config/fieldsync.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("FIELDSYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "fieldsync.toml"), nil
}

// getBaseDir returns the base directory for fieldsync data, checking
// FIELDSYNC_HOME env var first, then falling back to the XDG default
// ~/.local/share/fieldsync.
func getBaseDir() (string, error) {
	if path := os.Getenv("FIELDSYNC_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "fieldsync"), nil
}
