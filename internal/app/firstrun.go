package app

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	markerFileName = "first_run_completed"
	appName        = "compatspectre"
)

// GetAppConfigDir returns the path to the application's configuration directory.
func GetAppConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// IsFirstRun reports whether the CLI has never run for this user, recording
// the run so later calls return false. Errors count as "not first run".
func IsFirstRun() bool {
	appConfigDir, err := GetAppConfigDir()
	if err != nil {
		slog.Debug("failed to get app config directory", slog.String("error", err.Error()))
		return false
	}
	return markFirstRun(appConfigDir)
}

func markFirstRun(dir string) bool {
	markerFilePath := filepath.Join(dir, markerFileName)

	_, err := os.Stat(markerFilePath)
	switch {
	case err == nil:
		slog.Debug("marker file exists, not first run", slog.String("path", markerFilePath))
		return false
	case !errors.Is(err, os.ErrNotExist):
		slog.Debug("failed to check first run marker file", slog.String("path", markerFilePath), slog.String("error", err.Error()))
		return false
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Debug("failed to create app config directory", slog.String("path", dir), slog.String("error", err.Error()))
		return false
	}
	if err := os.WriteFile(markerFilePath, nil, 0644); err != nil {
		slog.Debug("failed to create first run marker file", slog.String("path", markerFilePath), slog.String("error", err.Error()))
		return false
	}

	slog.Debug("first run detected and marker created", slog.String("path", markerFilePath))
	return true
}
