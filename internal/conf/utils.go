package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order. The first entry is where a default config is created
// on first run.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	if runtime.GOOS == "windows" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("error fetching executable path: %w", err)
		}
		paths = append(paths, filepath.Dir(exePath))

		if appData := os.Getenv("APPDATA"); appData != "" {
			paths = append(paths, filepath.Join(appData, "tonewire"))
		}
		return paths, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}
	paths = append(paths,
		filepath.Join(homeDir, ".config", "tonewire"),
		"/etc/tonewire",
	)
	return paths, nil
}

// FindConfigFile returns the path of the first existing config.yaml among
// the default locations, or an empty string when none exists yet.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, dir := range configPaths {
		candidate := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}
