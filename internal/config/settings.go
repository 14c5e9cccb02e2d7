package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SettingsFileName is the name of the per-project settings file.
const SettingsFileName = "stashq.yaml"

// Settings represents the stashq.yaml settings file.
type Settings struct {
	// Watch contains live-view settings.
	Watch WatchSettings `yaml:"watch,omitempty"`

	// Notifications contains failure notification settings.
	Notifications NotificationSettings `yaml:"notifications,omitempty"`
}

// WatchSettings contains settings for the live job view.
type WatchSettings struct {
	// Statuses restricts the view to jobs in these statuses.
	// Empty means all statuses are shown.
	Statuses []string `yaml:"statuses,omitempty"`

	// CacheSize is the maximum number of jobs kept in the view.
	// Zero means the built-in default.
	CacheSize int `yaml:"cache_size,omitempty"`
}

// NotificationSettings contains settings for failure notifications.
type NotificationSettings struct {
	// Disabled turns off failure notifications entirely.
	Disabled bool `yaml:"disabled,omitempty"`

	// AllJobs notifies on every visible failed job instead of only
	// the current user's jobs.
	AllJobs bool `yaml:"all_jobs,omitempty"`
}

// DefaultSettings returns the settings used when no stashq.yaml exists.
//
// Returns:
//   - *Settings: Settings with built-in defaults
func DefaultSettings() *Settings {
	return &Settings{}
}

// FindSettingsPath searches upward from the current directory for a
// stashq.yaml file.
//
// Returns:
//   - string: The path to the settings file, or empty string if not found
func FindSettingsPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, SettingsFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// LoadSettings loads settings from a file.
//
// Parameters:
//   - path: Path to the stashq.yaml file
//
// Returns:
//   - *Settings: The loaded settings
//   - error: Any error that occurred during loading
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	return &s, nil
}

// LoadSettingsOrDefault loads the nearest settings file, falling back to
// defaults when none exists. A malformed file is an error; a missing file
// is not.
//
// Returns:
//   - *Settings: The loaded or default settings
//   - error: Any error that occurred during loading
func LoadSettingsOrDefault() (*Settings, error) {
	path := FindSettingsPath()
	if path == "" {
		return DefaultSettings(), nil
	}
	return LoadSettings(path)
}

// WriteSettings writes settings to a file.
//
// Parameters:
//   - path: Path to write the stashq.yaml file
//   - s: The settings to write
//
// Returns:
//   - error: Any error that occurred during writing
func WriteSettings(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	// Add header comment
	header := "# StashQ CLI Configuration\n\n"
	content := header + string(data)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
