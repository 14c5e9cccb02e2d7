// Package auth provides credential management for the StashQ CLI.
//
// This package handles storing and retrieving API credentials from
// the user's home directory (~/.stashq/credentials.json). The job-event
// subsystem only ever reads these fields; writing happens through the
// auth commands.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnvAPIKey is the environment variable that overrides stored credentials.
const EnvAPIKey = "STASHQ_API_KEY"

// Credentials represents stored authentication credentials.
type Credentials struct {
	// APIKey is the StashQ API key for authentication.
	APIKey string `json:"api_key"`

	// Email is the user's email address (optional, for display).
	Email string `json:"email,omitempty"`

	// UserID is the principal's user ID (optional). Job ownership checks
	// compare against this value.
	UserID string `json:"user_id,omitempty"`
}

// Manager handles credential storage and retrieval.
type Manager struct {
	// configDir is the directory where credentials are stored.
	configDir string
}

// NewManager creates a new credential manager.
//
// Returns:
//   - *Manager: A new manager instance using ~/.stashq as the config directory
func NewManager() *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Manager{
		configDir: filepath.Join(homeDir, ".stashq"),
	}
}

// NewManagerWithDir creates a new credential manager with a custom directory.
//
// Parameters:
//   - configDir: The directory to store credentials in
//
// Returns:
//   - *Manager: A new manager instance
func NewManagerWithDir(configDir string) *Manager {
	return &Manager{
		configDir: configDir,
	}
}

// CredentialsPath returns the path to the credentials file. The config
// watcher monitors this path for hot reload.
//
// Returns:
//   - string: The credentials file path
func (m *Manager) CredentialsPath() string {
	return filepath.Join(m.configDir, "credentials.json")
}

// GetCredentials retrieves stored credentials.
//
// First checks for the STASHQ_API_KEY environment variable, then falls back
// to the stored credentials file.
//
// Returns:
//   - *Credentials: The stored credentials, or nil if not found
//   - error: Any error that occurred during retrieval
func (m *Manager) GetCredentials() (*Credentials, error) {
	// Check environment variable first (for CI/CD)
	if apiKey := os.Getenv(EnvAPIKey); apiKey != "" {
		return &Credentials{APIKey: apiKey}, nil
	}

	data, err := os.ReadFile(m.CredentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return &creds, nil
}

// SaveCredentials stores credentials to disk.
//
// Parameters:
//   - creds: The credentials to store
//
// Returns:
//   - error: Any error that occurred during storage
func (m *Manager) SaveCredentials(creds *Credentials) error {
	// Ensure config directory exists
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(m.CredentialsPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	return nil
}

// ClearCredentials removes stored credentials.
//
// Returns:
//   - error: Any error that occurred during removal
func (m *Manager) ClearCredentials() error {
	err := os.Remove(m.CredentialsPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
