// Package config provides URL and settings management for the StashQ CLI.
//
// This package handles dynamic URL resolution for production and development
// environments, reading port configuration from .env files when in dev mode,
// and project-level settings from stashq.yaml.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	// ProdAPIURL is the production API URL.
	ProdAPIURL = "https://api.stashq.io"

	// EventsPath is the path of the job-event stream endpoint, relative
	// to the API base URL.
	EventsPath = "/events/stream"

	// DefaultAPIPort is the fallback port if server/.env is not found.
	DefaultAPIPort = "8000"

	// portCheckTimeout is the timeout for checking if a port is open.
	portCheckTimeout = 100 * time.Millisecond
)

// commonAPIPorts are the ports to try when auto-detecting a local server.
// Order matters - most common ports first.
var commonAPIPorts = []string{"8000", "8001", "8080", "3000"}

// findRepoRoot searches upward from the current directory to find the
// StashQ server checkout. The root is identified by having a server/
// directory.
//
// Returns:
//   - string: The path to the repo root, or empty string if not found
func findRepoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "server")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// readPortFromEnv reads the PORT value from an .env file.
//
// Parameters:
//   - path: The path to the .env file
//
// Returns:
//   - string: The port value, or empty string if not found
func readPortFromEnv(path string) string {
	env, err := godotenv.Read(path)
	if err != nil {
		return ""
	}
	return env["PORT"]
}

// GetAPIPort reads the PORT from server/.env.
// Falls back to DefaultAPIPort if the file is not found.
//
// Returns:
//   - string: The API port number
func GetAPIPort() string {
	// First check environment variable override
	if port := os.Getenv("STASHQ_API_PORT"); port != "" {
		return port
	}

	root := findRepoRoot()
	if root == "" {
		return DefaultAPIPort
	}
	envPath := filepath.Join(root, "server", ".env")
	if port := readPortFromEnv(envPath); port != "" {
		return port
	}
	return DefaultAPIPort
}

// GetAPIPortWithAutoDetect reads the PORT from server/.env, and if no
// server is running on that port, tries common alternative ports.
//
// Returns:
//   - string: The API port number (either from config or auto-detected)
func GetAPIPortWithAutoDetect() string {
	// First check environment variable override
	if port := os.Getenv("STASHQ_API_PORT"); port != "" {
		return port
	}

	configuredPort := GetAPIPort()

	// Check if the configured port is actually listening
	if isPortOpen("localhost", configuredPort) {
		return configuredPort
	}

	// Try common ports if configured port isn't responding
	for _, port := range commonAPIPorts {
		if port != configuredPort && isPortOpen("localhost", port) {
			return port
		}
	}

	// Fall back to configured port even if not responding
	// (let the actual request fail with a clear error)
	return configuredPort
}

// isPortOpen checks if a TCP port is open on the given host.
//
// Parameters:
//   - host: The hostname to check
//   - port: The port number to check
//
// Returns:
//   - bool: True if the port is open and accepting connections
func isPortOpen(host, port string) bool {
	address := net.JoinHostPort(host, port)
	conn, err := net.DialTimeout("tcp", address, portCheckTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// GetAPIURL returns the API base URL based on the dev mode setting.
// In dev mode, it uses auto-detection to find a running local server.
//
// Parameters:
//   - devMode: If true, returns localhost URL with auto-detected port
//
// Returns:
//   - string: The API base URL
func GetAPIURL(devMode bool) string {
	if devMode {
		return fmt.Sprintf("http://localhost:%s", GetAPIPortWithAutoDetect())
	}
	if url := os.Getenv("STASHQ_API_URL"); url != "" {
		return url
	}
	return ProdAPIURL
}

// GetEventsURL returns the job-event stream URL for the given API base URL.
//
// Parameters:
//   - baseURL: The API base URL
//
// Returns:
//   - string: The stream endpoint URL
func GetEventsURL(baseURL string) string {
	return baseURL + EventsPath
}
