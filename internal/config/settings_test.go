package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, SettingsFileName)

	content := `watch:
  statuses: [queued, downloading]
  cache_size: 50
notifications:
  disabled: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing settings file: %v", err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if len(s.Watch.Statuses) != 2 || s.Watch.Statuses[0] != "queued" {
		t.Errorf("Watch.Statuses = %v, want [queued downloading]", s.Watch.Statuses)
	}
	if s.Watch.CacheSize != 50 {
		t.Errorf("Watch.CacheSize = %d, want 50", s.Watch.CacheSize)
	}
	if !s.Notifications.Disabled {
		t.Error("Notifications.Disabled = false, want true")
	}
}

func TestLoadSettingsMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, SettingsFileName)
	if err := os.WriteFile(path, []byte("watch: [not a map"), 0644); err != nil {
		t.Fatalf("writing settings file: %v", err)
	}

	if _, err := LoadSettings(path); err == nil {
		t.Error("LoadSettings() error = nil, want parse error")
	}
}

func TestWriteSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)

	want := &Settings{
		Watch:         WatchSettings{Statuses: []string{"failed"}, CacheSize: 10},
		Notifications: NotificationSettings{AllJobs: true},
	}
	if err := WriteSettings(path, want); err != nil {
		t.Fatalf("WriteSettings() error = %v", err)
	}

	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if got.Watch.CacheSize != 10 || len(got.Watch.Statuses) != 1 || got.Watch.Statuses[0] != "failed" {
		t.Errorf("Watch = %+v, want %+v", got.Watch, want.Watch)
	}
	if !got.Notifications.AllJobs {
		t.Error("Notifications.AllJobs = false, want true")
	}
}

func TestReadPortFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("HOST=0.0.0.0\nPORT=9001\n"), 0644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}

	if got := readPortFromEnv(path); got != "9001" {
		t.Errorf("readPortFromEnv() = %q, want %q", got, "9001")
	}
	if got := readPortFromEnv(filepath.Join(dir, "missing.env")); got != "" {
		t.Errorf("readPortFromEnv(missing) = %q, want empty", got)
	}
}

func TestGetAPIURL(t *testing.T) {
	t.Setenv("STASHQ_API_URL", "")
	if got := GetAPIURL(false); got != ProdAPIURL {
		t.Errorf("GetAPIURL(false) = %q, want %q", got, ProdAPIURL)
	}

	t.Setenv("STASHQ_API_URL", "https://staging.stashq.io")
	if got := GetAPIURL(false); got != "https://staging.stashq.io" {
		t.Errorf("GetAPIURL(false) with override = %q", got)
	}
}

func TestGetEventsURL(t *testing.T) {
	got := GetEventsURL("https://api.stashq.io")
	if got != "https://api.stashq.io/events/stream" {
		t.Errorf("GetEventsURL() = %q", got)
	}
}
