// Package main provides the doctor and ping commands for CLI diagnostics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stashq/cli/internal/api"
	"github.com/stashq/cli/internal/auth"
	"github.com/stashq/cli/internal/config"
	"github.com/stashq/cli/internal/health"
	"github.com/stashq/cli/internal/ui"
)

// DoctorCheck represents a single diagnostic check result.
type DoctorCheck struct {
	// Name is the check name (e.g., "Version", "Authentication").
	Name string `json:"name"`

	// Status is the check status: "ok", "warning", "error".
	Status string `json:"status"`

	// Message is the human-readable result message.
	Message string `json:"message"`

	// Details contains additional information (optional).
	Details string `json:"details,omitempty"`
}

// DoctorResult contains all diagnostic check results.
type DoctorResult struct {
	// Checks contains all individual check results.
	Checks []DoctorCheck `json:"checks"`

	// Issues is the count of checks with status "error" or "warning".
	Issues int `json:"issues"`

	// Healthy is true if no errors were found.
	Healthy bool `json:"healthy"`
}

var doctorOutputJSON bool

// doctorCmd runs diagnostic checks on the CLI installation.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check CLI health and connectivity",
	Long: `Run diagnostic checks on the StashQ CLI installation.

CHECKS PERFORMED:
  - CLI version
  - Authentication status (valid API key?)
  - API connectivity (can reach api.stashq.io?)
  - Stream health (recent failure window from past sessions)
  - Project settings (stashq.yaml parses?)

OUTPUT:
  Human-readable by default, JSON with --json flag.

EXAMPLES:
  stashq doctor              # Run all checks
  stashq doctor --json       # Output as JSON for scripting`,
	RunE: runDoctor,
}

// pingCmd tests API connectivity.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test API connectivity",
	Long: `Test connectivity to the StashQ API.

This command performs the same liveness check the periodic health probe
uses and reports the response time.

EXAMPLES:
  stashq ping           # Test production API
  stashq ping --dev     # Test local development API`,
	RunE: runPing,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOutputJSON, "json", false, "Output results as JSON")
}

// runDoctor executes all diagnostic checks.
func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput := doctorOutputJSON
	if globalJSON, _ := cmd.Root().PersistentFlags().GetBool("json"); globalJSON {
		jsonOutput = true
	}

	result := DoctorResult{
		Checks:  make([]DoctorCheck, 0),
		Healthy: true,
	}

	devMode, _ := cmd.Flags().GetBool("dev")

	if !jsonOutput {
		ui.PrintBanner(version)
		ui.PrintInfo("Running diagnostic checks...")
		ui.Println()
	}

	record := func(check DoctorCheck, fatal bool) {
		result.Checks = append(result.Checks, check)
		if check.Status == "error" {
			result.Issues++
			if fatal {
				result.Healthy = false
			}
		} else if check.Status == "warning" {
			result.Issues++
		}
	}

	record(checkVersion(), true)

	authCheck, apiKey := checkAuthentication()
	record(authCheck, true)

	record(checkAPIConnectivity(cmd.Context(), devMode, apiKey), true)
	record(checkStreamHealth(devMode, apiKey), false)
	record(checkSettings(), false)

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		printDoctorResults(result)
	}

	if !result.Healthy {
		return fmt.Errorf("health check failed")
	}
	return nil
}

// checkVersion reports the CLI version.
func checkVersion() DoctorCheck {
	check := DoctorCheck{
		Name:   "Version",
		Status: "ok",
	}

	if version == "dev" {
		check.Status = "warning"
		check.Message = "Development build"
		check.Details = "Running a development build, not a released version"
	} else {
		check.Message = fmt.Sprintf("v%s", version)
		check.Details = fmt.Sprintf("Commit: %s, Built: %s", commit, date)
	}

	return check
}

// checkAuthentication checks if the user is authenticated.
func checkAuthentication() (DoctorCheck, string) {
	check := DoctorCheck{
		Name:   "Authentication",
		Status: "ok",
	}

	mgr := auth.NewManager()
	creds, err := mgr.GetCredentials()

	if err != nil || creds == nil || creds.APIKey == "" {
		check.Status = "error"
		check.Message = "Not authenticated"
		check.Details = "Run 'stashq auth login' to authenticate"
		return check, ""
	}

	if creds.Email != "" {
		check.Message = fmt.Sprintf("Authenticated as %s", creds.Email)
	} else if creds.UserID != "" {
		check.Message = fmt.Sprintf("Authenticated (user: %s)", creds.UserID)
	} else {
		check.Message = "Authenticated"
	}

	return check, creds.APIKey
}

// checkAPIConnectivity tests connectivity to the StashQ API.
func checkAPIConnectivity(ctx context.Context, devMode bool, apiKey string) DoctorCheck {
	check := DoctorCheck{
		Name:   "API Connection",
		Status: "ok",
	}

	baseURL := config.GetAPIURL(devMode)
	client := api.NewClientWithBaseURL(apiKey, baseURL)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Health(ctx)
	latency := time.Since(start)

	if err != nil {
		check.Status = "error"
		check.Message = "Connection failed"
		check.Details = fmt.Sprintf("Could not reach %s: %v", baseURL, err)
		return check
	}

	check.Message = fmt.Sprintf("Connected (latency: %dms)", latency.Milliseconds())
	if devMode {
		check.Details = fmt.Sprintf("Using development server: %s", baseURL)
	}
	return check
}

// checkStreamHealth evaluates the offline health predicate over the failure
// samples persisted by past watch sessions.
func checkStreamHealth(devMode bool, apiKey string) DoctorCheck {
	check := DoctorCheck{
		Name:   "Stream Health",
		Status: "ok",
	}

	monitor := health.NewMonitor(health.Options{
		Endpoint:   config.GetAPIURL(devMode),
		Credential: apiKey,
		StatePath:  health.DefaultStatePath(),
	})

	verdict := monitor.ValidateBasicHealth()
	switch verdict {
	case health.Healthy:
		check.Message = "No recent stream failures"
	case health.TooManyRecentFailures:
		check.Status = "warning"
		check.Message = "Repeated recent failures"
		check.Details = fmt.Sprintf("%d failures in the last %s", monitor.RecentFailures(), health.DefaultWindow)
	default:
		check.Status = "warning"
		check.Message = verdict.String()
	}
	return check
}

// checkSettings verifies the project settings file parses.
func checkSettings() DoctorCheck {
	check := DoctorCheck{
		Name:   "Settings",
		Status: "ok",
	}

	path := config.FindSettingsPath()
	if path == "" {
		check.Message = "Using defaults"
		check.Details = "No stashq.yaml found (optional)"
		return check
	}

	if _, err := config.LoadSettings(path); err != nil {
		check.Status = "error"
		check.Message = "Invalid settings file"
		check.Details = err.Error()
		return check
	}

	check.Message = fmt.Sprintf("Loaded %s", path)
	return check
}

// printDoctorResults renders check results for humans.
func printDoctorResults(result DoctorResult) {
	for _, check := range result.Checks {
		var icon string
		switch check.Status {
		case "ok":
			icon = ui.SuccessStyle.Render("✓")
		case "warning":
			icon = ui.WarningStyle.Render("⚠")
		case "error":
			icon = ui.ErrorStyle.Render("✗")
		}

		fmt.Printf("  %s %-16s %s\n", icon, check.Name+":", check.Message)
		if check.Details != "" {
			fmt.Printf("    %s\n", ui.DimStyle.Render(check.Details))
		}
	}

	ui.Println()

	if result.Issues > 0 {
		ui.PrintWarning("%d issue(s) found", result.Issues)
	} else {
		ui.PrintSuccess("All checks passed")
	}
}

// runPing performs a single health round-trip.
func runPing(cmd *cobra.Command, args []string) error {
	devMode, _ := cmd.Flags().GetBool("dev")
	jsonOutput, _ := cmd.Root().PersistentFlags().GetBool("json")
	baseURL := config.GetAPIURL(devMode)

	if !jsonOutput {
		ui.PrintInfo("Pinging %s...", baseURL)
	}

	client := api.NewClientWithBaseURL("", baseURL)
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Health(ctx)
	latency := time.Since(start)

	if err != nil {
		if jsonOutput {
			data, _ := json.MarshalIndent(map[string]interface{}{
				"ok":    false,
				"error": err.Error(),
			}, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		ui.PrintError("Connection failed: %v", err)
		return err
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"ok":         true,
			"latency_ms": latency.Milliseconds(),
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	ui.PrintSuccess("Connected (latency: %dms)", latency.Milliseconds())
	return nil
}
