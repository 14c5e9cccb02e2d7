// Package main provides auth commands for the StashQ CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stashq/cli/internal/api"
	"github.com/stashq/cli/internal/auth"
	"github.com/stashq/cli/internal/config"
	"github.com/stashq/cli/internal/ui"
)

// authCmd is the parent command for authentication operations.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long: `Manage authentication with StashQ.

COMMANDS:
  login   - Authenticate with StashQ using your API key
  logout  - Remove stored credentials
  status  - Show current authentication status

CREDENTIALS:
  Credentials are stored in ~/.stashq/credentials.json
  Get your API key from https://app.stashq.io/settings/api-keys`,
}

var authLoginAPIKey string

// authLoginCmd handles user authentication.
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with StashQ",
	Long: `Authenticate with StashQ using your API key.

PREREQUISITES:
  - Get your API key from https://app.stashq.io/settings/api-keys

WHAT IT DOES:
  1. Prompts for your API key (or reads --api-key)
  2. Validates the key against the StashQ API
  3. Stores credentials in ~/.stashq/credentials.json

EXAMPLES:
  stashq auth login                 # Interactive login
  stashq auth login --api-key KEY   # Non-interactive login
  stashq auth status                # Check if already authenticated`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ui.PrintBanner(version)

		// Check if already authenticated
		mgr := auth.NewManager()
		creds, err := mgr.GetCredentials()
		if err == nil && creds != nil && creds.APIKey != "" && authLoginAPIKey == "" {
			displayName := creds.Email
			if displayName == "" {
				displayName = creds.UserID
			}
			ui.PrintWarning("Already authenticated as %s", displayName)
			ui.PrintInfo("Run 'stashq auth logout' first to re-authenticate")
			return nil
		}

		apiKey := authLoginAPIKey
		if apiKey == "" {
			ui.PrintInfo("Authenticate with StashQ")
			ui.PrintLink("Get your API key", "https://app.stashq.io/settings/api-keys")
			ui.Println()

			// Visible input since users typically paste API keys
			apiKey, err = ui.Prompt("Enter your API key:")
			if err != nil {
				return err
			}
		}

		if apiKey == "" {
			ui.PrintError("API key cannot be empty")
			return fmt.Errorf("API key cannot be empty")
		}

		ui.PrintInfo("Validating API key...")

		devMode, _ := cmd.Flags().GetBool("dev")
		if devMode {
			ui.PrintInfo("Using local development server")
		}

		client := api.NewClientWithBaseURL(apiKey, config.GetAPIURL(devMode))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		userInfo, err := client.ValidateAPIKey(ctx)
		if err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
				ui.PrintError("Invalid API key")
				ui.PrintLink("Get your API key", "https://app.stashq.io/settings/api-keys")
				return fmt.Errorf("invalid API key")
			}
			ui.PrintError("Failed to validate API key: %v", err)
			return err
		}

		creds = &auth.Credentials{
			APIKey: apiKey,
			Email:  userInfo.Email,
			UserID: userInfo.UserID,
		}

		if err := mgr.SaveCredentials(creds); err != nil {
			ui.PrintError("Failed to save credentials: %v", err)
			return err
		}

		displayName := creds.Email
		if displayName == "" {
			displayName = creds.UserID
		}
		ui.PrintSuccess("Authenticated as %s", displayName)
		ui.PrintDim("Credentials stored in %s", mgr.CredentialsPath())
		ui.Println()
		ui.PrintBox("Next steps",
			"stashq watch     Monitor your archive jobs live\n"+
				"stashq job list  Show your current jobs\n"+
				"stashq doctor    Verify your setup")
		return nil
	},
}

var authLogoutYes bool

// authLogoutCmd removes stored credentials.
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := auth.NewManager()

		creds, err := mgr.GetCredentials()
		if err != nil || creds == nil || creds.APIKey == "" {
			ui.PrintInfo("Not currently authenticated")
			return nil
		}

		if !authLogoutYes {
			confirmed, err := ui.PromptConfirm("Remove stored credentials?", false)
			if err != nil {
				return err
			}
			if !confirmed {
				ui.PrintInfo("Logout cancelled")
				return nil
			}
		}

		if err := mgr.ClearCredentials(); err != nil {
			ui.PrintError("Failed to remove credentials: %v", err)
			return err
		}

		ui.PrintSuccess("Logged out")
		return nil
	},
}

// authStatusCmd shows the current authentication status.
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := auth.NewManager()
		creds, err := mgr.GetCredentials()
		if err != nil {
			ui.PrintError("Failed to read credentials: %v", err)
			return err
		}

		if creds == nil || creds.APIKey == "" {
			ui.PrintWarning("Not authenticated")
			ui.PrintInfo("Run 'stashq auth login' to authenticate")
			return nil
		}

		if creds.Email != "" {
			ui.PrintSuccess("Authenticated as %s", creds.Email)
		} else if creds.UserID != "" {
			ui.PrintSuccess("Authenticated (user: %s)", creds.UserID)
		} else {
			ui.PrintSuccess("Authenticated")
		}
		ui.PrintDim("Credentials: %s", mgr.CredentialsPath())
		return nil
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&authLoginAPIKey, "api-key", "", "API key (skips the interactive prompt)")
	authLogoutCmd.Flags().BoolVarP(&authLogoutYes, "yes", "y", false, "Skip the confirmation prompt")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}
