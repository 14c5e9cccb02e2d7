// Package main provides job inspection commands.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stashq/cli/internal/api"
	"github.com/stashq/cli/internal/auth"
	"github.com/stashq/cli/internal/config"
	"github.com/stashq/cli/internal/ui"
)

// jobCmd is the parent command for job operations.
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect archive jobs",
}

// jobGetCmd fetches one job's authoritative record.
var jobGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Fetch one job's full record",
	Long: `Fetch the authoritative record for a single job.

This is the same pull the live monitor performs when it reconciles a
status change: the full record, not the partial push snapshot.

EXAMPLES:
  stashq job get 7f3a...          # Human-readable output
  stashq job get 7f3a... --json   # Raw record for scripting`,
	Args: cobra.ExactArgs(1),
	RunE: runJobGet,
}

// jobListCmd lists the active view page.
var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs in the active view",
	RunE:  runJobList,
}

var jobListLimit int

func init() {
	jobListCmd.Flags().IntVar(&jobListLimit, "limit", 0, "Maximum jobs to list (default: server page size)")

	jobCmd.AddCommand(jobGetCmd)
	jobCmd.AddCommand(jobListCmd)
}

// newAuthedClient builds an API client from stored credentials.
func newAuthedClient(cmd *cobra.Command) (*api.Client, error) {
	devMode, _ := cmd.Flags().GetBool("dev")

	mgr := auth.NewManager()
	creds, err := mgr.GetCredentials()
	if err != nil {
		return nil, err
	}
	if creds == nil || creds.APIKey == "" {
		ui.PrintError("Not authenticated")
		ui.PrintInfo("Run 'stashq auth login' to authenticate")
		return nil, fmt.Errorf("not authenticated")
	}

	return api.NewClientWithBaseURL(creds.APIKey, config.GetAPIURL(devMode)), nil
}

func runJobGet(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Root().PersistentFlags().GetBool("json")

	client, err := newAuthedClient(cmd)
	if err != nil {
		return err
	}

	job, err := client.GetJob(cmd.Context(), args[0])
	if err != nil {
		if api.IsNotVisible(err) {
			ui.PrintError("Job not found or not visible to you")
			return err
		}
		ui.PrintError("Failed to fetch job: %v", err)
		return err
	}

	if jsonOutput {
		// Raw preserves fields this client does not model.
		var pretty json.RawMessage = job.Raw
		data, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	printJob(job)
	return nil
}

func runJobList(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Root().PersistentFlags().GetBool("json")

	client, err := newAuthedClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.ListJobs(cmd.Context(), jobListLimit, 0)
	if err != nil {
		ui.PrintError("Failed to list jobs: %v", err)
		return err
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(resp.Jobs) == 0 {
		ui.PrintInfo("No jobs in the active view")
		return nil
	}

	table := ui.NewTable("STATUS", "NAME", "URL", "PROGRESS", "ID")
	table.SetMaxWidth(1, 32)
	table.SetMaxWidth(2, 48)
	for _, j := range resp.Jobs {
		table.AddRow(
			ui.StyledStatus(j.Status),
			j.Name,
			j.URL,
			fmt.Sprintf("%.0f%%", j.Progress*100),
			j.ID,
		)
	}
	table.Render()
	return nil
}

// printJob renders one job record for humans.
func printJob(job *api.Job) {
	ui.PrintInfo("%s", job.Name)
	ui.Println()
	fmt.Printf("  Status:   %s\n", ui.StyledStatus(job.Status))
	fmt.Printf("  URL:      %s\n", job.URL)
	fmt.Printf("  Progress: %.0f%%\n", job.Progress*100)
	fmt.Printf("  Owner:    %s\n", job.Owner)
	fmt.Printf("  ID:       %s\n", job.ID)
	if job.ErrorMessage != "" {
		fmt.Printf("  Error:    %s\n", ui.ErrorStyle.Render(job.ErrorMessage))
	}
	if job.RetriesExhausted {
		ui.PrintWarning("Retries exhausted; this job will not be retried")
	}
	if job.CreatedAt != "" {
		ui.PrintDim("  Created:  %s", job.CreatedAt)
	}
	if job.UpdatedAt != "" {
		ui.PrintDim("  Updated:  %s", job.UpdatedAt)
	}
}
