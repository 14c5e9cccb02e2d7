// Package main provides the watch command, the live job monitor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stashq/cli/internal/auth"
	"github.com/stashq/cli/internal/config"
	"github.com/stashq/cli/internal/tui"
	"github.com/stashq/cli/internal/ui"
	"github.com/stashq/cli/internal/watch"
)

// watchCmd runs the live job monitor.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor your archive jobs live",
	Long: `Follow the job-event stream and show every job as it moves through
the pipeline.

WHAT IT DOES:
  - Connects to the server's event stream and reconnects on failure
  - Keeps a live view of your jobs, reconciled against authoritative fetches
  - Notifies once per permanently failed job
  - Hot-reloads credentials when ~/.stashq/credentials.json changes

In an interactive terminal this opens a full-screen monitor. With --quiet
or piped output it prints one line per event instead.

EXAMPLES:
  stashq watch              # Full-screen live monitor
  stashq watch --quiet      # Line-per-event output for logs and scripts
  stashq watch --dev        # Watch a local development server`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	devMode, _ := cmd.Flags().GetBool("dev")
	quiet, _ := cmd.Flags().GetBool("quiet")

	mgr := auth.NewManager()
	creds, err := mgr.GetCredentials()
	if err != nil {
		ui.PrintError("Failed to read credentials: %v", err)
		return err
	}

	apiKey := ""
	principal := ""
	if creds != nil {
		apiKey = creds.APIKey
		principal = creds.UserID
	}

	settings, err := config.LoadSettingsOrDefault()
	if err != nil {
		ui.PrintError("Failed to load settings: %v", err)
		return err
	}

	w := watch.New(watch.Options{
		BaseURL:         config.GetAPIURL(devMode),
		APIKey:          apiKey,
		Principal:       principal,
		CredentialsPath: mgr.CredentialsPath(),
		Settings:        settings,
	})

	switch w.Ready() {
	case watch.ErrConfigMissing:
		ui.PrintWarning("Not authenticated; waiting for credentials")
		ui.PrintInfo("Run 'stashq auth login' in another terminal to begin streaming")
	case watch.ErrUnhealthy:
		ui.PrintWarning("Recent sessions saw repeated failures; run 'stashq doctor' for details")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Start(ctx)
	defer w.Stop()

	if tui.ShouldRunTUI(quiet) {
		return tui.RunWatch(w, version)
	}
	return runWatchHeadless(ctx, w)
}

// runWatchHeadless prints one line per facade event until interrupted. Used
// for piped output, CI, and --quiet.
func runWatchHeadless(ctx context.Context, w *watch.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Events():
			switch ev.Kind {
			case watch.EventStateChanged:
				fmt.Printf("connection %s\n", ev.State)
			case watch.EventJobsChanged:
				for _, j := range w.Jobs() {
					fmt.Printf("job %s %s progress=%.2f\n", j.ID, j.Status, j.Progress)
				}
			case watch.EventNotification:
				if ev.Notification != nil {
					fmt.Printf("failed %s: %s\n", ev.Notification.JobID, ev.Notification.Body)
				}
			case watch.EventHealthChanged:
				fmt.Printf("health %s\n", ev.Verdict)
			case watch.EventUnknownFrame:
				fmt.Printf("unknown event %q\n", ev.FrameEvent)
			}
		}
	}
}
