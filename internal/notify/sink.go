package notify

import (
	"context"

	"github.com/stashq/cli/internal/ui"
)

// TerminalSink surfaces notifications as styled terminal lines. It is the
// CLI's platform binding; the browser extension and mobile companion carry
// their own.
type TerminalSink struct{}

// NewTerminalSink creates a terminal notification sink.
//
// Returns:
//   - *TerminalSink: A sink that prints via the ui package
func NewTerminalSink() *TerminalSink {
	return &TerminalSink{}
}

// Notify prints the notification.
//
// Parameters:
//   - ctx: Unused; part of the Sink contract
//   - n: The notification to surface
//
// Returns:
//   - error: Always nil; terminal printing does not fail usefully
func (s *TerminalSink) Notify(_ context.Context, n Notification) error {
	ui.PrintError("%s", n.Title)
	ui.PrintDim("  %s (job %s)", n.Body, n.JobID)
	return nil
}
