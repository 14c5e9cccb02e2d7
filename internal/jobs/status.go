// Package jobs provides job lifecycle types and the update router for the
// StashQ real-time monitor.
//
// This file centralizes status-related logic so the stream, router, notifier,
// and UI layers agree on which states are terminal. It mirrors the backend
// JobStatus enum.
package jobs

import "strings"

// Status represents the lifecycle state of an archiving job.
// This mirrors the backend JobStatus enum.
type Status string

const (
	// StatusQueued indicates the job is created and waiting for a worker.
	StatusQueued Status = "queued"

	// StatusDownloading indicates the download worker is fetching content.
	StatusDownloading Status = "downloading"

	// StatusTagging indicates the tag worker is annotating the content.
	StatusTagging Status = "tagging"

	// StatusUploading indicates the upload worker is pushing to storage.
	StatusUploading Status = "uploading"

	// StatusPaused indicates the job was paused by the user.
	StatusPaused Status = "paused"

	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "completed"

	// StatusMerged indicates the job was folded into an existing archive entry.
	StatusMerged Status = "merged"

	// StatusFailed indicates the job ended with an error.
	StatusFailed Status = "failed"
)

// terminalStatuses contains all statuses with no further transitions.
var terminalStatuses = map[string]bool{
	string(StatusCompleted): true,
	string(StatusMerged):    true,
	string(StatusFailed):    true,
}

// activeStatuses contains all statuses that indicate the job is in progress.
var activeStatuses = map[string]bool{
	string(StatusQueued):      true,
	string(StatusDownloading): true,
	string(StatusTagging):     true,
	string(StatusUploading):   true,
}

// IsTerminal checks if a status string indicates the job has ended.
//
// Parameters:
//   - status: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is terminal (completed, merged, failed)
func IsTerminal(status string) bool {
	return terminalStatuses[strings.ToLower(status)]
}

// IsActive checks if a status string indicates the job is in progress.
//
// Parameters:
//   - status: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is active (queued, downloading, tagging, uploading)
func IsActive(status string) bool {
	return activeStatuses[strings.ToLower(status)]
}

// IsFailed checks if a status string indicates the job failed terminally.
//
// Parameters:
//   - status: The status string to check (case-insensitive)
//
// Returns:
//   - bool: True if the status is failed
func IsFailed(status string) bool {
	return strings.EqualFold(status, string(StatusFailed))
}

// StatusIcon returns the appropriate icon for a status.
//
// Icons:
//   - queued: ⏳ (hourglass)
//   - downloading/tagging/uploading: ▶ (play)
//   - paused: ⏸ (pause)
//   - completed/merged: ✓ (checkmark)
//   - failed: ✗ (x mark)
//   - unknown: ● (bullet)
//
// Parameters:
//   - status: The status string
//
// Returns:
//   - string: The icon character for the status
func StatusIcon(status string) string {
	switch strings.ToLower(status) {
	case string(StatusQueued):
		return "⏳"
	case string(StatusDownloading), string(StatusTagging), string(StatusUploading):
		return "▶"
	case string(StatusPaused):
		return "⏸"
	case string(StatusCompleted), string(StatusMerged):
		return "✓"
	case string(StatusFailed):
		return "✗"
	default:
		return "●"
	}
}

// StatusCategory returns the category of a status for styling purposes.
//
// Categories:
//   - "dim": queued, unknown
//   - "info": downloading, tagging, uploading
//   - "warning": paused
//   - "success": completed, merged
//   - "error": failed
//
// Parameters:
//   - status: The status string
//
// Returns:
//   - string: The category name for styling
func StatusCategory(status string) string {
	switch strings.ToLower(status) {
	case string(StatusQueued):
		return "dim"
	case string(StatusDownloading), string(StatusTagging), string(StatusUploading):
		return "info"
	case string(StatusPaused):
		return "warning"
	case string(StatusCompleted), string(StatusMerged):
		return "success"
	case string(StatusFailed):
		return "error"
	default:
		return "dim"
	}
}
