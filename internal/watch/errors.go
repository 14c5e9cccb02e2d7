package watch

import "errors"

// Sentinel errors for the preconditions Ready distinguishes. Authorization
// failures carry status via *api.APIError instead; parse failures inside the
// stream are handled internally and never surface here.
var (
	// ErrConfigMissing means no endpoint or credential is configured. The
	// connection loop parks on this rather than burning reconnect cycles.
	ErrConfigMissing = errors.New("endpoint or credential not configured")

	// ErrUnhealthy means recent failures crossed the health threshold.
	ErrUnhealthy = errors.New("too many recent failures")
)
