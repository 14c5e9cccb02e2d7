// Package notify provides the deduplicated terminal-failure notifier for the
// StashQ job-event subsystem.
//
// A job's confirmed terminal failure is surfaced to the user at most once per
// process lifetime, across reconnects, redundant client instances, and
// duplicate frames. The notified set never expires; it is cheap (job IDs) and
// scoped to the session.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/stashq/cli/internal/api"
	"github.com/stashq/cli/internal/jobs"
)

// Notification is one user-visible failure notice.
type Notification struct {
	// JobID is the failed job.
	JobID string

	// Title is the short headline.
	Title string

	// Body is the detail line, including the job's error message when known.
	Body string
}

// Sink is the platform binding that actually surfaces a notification. The
// core never cares whether that is a terminal line, a desktop popup, or a
// mobile push; each platform provides its own Sink.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Confirmer performs the authoritative fetch used to confirm a failure and
// resolve the owning principal. *api.Client satisfies it.
type Confirmer interface {
	GetJob(ctx context.Context, jobID string) (*api.Job, error)
}

// Notifier deduplicates terminal-failure notifications.
//
// The check, confirm, notify, record sequence is atomic with respect to
// concurrent deliveries of the same job's failure frame: the first delivery
// claims the job, later ones no-op against the notified or in-flight set.
type Notifier struct {
	mu sync.Mutex

	// notified is the failure record: job IDs already surfaced. Entries
	// never expire within the process lifetime.
	notified map[string]struct{}

	// inflight holds job IDs whose confirmation fetch is running.
	inflight map[string]struct{}

	// principal is the current viewer's user ID. Failures of jobs owned
	// by anyone else are not applicable.
	principal string

	// allJobs bypasses the ownership check so every confirmed failure
	// notifies, regardless of owner. Confirmation and dedup still apply.
	allJobs bool

	confirmer Confirmer
	sink      Sink

	// onConfirmError records a health sample for transient confirm failures.
	onConfirmError func()

	// onNotified fires after a notification is emitted, for the TUI.
	onNotified func(Notification)

	// wg tracks confirmation goroutines so shutdown can drain them.
	wg sync.WaitGroup
}

// NotifierOptions configures a Notifier.
type NotifierOptions struct {
	// Confirmer performs the authoritative confirmation fetch.
	Confirmer Confirmer

	// Sink surfaces notifications to the user.
	Sink Sink

	// Principal is the current viewer's user ID, when already known.
	Principal string

	// AllJobs notifies for every confirmed failure instead of only the
	// current viewer's jobs.
	AllJobs bool

	// OnConfirmError fires when a confirmation fetch fails transiently.
	OnConfirmError func()

	// OnNotified fires after each emitted notification.
	OnNotified func(Notification)
}

// NewNotifier creates a failure notifier with an empty failure record.
//
// Parameters:
//   - opts: Notifier configuration
//
// Returns:
//   - *Notifier: A notifier ready to receive updates
func NewNotifier(opts NotifierOptions) *Notifier {
	return &Notifier{
		notified:       make(map[string]struct{}),
		inflight:       make(map[string]struct{}),
		principal:      opts.Principal,
		allJobs:        opts.AllJobs,
		confirmer:      opts.Confirmer,
		sink:           opts.Sink,
		onConfirmError: opts.OnConfirmError,
		onNotified:     opts.OnNotified,
	}
}

// SetPrincipal records the current viewer once API key validation resolves.
//
// Parameters:
//   - userID: The authenticated principal's user ID
func (n *Notifier) SetPrincipal(userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.principal = userID
}

// HandleUpdate inspects a push update and, for a terminal failure with
// retries exhausted, runs the confirm-and-notify sequence. It returns
// immediately; the confirmation fetch runs on its own goroutine and never
// blocks the stream-reading loop.
//
// Parameters:
//   - ctx: Context for the confirmation fetch
//   - ev: The push update
func (n *Notifier) HandleUpdate(ctx context.Context, ev *jobs.UpdateEvent) {
	if !jobs.IsFailed(ev.Status) {
		return
	}
	if ev.RetriesExhausted == nil || !*ev.RetriesExhausted {
		// Failure without exhausted retries: the pipeline will retry,
		// nothing terminal to report yet.
		return
	}

	n.mu.Lock()
	if _, done := n.notified[ev.JobID]; done {
		n.mu.Unlock()
		return
	}
	if _, busy := n.inflight[ev.JobID]; busy {
		n.mu.Unlock()
		return
	}
	n.inflight[ev.JobID] = struct{}{}
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.confirmAndNotify(ctx, ev.JobID)
	}()
}

// confirmAndNotify fetches the authoritative record, verifies the failure
// applies to the current viewer (or that all-jobs mode is on), and emits at
// most one notification.
func (n *Notifier) confirmAndNotify(ctx context.Context, jobID string) {
	job, err := n.confirmer.GetJob(ctx, jobID)
	if err != nil {
		n.clearInflight(jobID)
		if api.IsNotVisible(err) {
			// Someone else's job: not applicable, not an error.
			log.Debug("failed job not visible to viewer, skipping", "job", jobID)
			return
		}
		log.Debug("failure confirmation fetch failed", "job", jobID, "err", err)
		if n.onConfirmError != nil {
			n.onConfirmError()
		}
		return
	}

	n.mu.Lock()
	applicable := n.allJobs || (n.principal != "" && job.Owner == n.principal)
	n.mu.Unlock()

	if !jobs.IsFailed(job.Status) || !applicable {
		// The push was stale or the job belongs to another principal:
		// no record, so a genuine later failure can still surface.
		n.clearInflight(jobID)
		return
	}

	notification := Notification{
		JobID: job.ID,
		Title: fmt.Sprintf("Job %s failed", displayName(job)),
		Body:  failureBody(job),
	}
	if err := n.sink.Notify(ctx, notification); err != nil {
		// The record is still written: at-most-once beats retrying a
		// sink that may have partially delivered.
		log.Debug("notification sink failed", "job", jobID, "err", err)
	}

	n.mu.Lock()
	n.notified[jobID] = struct{}{}
	delete(n.inflight, jobID)
	n.mu.Unlock()

	if n.onNotified != nil {
		n.onNotified(notification)
	}
}

// clearInflight releases a job claim without recording it, so a later frame
// may retry the confirmation.
func (n *Notifier) clearInflight(jobID string) {
	n.mu.Lock()
	delete(n.inflight, jobID)
	n.mu.Unlock()
}

// Notified reports whether a job's failure has already been surfaced.
//
// Parameters:
//   - jobID: The job ID
//
// Returns:
//   - bool: True if a notification was emitted for this job
func (n *Notifier) Notified(jobID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.notified[jobID]
	return ok
}

// Flush waits for in-flight confirmations to settle. Shutdown uses it
// best-effort; tests use it for determinism.
func (n *Notifier) Flush() {
	n.wg.Wait()
}

// displayName prefers the job's name over its ID for the headline.
func displayName(job *api.Job) string {
	if job.Name != "" {
		return job.Name
	}
	return job.ID
}

// failureBody renders the notification detail line.
func failureBody(job *api.Job) string {
	if job.ErrorMessage != "" {
		return fmt.Sprintf("Retries exhausted: %s", job.ErrorMessage)
	}
	return "Retries exhausted"
}
