// Package watch assembles the job-event subsystem: the API client, the
// stream connection manager, the update router, the failure notifier, the
// health monitor and probe, and the credentials hot-reload watcher. The
// watch command and the live TUI talk to this facade only.
package watch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/stashq/cli/internal/api"
	"github.com/stashq/cli/internal/auth"
	"github.com/stashq/cli/internal/config"
	"github.com/stashq/cli/internal/health"
	"github.com/stashq/cli/internal/jobs"
	"github.com/stashq/cli/internal/notify"
	"github.com/stashq/cli/internal/sse"
	"github.com/stashq/cli/internal/stream"
)

// EventKind discriminates facade events sent to the subscriber.
type EventKind string

const (
	// EventStateChanged reports a connection state transition.
	EventStateChanged EventKind = "state_changed"

	// EventJobsChanged reports any change to the cached job list.
	EventJobsChanged EventKind = "jobs_changed"

	// EventNotification reports an emitted failure notification.
	EventNotification EventKind = "notification"

	// EventHealthChanged reports a health verdict transition.
	EventHealthChanged EventKind = "health_changed"

	// EventUnknownFrame reports a stream frame with an unrecognized
	// event name. Surfaced rather than dropped so new server-side event
	// types are visible before this client learns them.
	EventUnknownFrame EventKind = "unknown"
)

// Event is one facade occurrence, delivered on the Events channel.
type Event struct {
	Kind EventKind

	// State is set for EventStateChanged.
	State stream.State

	// Notification is set for EventNotification.
	Notification *notify.Notification

	// Verdict is set for EventHealthChanged.
	Verdict health.Verdict

	// FrameEvent is set for EventUnknownFrame.
	FrameEvent string
}

// Options configures a Watcher.
type Options struct {
	// BaseURL is the API base URL.
	BaseURL string

	// APIKey is the credential. Empty parks the connection loop until a
	// credentials hot reload supplies one.
	APIKey string

	// Principal is the current user ID when already known. Resolved via
	// API key validation during Start when empty.
	Principal string

	// CredentialsPath, when non-empty, is watched for hot reload.
	CredentialsPath string

	// Settings carries the project-level view and notification settings.
	// Nil means defaults.
	Settings *config.Settings

	// Sink surfaces failure notifications. Defaults to the terminal sink.
	Sink notify.Sink

	// HealthStatePath overrides the default health persistence location.
	HealthStatePath string
}

// Watcher owns one instance of every subsystem component. All cross-component
// wiring is explicit here; no package holds global state.
type Watcher struct {
	client   *api.Client
	manager  *stream.Manager
	router   *jobs.Router
	notifier *notify.Notifier
	monitor  *health.Monitor
	probe    *health.Probe

	settings  config.Settings
	credPath  string
	fileWatch *config.FileWatcher

	events chan Event

	// lastVerdict deduplicates health events.
	verdictMu   sync.Mutex
	lastVerdict health.Verdict

	cancel context.CancelFunc

	// ctx is the lifetime of Start..Stop; handleFrame uses it so fetches
	// outlive individual stream connections but not the subsystem.
	ctx context.Context
}

// New wires up the subsystem. Nothing connects until Start.
//
// Parameters:
//   - opts: Facade configuration
//
// Returns:
//   - *Watcher: The assembled subsystem
func New(opts Options) *Watcher {
	settings := config.DefaultSettings()
	if opts.Settings != nil {
		settings = opts.Settings
	}
	statePath := opts.HealthStatePath
	if statePath == "" {
		statePath = health.DefaultStatePath()
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.NewTerminalSink()
	}

	w := &Watcher{
		settings: *settings,
		credPath: opts.CredentialsPath,
		events:   make(chan Event, 64),
	}

	w.client = api.NewClientWithBaseURL(opts.APIKey, opts.BaseURL)

	w.monitor = health.NewMonitor(health.Options{
		Endpoint:   opts.BaseURL,
		Credential: opts.APIKey,
		StatePath:  statePath,
		OnChange:   w.healthChanged,
	})
	w.lastVerdict = w.monitor.ValidateBasicHealth()

	w.router = jobs.NewRouter(jobs.RouterOptions{
		Fetcher:  w.client,
		Capacity: settings.Watch.CacheSize,
		Filter:   statusFilter(settings.Watch.Statuses),
		OnChange: func() { w.emit(Event{Kind: EventJobsChanged}) },
		OnFetchFailure: func() {
			w.monitor.RecordFailure(health.KindFetchFailed)
		},
	})

	w.notifier = notify.NewNotifier(notify.NotifierOptions{
		Confirmer: w.client,
		Sink:      sink,
		Principal: opts.Principal,
		AllJobs:   settings.Notifications.AllJobs,
		OnConfirmError: func() {
			w.monitor.RecordFailure(health.KindFetchFailed)
		},
		OnNotified: func(n notify.Notification) {
			w.emit(Event{Kind: EventNotification, Notification: &n})
		},
	})

	w.manager = stream.NewManager(stream.Options{
		Endpoint:      config.GetEventsURL(opts.BaseURL),
		Credential:    opts.APIKey,
		InstanceID:    w.client.InstanceID(),
		OnFrame:       w.handleFrame,
		OnStateChange: w.handleStateChange,
		OnFailure:     w.handleStreamFailure,
	})

	w.probe = health.NewProbe(health.ProbeOptions{
		Checker: w.client,
		Monitor: w.monitor,
		Connected: func() bool {
			return w.manager.State() == stream.Connected
		},
	})

	return w
}

// Start brings the subsystem up: connection loop, periodic probe,
// credentials watcher, and the initial cache prime.
//
// Parameters:
//   - ctx: Parent context; cancelling it is equivalent to Stop
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.ctx = ctx

	w.manager.Start(ctx)
	go w.probe.Run(ctx)
	go w.prime(ctx)

	if w.credPath != "" {
		fw, err := config.WatchFile(w.credPath, w.reloadCredentials)
		if err != nil {
			log.Warn("credentials hot reload unavailable", "error", err)
		} else {
			w.fileWatch = fw
		}
	}
}

// Stop tears the subsystem down. Synchronous: when it returns the stream is
// closed, no reconnect is pending, and in-flight notifications have drained.
func (w *Watcher) Stop() {
	if w.fileWatch != nil {
		w.fileWatch.Close()
		w.fileWatch = nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.manager.Stop()
	w.notifier.Flush()
}

// Events returns the subscriber channel. Delivery is best-effort: when the
// subscriber falls behind, events are dropped rather than blocking the
// stream loop, and the TUI re-reads full state on every event anyway.
//
// Returns:
//   - <-chan Event: The facade event channel
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Jobs returns the current cached job list, newest first.
//
// Returns:
//   - []api.Job: Snapshot copies of the cached jobs
func (w *Watcher) Jobs() []api.Job {
	return w.router.Jobs()
}

// State returns the current connection state.
//
// Returns:
//   - stream.State: Disconnected, Connecting, or Connected
func (w *Watcher) State() stream.State {
	return w.manager.State()
}

// Health returns the current synchronous health verdict.
//
// Returns:
//   - health.Verdict: The verdict at this instant
func (w *Watcher) Health() health.Verdict {
	return w.monitor.ValidateBasicHealth()
}

// Ready reports whether the subsystem has what it needs to stream.
//
// Returns:
//   - error: ErrConfigMissing, ErrUnhealthy, or nil
func (w *Watcher) Ready() error {
	switch w.monitor.ValidateBasicHealth() {
	case health.MissingEndpoint, health.MissingCredential:
		return ErrConfigMissing
	case health.TooManyRecentFailures:
		return ErrUnhealthy
	}
	return nil
}

// RecentFailures returns the in-window failure count.
//
// Returns:
//   - int: Failure samples inside the trailing window
func (w *Watcher) RecentFailures() int {
	return w.monitor.RecentFailures()
}

// prime seeds the job cache from the active-view listing and resolves the
// principal for ownership checks. Both calls are best-effort; push updates
// repair a failed prime as they arrive.
func (w *Watcher) prime(ctx context.Context) {
	if resp, err := w.client.ListJobs(ctx, 0, 0); err != nil {
		log.Debug("initial job listing failed", "error", err)
	} else {
		w.router.Prime(resp.Jobs)
	}

	if resp, err := w.client.ValidateAPIKey(ctx); err != nil {
		log.Debug("principal resolution failed", "error", err)
	} else if !w.settings.Notifications.AllJobs {
		w.notifier.SetPrincipal(resp.UserID)
	}
}

// handleFrame fans one parsed frame out by event type. Runs on the stream
// reading goroutine; everything it calls is non-blocking.
func (w *Watcher) handleFrame(f sse.Frame) {
	switch f.Event {
	case "job_update":
		ev, err := jobs.ParseUpdate(f.Data)
		if err != nil {
			log.Debug("dropping malformed job update", "error", err, "raw", f.Raw)
			return
		}
		w.router.Apply(w.ctx, ev)
		if !w.settings.Notifications.Disabled {
			w.notifier.HandleUpdate(w.ctx, ev)
		}
	case "heartbeat", "connection_ready":
		// Liveness only; the read watchdog already resets on any bytes.
	default:
		log.Debug("unknown stream event", "event", f.Event)
		w.emit(Event{Kind: EventUnknownFrame, FrameEvent: f.Event})
	}
}

// handleStateChange forwards connection transitions and records a health
// success on each established connection.
func (w *Watcher) handleStateChange(s stream.State) {
	if s == stream.Connected {
		w.monitor.RecordSuccess()
	}
	w.emit(Event{Kind: EventStateChanged, State: s})
}

// handleStreamFailure classifies a stream failure into a health sample.
func (w *Watcher) handleStreamFailure(err error, wasConnected bool) {
	kind := health.KindConnectionFailed
	if wasConnected {
		kind = health.KindStreamError
	}
	log.Debug("stream failure", "error", err, "connected", wasConnected)
	w.monitor.RecordFailure(kind)
}

// healthChanged emits a health event when the verdict actually moved.
func (w *Watcher) healthChanged() {
	v := w.monitor.ValidateBasicHealth()
	w.verdictMu.Lock()
	moved := v != w.lastVerdict
	w.lastVerdict = v
	w.verdictMu.Unlock()
	if moved {
		w.emit(Event{Kind: EventHealthChanged, Verdict: v})
	}
}

// reloadCredentials re-reads the credentials file and re-arms the connection
// precondition. Fired by the file watcher after a debounce.
func (w *Watcher) reloadCredentials() {
	mgr := auth.NewManagerWithDir(filepath.Dir(w.credPath))
	creds, err := mgr.GetCredentials()
	if err != nil {
		log.Warn("credentials reload failed", "error", err)
		return
	}

	apiKey := ""
	if creds != nil {
		apiKey = creds.APIKey
	}
	log.Debug("credentials reloaded", "present", apiKey != "")

	w.client.SetAPIKey(apiKey)
	w.monitor.SetConfig(w.client.BaseURL(), apiKey)
	w.manager.Refresh(config.GetEventsURL(w.client.BaseURL()), apiKey)
	if creds != nil && creds.UserID != "" && !w.settings.Notifications.AllJobs {
		w.notifier.SetPrincipal(creds.UserID)
	}
}

// emit delivers an event without ever blocking a subsystem goroutine.
func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

// statusFilter builds the view predicate from the settings status list.
func statusFilter(statuses []string) func(*api.Job) bool {
	if len(statuses) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[s] = struct{}{}
	}
	return func(j *api.Job) bool {
		_, ok := allowed[j.Status]
		return ok
	}
}
