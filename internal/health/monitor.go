// Package health provides the rolling-window health monitor and the periodic
// out-of-band liveness probe for the StashQ job-event subsystem.
//
// The monitor answers one question synchronously and without touching the
// network: is it sensible to open (or keep) a stream connection right now?
// Every other component feeds it outcome samples; only the trailing window of
// samples is ever consulted.
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultWindow is the trailing interval over which failures count.
	DefaultWindow = 5 * time.Minute

	// DefaultThreshold is the failure count within the window that flips
	// the verdict to TooManyRecentFailures.
	DefaultThreshold = 3
)

// Outcome is the result classification of a recorded sample.
type Outcome string

const (
	// OutcomeSuccess records a successful connection, fetch, or probe.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure records a failed connection, fetch, or probe.
	OutcomeFailure Outcome = "failure"
)

// FailureKind identifies what produced a failure sample.
type FailureKind string

const (
	// KindConnectionFailed is a transport or HTTP failure opening the stream.
	KindConnectionFailed FailureKind = "connection_failed"

	// KindStreamError is a mid-stream read failure.
	KindStreamError FailureKind = "stream_error"

	// KindFetchFailed is an authoritative fetch that failed for a reason
	// other than visibility.
	KindFetchFailed FailureKind = "fetch_failed"

	// KindHealthCheckFailed is a probe that reached the API but got an
	// HTTP error back.
	KindHealthCheckFailed FailureKind = "health_check_failed"

	// KindHealthCheckError is a probe that never reached the API.
	KindHealthCheckError FailureKind = "health_check_error"
)

// Verdict is the result of a basic health validation.
type Verdict string

const (
	// Healthy means preconditions hold and recent failures are under the threshold.
	Healthy Verdict = "healthy"

	// MissingEndpoint means no API endpoint is configured.
	MissingEndpoint Verdict = "missing_endpoint"

	// MissingCredential means no API key is configured.
	MissingCredential Verdict = "missing_credential"

	// TooManyRecentFailures means the trailing window holds at least the
	// threshold number of failure samples.
	TooManyRecentFailures Verdict = "too_many_recent_failures"
)

// Sample is one timestamped outcome inside the trailing window.
type Sample struct {
	// At is when the outcome was observed.
	At time.Time `json:"at"`

	// Outcome is success or failure.
	Outcome Outcome `json:"outcome"`

	// Kind identifies the failure source. Empty for successes.
	Kind FailureKind `json:"kind,omitempty"`
}

// Monitor records outcome samples and evaluates the health predicate.
//
// All read-modify-write sequences against the sample store are serialized by
// one mutex: the notification path, the periodic probe, and the router's
// refetch-failure path all record concurrently.
type Monitor struct {
	mu sync.Mutex

	// samples holds recorded outcomes, oldest first. Pruned lazily on
	// success records and reads, never on failure records.
	samples []Sample

	// endpoint and credential are the precondition inputs, swapped on
	// config hot reload.
	endpoint   string
	credential string

	// window and threshold parameterize the failure predicate.
	window    time.Duration
	threshold int

	// statePath, when non-empty, is the file samples are persisted to.
	// Persistence is best-effort; a failed write never fails a record.
	statePath string

	// onChange fires after any sample or config mutation, outside the lock.
	onChange func()

	// now is injectable for tests.
	now func() time.Time
}

// Options configures a Monitor.
type Options struct {
	// Endpoint is the configured API endpoint ("" means missing).
	Endpoint string

	// Credential is the configured API key ("" means missing).
	Credential string

	// Window overrides DefaultWindow when positive.
	Window time.Duration

	// Threshold overrides DefaultThreshold when positive.
	Threshold int

	// StatePath, when non-empty, enables durable sample persistence.
	// Samples are reloaded and re-filtered by window on construction.
	StatePath string

	// OnChange, when non-nil, fires after every recorded sample and config
	// swap. Called outside the monitor lock; reading the verdict from the
	// callback is safe.
	OnChange func()
}

// NewMonitor creates a health monitor.
//
// Parameters:
//   - opts: Monitor configuration
//
// Returns:
//   - *Monitor: A monitor with any persisted samples reloaded and re-filtered
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{
		endpoint:   opts.Endpoint,
		credential: opts.Credential,
		window:     opts.Window,
		threshold:  opts.Threshold,
		statePath:  opts.StatePath,
		onChange:   opts.OnChange,
		now:        time.Now,
	}
	if m.window <= 0 {
		m.window = DefaultWindow
	}
	if m.threshold <= 0 {
		m.threshold = DefaultThreshold
	}
	m.loadState()
	return m
}

// SetConfig swaps the precondition inputs after a config hot reload.
//
// Parameters:
//   - endpoint: The API endpoint, or "" if missing
//   - credential: The API key, or "" if missing
func (m *Monitor) SetConfig(endpoint, credential string) {
	m.mu.Lock()
	m.endpoint = endpoint
	m.credential = credential
	m.mu.Unlock()
	m.changed()
}

// changed invokes the change hook, if any. Never called with mu held.
func (m *Monitor) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

// ValidateBasicHealth evaluates the synchronous health predicate. It is pure
// with respect to the network: no call leaves the process.
//
// Returns:
//   - Verdict: Healthy, MissingEndpoint, MissingCredential, or
//     TooManyRecentFailures
func (m *Monitor) ValidateBasicHealth() Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.endpoint == "" {
		return MissingEndpoint
	}
	if m.credential == "" {
		return MissingCredential
	}
	if m.recentFailuresLocked() >= m.threshold {
		return TooManyRecentFailures
	}
	return Healthy
}

// RecordSuccess appends a success sample and opportunistically prunes samples
// that have aged out of the window.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	m.samples = append(m.samples, Sample{At: m.now(), Outcome: OutcomeSuccess})
	m.pruneLocked()
	m.saveStateLocked()
	m.mu.Unlock()
	m.changed()
}

// RecordFailure appends a failure sample. It never prunes, so a failure
// cannot be lost to a pruning race with a concurrent reader.
//
// Parameters:
//   - kind: What produced the failure
func (m *Monitor) RecordFailure(kind FailureKind) {
	m.mu.Lock()
	m.samples = append(m.samples, Sample{At: m.now(), Outcome: OutcomeFailure, Kind: kind})
	m.saveStateLocked()
	m.mu.Unlock()
	m.changed()
}

// RecentFailures counts failure samples inside the trailing window.
//
// Returns:
//   - int: Failure samples with timestamp in [now-window, now]
func (m *Monitor) RecentFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recentFailuresLocked()
}

// recentFailuresLocked counts in-window failures. Caller holds mu.
func (m *Monitor) recentFailuresLocked() int {
	cutoff := m.now().Add(-m.window)
	count := 0
	for _, s := range m.samples {
		if s.Outcome == OutcomeFailure && !s.At.Before(cutoff) {
			count++
		}
	}
	return count
}

// pruneLocked drops samples older than the window. Caller holds mu.
func (m *Monitor) pruneLocked() {
	cutoff := m.now().Add(-m.window)
	kept := m.samples[:0]
	for _, s := range m.samples {
		if !s.At.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	m.samples = kept
}

// loadState reloads persisted samples, re-filtered by the window.
func (m *Monitor) loadState() {
	if m.statePath == "" {
		return
	}
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug("could not read health state", "path", m.statePath, "err", err)
		}
		return
	}

	var samples []Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		log.Debug("could not parse health state", "path", m.statePath, "err", err)
		return
	}

	cutoff := m.now().Add(-m.window)
	for _, s := range samples {
		if !s.At.Before(cutoff) {
			m.samples = append(m.samples, s)
		}
	}
}

// saveStateLocked persists samples best-effort. Caller holds mu.
func (m *Monitor) saveStateLocked() {
	if m.statePath == "" {
		return
	}
	data, err := json.Marshal(m.samples)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0700); err != nil {
		log.Debug("could not create health state directory", "err", err)
		return
	}
	if err := os.WriteFile(m.statePath, data, 0600); err != nil {
		log.Debug("could not write health state", "err", err)
	}
}

// DefaultStatePath returns the standard location for persisted health
// samples under the user config directory.
//
// Returns:
//   - string: ~/.stashq/health.json, or a relative fallback if the home
//     directory cannot be resolved
func DefaultStatePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".stashq", "health.json")
}

// String renders a verdict for the UI layer.
//
// Returns:
//   - string: Human-readable verdict description
func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case MissingEndpoint:
		return "no endpoint configured"
	case MissingCredential:
		return "no API key configured"
	case TooManyRecentFailures:
		return fmt.Sprintf("too many failures in the last %s", DefaultWindow)
	default:
		return string(v)
	}
}
