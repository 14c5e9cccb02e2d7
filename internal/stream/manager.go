// Package stream owns the long-lived connection to the StashQ job-event
// stream.
//
// Exactly one stream-reading loop runs per Manager: it is the sole writer of
// the connection state and the sole producer of frames. Everything that can
// go wrong on the wire is caught inside the supervising loop and converted
// into a state transition plus an optional reconnect; no transport error ever
// escapes to the caller.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stashq/cli/internal/sse"
)

// State is the connection state machine position.
type State string

const (
	// Disconnected means no stream is open and no attempt is in progress.
	Disconnected State = "disconnected"

	// Connecting means an attempt is in progress.
	Connecting State = "connecting"

	// Connected means the stream responded and frames are flowing.
	Connected State = "connected"
)

const (
	// DefaultConnectTimeout bounds how long an attempt may take to get the
	// first response.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadIdleTimeout converts a silent hung stream into a standard
	// reconnect-eligible failure. The server heartbeats well inside this.
	DefaultReadIdleTimeout = 60 * time.Second

	// DefaultReconnectDelay is the fixed delay between reconnect attempts.
	DefaultReconnectDelay = 3 * time.Second
)

// Options configures a Manager.
type Options struct {
	// Endpoint is the full stream URL. Empty means configuration is
	// missing and no attempt is made.
	Endpoint string

	// Credential is the bearer credential sent on each attempt. Empty
	// means configuration is missing and no attempt is made.
	Credential string

	// InstanceID identifies this client instance to the backend.
	InstanceID string

	// ConnectTimeout overrides DefaultConnectTimeout when positive.
	ConnectTimeout time.Duration

	// ReadIdleTimeout overrides DefaultReadIdleTimeout when positive.
	ReadIdleTimeout time.Duration

	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration

	// DisableReconnect turns off automatic reconnection. Used by one-shot
	// commands; the watch subsystem leaves it on.
	DisableReconnect bool

	// OnFrame receives every parsed frame, called from the reading loop.
	OnFrame func(sse.Frame)

	// OnStateChange fires on every state transition.
	OnStateChange func(State)

	// OnFailure fires when an attempt or an established stream fails.
	// wasConnected distinguishes a mid-stream error from a failed attempt.
	OnFailure func(err error, wasConnected bool)

	// HTTPClient overrides the default streaming client. Tests use it.
	HTTPClient *http.Client
}

// Manager supervises the stream connection.
type Manager struct {
	opts Options

	httpClient *http.Client

	// mu guards state, the config fields, and the running flag. The run
	// goroutine is the only state writer.
	mu         sync.Mutex
	state      State
	endpoint   string
	credential string
	running    bool

	// wake unparks a loop waiting on missing configuration.
	wake chan struct{}

	// cancel and done implement synchronous Stop.
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a connection manager. It does not connect; call Start.
//
// Parameters:
//   - opts: Manager configuration
//
// Returns:
//   - *Manager: A manager in the Disconnected state
func NewManager(opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadIdleTimeout <= 0 {
		opts.ReadIdleTimeout = DefaultReadIdleTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}

	m := &Manager{
		opts:       opts,
		endpoint:   opts.Endpoint,
		credential: opts.Credential,
		state:      Disconnected,
		wake:       make(chan struct{}, 1),
	}
	m.httpClient = opts.HTTPClient
	if m.httpClient == nil {
		// No overall timeout: the response body is a long-lived stream.
		// Attempt and idle bounds are enforced per phase instead.
		m.httpClient = &http.Client{Timeout: 0}
	}
	return m
}

// Start launches the supervising loop. Calling Start on a running manager is
// a no-op, preserving the one-reading-loop-per-process invariant.
//
// Parameters:
//   - ctx: Parent context; cancelling it behaves like Stop
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(runCtx)
}

// Stop disconnects synchronously: when it returns, the state is Disconnected,
// no further frame will be delivered, and no reconnect is scheduled, even if
// the underlying socket teardown completes asynchronously.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// State returns the current connection state.
//
// Returns:
//   - State: Disconnected, Connecting, or Connected
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Refresh swaps the endpoint and credential, waking a loop parked on missing
// configuration. The config watcher calls this on credentials hot reload.
//
// Parameters:
//   - endpoint: The new stream URL
//   - credential: The new bearer credential
func (m *Manager) Refresh(endpoint, credential string) {
	m.mu.Lock()
	m.endpoint = endpoint
	m.credential = credential
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// setState transitions the state machine. Only the run goroutine calls it.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()

	if changed && m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}

// run is the supervising loop: connect, read until failure, reconnect.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	defer m.setState(Disconnected)

	for {
		endpoint, credential := m.config()
		if endpoint == "" || credential == "" {
			// Config-missing precondition, not a connection error:
			// park without consuming a reconnect cycle.
			m.setState(Disconnected)
			log.Debug("stream configuration missing, waiting")
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
				continue
			}
		}

		m.setState(Connecting)
		wasConnected, err := m.connectAndRead(ctx, endpoint, credential)
		if ctx.Err() != nil {
			return
		}

		m.setState(Disconnected)
		if err != nil {
			log.Debug("stream disconnected", "err", err, "was_connected", wasConnected)
			if m.opts.OnFailure != nil {
				m.opts.OnFailure(err, wasConnected)
			}
		}

		if m.opts.DisableReconnect {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.opts.ReconnectDelay):
		}
	}
}

// config snapshots the endpoint and credential.
func (m *Manager) config() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint, m.credential
}

// connectAndRead opens the stream and pumps bytes into the parser until the
// stream ends, hangs past the idle bound, or the context is cancelled.
//
// Returns:
//   - bool: True if the attempt reached Connected before failing
//   - error: The failure; nil only on context cancellation
func (m *Manager) connectAndRead(ctx context.Context, endpoint, credential string) (bool, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if m.opts.InstanceID != "" {
		req.Header.Set("X-Stashq-Instance", m.opts.InstanceID)
	}

	// A hung attempt is cancelled and handled as a normal failure.
	connectTimer := time.AfterFunc(m.opts.ConnectTimeout, cancel)
	resp, err := m.httpClient.Do(req)
	connectTimer.Stop()
	if err != nil {
		return false, fmt.Errorf("stream connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("stream connection failed with status: %d", resp.StatusCode)
	}

	m.setState(Connected)
	log.Debug("stream connected", "endpoint", endpoint)

	// The idle watchdog cancels a read that sits silent too long. Every
	// received chunk (heartbeats included) rearms it.
	watchdog := time.AfterFunc(m.opts.ReadIdleTimeout, cancel)
	defer watchdog.Stop()

	parser := sse.NewParser()
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(m.opts.ReadIdleTimeout)
			for _, frame := range parser.Feed(buf[:n]) {
				if ctx.Err() != nil {
					// Stop was requested: deliver nothing more.
					return true, nil
				}
				if m.opts.OnFrame != nil {
					m.opts.OnFrame(frame)
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, fmt.Errorf("stream read failed: %w", err)
		}
	}
}
