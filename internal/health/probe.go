package health

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stashq/cli/internal/api"
)

const (
	// DefaultDisconnectedInterval is the probe cadence while the stream is
	// not connected.
	DefaultDisconnectedInterval = 30 * time.Second

	// DefaultConnectedInterval is the minimum probe cadence while the
	// stream is connected, to catch "stream alive but API degraded".
	DefaultConnectedInterval = 5 * time.Minute
)

// Checker performs the out-of-band liveness call. *api.Client satisfies it.
type Checker interface {
	Health(ctx context.Context) error
}

// Probe runs the low-frequency liveness check and feeds outcomes into the
// Monitor. At most one probe is outstanding at a time; a request while one is
// in flight is a no-op.
type Probe struct {
	checker Checker
	monitor *Monitor

	// connected reports whether the stream manager is currently Connected.
	connected func() bool

	disconnectedEvery time.Duration
	connectedEvery    time.Duration

	// inFlight guards the single-outstanding-probe invariant.
	inFlight atomic.Bool

	// lastProbe is the wall time of the last completed probe, stored as
	// UnixNano for lock-free access from Trigger and the loop.
	lastProbe atomic.Int64

	// now is injectable for tests.
	now func() time.Time
}

// ProbeOptions configures a Probe.
type ProbeOptions struct {
	// Checker performs the liveness call.
	Checker Checker

	// Monitor receives the probe outcomes.
	Monitor *Monitor

	// Connected reports the stream connection state. When nil the probe
	// behaves as if permanently disconnected.
	Connected func() bool

	// DisconnectedInterval overrides DefaultDisconnectedInterval when positive.
	DisconnectedInterval time.Duration

	// ConnectedInterval overrides DefaultConnectedInterval when positive.
	ConnectedInterval time.Duration
}

// NewProbe creates a periodic health probe.
//
// Parameters:
//   - opts: Probe configuration
//
// Returns:
//   - *Probe: A probe ready to Run
func NewProbe(opts ProbeOptions) *Probe {
	p := &Probe{
		checker:           opts.Checker,
		monitor:           opts.Monitor,
		connected:         opts.Connected,
		disconnectedEvery: opts.DisconnectedInterval,
		connectedEvery:    opts.ConnectedInterval,
		now:               time.Now,
	}
	if p.disconnectedEvery <= 0 {
		p.disconnectedEvery = DefaultDisconnectedInterval
	}
	if p.connectedEvery <= 0 {
		p.connectedEvery = DefaultConnectedInterval
	}
	if p.connected == nil {
		p.connected = func() bool { return false }
	}
	return p
}

// Run drives the probe until the context is cancelled. While the stream is
// disconnected it probes at the short cadence; while connected it still
// probes at the long minimum cadence.
//
// Parameters:
//   - ctx: Context for cancellation
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.disconnectedEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.due() {
				p.Trigger(ctx)
			}
		}
	}
}

// due reports whether a probe should fire on this tick.
func (p *Probe) due() bool {
	if !p.connected() {
		return true
	}
	last := time.Unix(0, p.lastProbe.Load())
	return p.now().Sub(last) >= p.connectedEvery
}

// Trigger runs one probe immediately. A call while a probe is already in
// flight is a no-op, preserving the at-most-one-outstanding invariant.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - bool: True if this call ran the probe, false if one was in flight
func (p *Probe) Trigger(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer p.inFlight.Store(false)

	err := p.checker.Health(ctx)
	p.lastProbe.Store(p.now().UnixNano())

	switch {
	case err == nil:
		p.monitor.RecordSuccess()
	case isAPIError(err):
		log.Debug("health probe failed", "err", err)
		p.monitor.RecordFailure(KindHealthCheckFailed)
	default:
		log.Debug("health probe error", "err", err)
		p.monitor.RecordFailure(KindHealthCheckError)
	}
	return true
}

// isAPIError reports whether the probe reached the API and got an HTTP error
// back, as opposed to never reaching it at all.
func isAPIError(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr)
}
