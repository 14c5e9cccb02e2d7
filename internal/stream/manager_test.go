// Package stream owns the long-lived connection to the job-event stream.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stashq/cli/internal/sse"
)

// frameCollector gathers frames delivered by the manager.
type frameCollector struct {
	mu     sync.Mutex
	frames []sse.Frame
}

func (c *frameCollector) add(f sse.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
}

func (c *frameCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// streamServer serves a scripted event stream and counts connections.
func streamServer(t *testing.T, frames []string, hold bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var connections atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connections.Add(1)
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", r.Header.Get("Accept"))
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("stream request missing credential header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		flusher.Flush()

		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
		if hold {
			<-r.Context().Done()
		}
	}))
	return server, &connections
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectAndReceiveFrames(t *testing.T) {
	server, _ := streamServer(t, []string{
		": heartbeat\n\n",
		"event: job_update\ndata: {\"job_id\":\"42\",\"status\":\"downloading\"}\n\n",
	}, true)
	defer server.Close()

	collector := &frameCollector{}
	m := NewManager(Options{
		Endpoint:   server.URL,
		Credential: "key",
		OnFrame:    collector.add,
	})
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, func() bool { return collector.count() == 1 }, "frame never delivered")
	waitFor(t, func() bool { return m.State() == Connected }, "never reached Connected")

	collector.mu.Lock()
	frame := collector.frames[0]
	collector.mu.Unlock()
	if frame.Event != "job_update" {
		t.Errorf("Event = %q, want job_update", frame.Event)
	}
}

func TestReconnectAfterStreamEnd(t *testing.T) {
	server, connections := streamServer(t, []string{"event: job_update\ndata: {}\n\n"}, false)
	defer server.Close()

	collector := &frameCollector{}
	m := NewManager(Options{
		Endpoint:       server.URL,
		Credential:     "key",
		ReconnectDelay: 10 * time.Millisecond,
		OnFrame:        collector.add,
	})
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, func() bool { return connections.Load() >= 2 }, "manager never reconnected")
	if collector.count() < 2 {
		waitFor(t, func() bool { return collector.count() >= 2 }, "frames not redelivered on reconnect")
	}
}

func TestStopIsSynchronous(t *testing.T) {
	server, connections := streamServer(t, []string{"event: job_update\ndata: {}\n\n"}, true)
	defer server.Close()

	collector := &frameCollector{}
	m := NewManager(Options{
		Endpoint:       server.URL,
		Credential:     "key",
		ReconnectDelay: 20 * time.Millisecond,
		OnFrame:        collector.add,
	})
	m.Start(context.Background())
	waitFor(t, func() bool { return m.State() == Connected }, "never connected")

	m.Stop()

	if got := m.State(); got != Disconnected {
		t.Errorf("State after Stop = %v, want Disconnected", got)
	}

	// No further frame and no reconnect even after the delay elapses.
	before := collector.count()
	attempts := connections.Load()
	time.Sleep(100 * time.Millisecond)
	if got := collector.count(); got != before {
		t.Errorf("frames delivered after Stop: %d -> %d", before, got)
	}
	if got := connections.Load(); got != attempts {
		t.Errorf("reconnect fired after Stop: %d -> %d attempts", attempts, got)
	}
}

func TestMissingConfigDoesNotAttempt(t *testing.T) {
	server, connections := streamServer(t, nil, true)
	defer server.Close()

	m := NewManager(Options{
		Endpoint:       "", // config missing
		Credential:     "",
		ReconnectDelay: 5 * time.Millisecond,
	})
	m.Start(context.Background())
	defer m.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := connections.Load(); got != 0 {
		t.Errorf("connection attempts with missing config = %d, want 0", got)
	}
	if got := m.State(); got != Disconnected {
		t.Errorf("State = %v, want Disconnected while parked", got)
	}

	// Hot reload arms the loop.
	m.Refresh(server.URL, "key")
	waitFor(t, func() bool { return connections.Load() >= 1 }, "Refresh did not wake the loop")
}

func TestConnectFailureRecordedAndRetried(t *testing.T) {
	var failures atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := NewManager(Options{
		Endpoint:       server.URL,
		Credential:     "key",
		ReconnectDelay: 5 * time.Millisecond,
		OnFailure: func(err error, wasConnected bool) {
			if wasConnected {
				t.Error("failed attempt reported as mid-stream error")
			}
			failures.Add(1)
		},
	})
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, func() bool { return failures.Load() >= 2 }, "failures not recorded across retries")
}

func TestMidStreamErrorReported(t *testing.T) {
	var midStream atomic.Bool
	server, _ := streamServer(t, []string{"event: job_update\ndata: {}\n\n"}, false)
	defer server.Close()

	m := NewManager(Options{
		Endpoint:         server.URL,
		Credential:       "key",
		DisableReconnect: true,
		OnFailure: func(err error, wasConnected bool) {
			midStream.Store(wasConnected)
		},
	})
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, midStream.Load, "stream end not reported as mid-stream failure")
}

func TestIdleWatchdogConvertsHangIntoReconnect(t *testing.T) {
	server, connections := streamServer(t, nil, true) // connects then goes silent
	defer server.Close()

	m := NewManager(Options{
		Endpoint:        server.URL,
		Credential:      "key",
		ReadIdleTimeout: 30 * time.Millisecond,
		ReconnectDelay:  5 * time.Millisecond,
	})
	m.Start(context.Background())
	defer m.Stop()

	waitFor(t, func() bool { return connections.Load() >= 2 }, "idle stream never recycled")
}

func TestStartTwiceKeepsOneLoop(t *testing.T) {
	server, connections := streamServer(t, nil, true)
	defer server.Close()

	m := NewManager(Options{Endpoint: server.URL, Credential: "key"})
	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx)
	defer m.Stop()

	waitFor(t, func() bool { return connections.Load() >= 1 }, "never connected")
	time.Sleep(30 * time.Millisecond)
	if got := connections.Load(); got != 1 {
		t.Errorf("connection attempts = %d, want 1 loop", got)
	}
}
