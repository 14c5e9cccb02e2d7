package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stashq/cli/internal/config"
	"github.com/stashq/cli/internal/notify"
	"github.com/stashq/cli/internal/stream"
)

// backend is a fake StashQ server covering both the pull API and the
// event stream endpoint.
type backend struct {
	mu     sync.Mutex
	jobs   map[string]map[string]interface{}
	frames []string
	hold   bool

	// emptyList makes /jobs return no entries while /jobs/{id} still
	// resolves, modeling a job outside the active view page.
	emptyList bool
}

func (b *backend) setJob(id string, fields map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fields["id"] = id
	b.jobs[id] = fields
}

func (b *backend) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/events/stream":
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			flusher.Flush()
			b.mu.Lock()
			frames := b.frames
			hold := b.hold
			b.mu.Unlock()
			for _, f := range frames {
				fmt.Fprint(w, f)
				flusher.Flush()
			}
			if hold {
				<-r.Context().Done()
			}
		case r.URL.Path == "/jobs":
			b.mu.Lock()
			list := make([]map[string]interface{}, 0, len(b.jobs))
			if !b.emptyList {
				for _, j := range b.jobs {
					list = append(list, j)
				}
			}
			b.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jobs":  list,
				"total": len(list),
			})
		case strings.HasPrefix(r.URL.Path, "/jobs/"):
			id := strings.TrimPrefix(r.URL.Path, "/jobs/")
			b.mu.Lock()
			j, ok := b.jobs[id]
			b.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"not found"}`)
				return
			}
			json.NewEncoder(w).Encode(j)
		case r.URL.Path == "/users/me":
			fmt.Fprint(w, `{"user_id":"user-1","email":"me@example.com"}`)
		case r.URL.Path == "/health":
			fmt.Fprint(w, `{"status":"ok"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// memorySink records notifications in memory.
type memorySink struct {
	mu   sync.Mutex
	seen []notify.Notification
}

func (s *memorySink) Notify(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
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

func newTestWatcher(t *testing.T, b *backend) (*Watcher, *memorySink) {
	t.Helper()
	server := httptest.NewServer(b.handler(t))
	t.Cleanup(server.Close)

	sink := &memorySink{}
	w := New(Options{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		Sink:            sink,
		HealthStatePath: t.TempDir() + "/health.json",
	})
	return w, sink
}

func TestWatcherJobUpdateFlowsToCache(t *testing.T) {
	b := &backend{
		jobs: map[string]map[string]interface{}{},
		frames: []string{
			"event: connection_ready\ndata: {}\n\n",
			"event: job_update\ndata: {\"job_id\":\"j1\",\"status\":\"downloading\",\"progress\":0.4,\"timestamp\":1}\n\n",
		},
		hold: true,
	}
	b.setJob("j1", map[string]interface{}{
		"name": "archive example.com", "status": "downloading",
		"progress": 0.4, "owner": "user-1",
	})

	w, _ := newTestWatcher(t, b)
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, func() bool {
		jobs := w.Jobs()
		return len(jobs) == 1 && jobs[0].ID == "j1"
	}, "job never reached the cache")

	waitFor(t, func() bool { return w.State() == stream.Connected }, "never connected")
}

func TestWatcherNotifiesOnConfirmedFailure(t *testing.T) {
	b := &backend{
		jobs: map[string]map[string]interface{}{},
		frames: []string{
			"event: job_update\ndata: {\"job_id\":\"j2\",\"status\":\"failed\",\"retries_exhausted\":true,\"timestamp\":1}\n\n",
		},
		hold: true,
	}
	b.setJob("j2", map[string]interface{}{
		"name": "archive broken.example", "status": "failed",
		"retries_exhausted": true, "owner": "user-1",
		"error_message": "fetch timed out",
	})

	w, sink := newTestWatcher(t, b)
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, func() bool { return sink.count() == 1 }, "notification never emitted")
}

// TestWatcherAllJobsNotifiesOtherOwners covers notifications.all_jobs end to
// end: a confirmed failure owned by a different principal still notifies.
func TestWatcherAllJobsNotifiesOtherOwners(t *testing.T) {
	b := &backend{
		jobs: map[string]map[string]interface{}{},
		frames: []string{
			"event: job_update\ndata: {\"job_id\":\"j4\",\"status\":\"failed\",\"retries_exhausted\":true,\"timestamp\":1}\n\n",
		},
		hold: true,
	}
	b.setJob("j4", map[string]interface{}{
		"name": "archive shared.example", "status": "failed",
		"retries_exhausted": true, "owner": "user-2",
		"error_message": "fetch timed out",
	})

	server := httptest.NewServer(b.handler(t))
	t.Cleanup(server.Close)

	sink := &memorySink{}
	w := New(Options{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		Sink:            sink,
		HealthStatePath: t.TempDir() + "/health.json",
		Settings: &config.Settings{
			Notifications: config.NotificationSettings{AllJobs: true},
		},
	})
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, func() bool { return sink.count() == 1 }, "all-jobs notification never emitted")
}

func TestWatcherSurfacesUnknownEvents(t *testing.T) {
	b := &backend{
		jobs: map[string]map[string]interface{}{},
		frames: []string{
			"event: quota_warning\ndata: {\"remaining\":3}\n\n",
		},
		hold: true,
	}

	w, _ := newTestWatcher(t, b)
	w.Start(context.Background())
	defer w.Stop()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Kind == EventUnknownFrame {
				if ev.FrameEvent != "quota_warning" {
					t.Errorf("FrameEvent = %q, want quota_warning", ev.FrameEvent)
				}
				return
			}
		case <-deadline:
			t.Fatal("unknown frame event never surfaced")
		}
	}
}

func TestWatcherStopIsSynchronous(t *testing.T) {
	b := &backend{
		jobs: map[string]map[string]interface{}{},
		frames: []string{
			"event: job_update\ndata: {\"job_id\":\"j1\",\"status\":\"queued\",\"timestamp\":1}\n\n",
		},
		hold: true,
	}
	b.setJob("j1", map[string]interface{}{"name": "n", "status": "queued", "owner": "user-1"})

	w, _ := newTestWatcher(t, b)
	w.Start(context.Background())

	waitFor(t, func() bool { return w.State() == stream.Connected }, "never connected")

	w.Stop()
	if got := w.State(); got != stream.Disconnected {
		t.Errorf("State() after Stop = %q, want disconnected", got)
	}
}

func TestWatcherStatusFilterBlocksInsert(t *testing.T) {
	b := &backend{
		jobs: map[string]map[string]interface{}{},
		frames: []string{
			"event: job_update\ndata: {\"job_id\":\"j3\",\"status\":\"completed\",\"timestamp\":1}\n\n",
		},
		hold:      true,
		emptyList: true,
	}
	b.setJob("j3", map[string]interface{}{"name": "n", "status": "completed", "owner": "user-1"})

	server := httptest.NewServer(b.handler(t))
	t.Cleanup(server.Close)

	w := New(Options{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		Sink:            &memorySink{},
		HealthStatePath: t.TempDir() + "/health.json",
		Settings: &config.Settings{
			Watch: config.WatchSettings{Statuses: []string{"queued", "downloading"}},
		},
	})
	w.Start(context.Background())
	defer w.Stop()

	waitFor(t, func() bool { return w.State() == stream.Connected }, "never connected")

	// Completed jobs are outside the configured view; the update must not
	// pull one in.
	time.Sleep(200 * time.Millisecond)
	if jobs := w.Jobs(); len(jobs) != 0 {
		t.Errorf("Jobs() = %d entries, want 0 (filtered status)", len(jobs))
	}
}
