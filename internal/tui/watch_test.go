package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stashq/cli/internal/health"
	"github.com/stashq/cli/internal/notify"
	"github.com/stashq/cli/internal/stream"
	"github.com/stashq/cli/internal/watch"
)

func newTestModel(t *testing.T) watchModel {
	t.Helper()
	w := watch.New(watch.Options{
		BaseURL:         "http://127.0.0.1:0",
		APIKey:          "test-key",
		HealthStatePath: t.TempDir() + "/health.json",
	})
	return newWatchModel(w, "test")
}

func TestApplyStateChange(t *testing.T) {
	m := newTestModel(t)

	m.apply(watch.Event{Kind: watch.EventStateChanged, State: stream.Connected})
	if m.state != stream.Connected {
		t.Errorf("state = %q, want connected", m.state)
	}

	view := m.View()
	if !strings.Contains(view, "connected") {
		t.Error("view does not show connection state")
	}
}

func TestApplyNotificationBoundsHistory(t *testing.T) {
	m := newTestModel(t)

	for i := 0; i < maxNotificationLines+3; i++ {
		m.apply(watch.Event{
			Kind:         watch.EventNotification,
			Notification: &notify.Notification{JobID: "j", Title: "job failed"},
		})
	}
	if len(m.notifications) != maxNotificationLines {
		t.Errorf("notifications = %d lines, want %d", len(m.notifications), maxNotificationLines)
	}
}

func TestApplyHealthChange(t *testing.T) {
	m := newTestModel(t)

	m.apply(watch.Event{Kind: watch.EventHealthChanged, Verdict: health.TooManyRecentFailures})
	if m.verdict != health.TooManyRecentFailures {
		t.Errorf("verdict = %q, want too_many_recent_failures", m.verdict)
	}
}

func TestUnknownEventsCounted(t *testing.T) {
	m := newTestModel(t)

	m.apply(watch.Event{Kind: watch.EventUnknownFrame, FrameEvent: "quota_warning"})
	m.apply(watch.Event{Kind: watch.EventUnknownFrame, FrameEvent: "quota_warning"})
	if m.unknownEvents != 2 {
		t.Errorf("unknownEvents = %d, want 2", m.unknownEvents)
	}
	if !strings.Contains(m.View(), "2 unknown events") {
		t.Error("view does not surface unknown event count")
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		t.Run(key, func(t *testing.T) {
			m := newTestModel(t)

			var msg tea.KeyMsg
			switch key {
			case "ctrl+c":
				msg = tea.KeyMsg{Type: tea.KeyCtrlC}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			default:
				msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			}

			updated, cmd := m.Update(msg)
			if cmd == nil {
				t.Fatal("expected quit command")
			}
			if !updated.(watchModel).quitting {
				t.Error("quitting = false after quit key")
			}
		})
	}
}

func TestShouldRunTUIQuietGate(t *testing.T) {
	if ShouldRunTUI(true) {
		t.Error("ShouldRunTUI(quiet=true) = true, want false")
	}
}
