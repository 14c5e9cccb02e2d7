// Package tui provides the live job monitor model.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stashq/cli/internal/api"
	"github.com/stashq/cli/internal/health"
	"github.com/stashq/cli/internal/jobs"
	"github.com/stashq/cli/internal/stream"
	"github.com/stashq/cli/internal/watch"
)

// maxNotificationLines bounds the notification history shown on screen.
const maxNotificationLines = 5

// watchModel manages the state of the live job monitor.
type watchModel struct {
	// watcher is the subsystem facade; the model reads all state from it.
	watcher *watch.Watcher

	// version is the CLI version string for the header.
	version string

	// state is the last observed connection state.
	state stream.State

	// verdict is the last observed health verdict.
	verdict health.Verdict

	// jobList is the current cached job snapshot, newest first.
	jobList []api.Job

	// notifications holds the most recent failure notification lines.
	notifications []string

	// unknownEvents counts frames with unrecognized event names.
	unknownEvents int

	// startTime records when the monitor started for uptime display.
	startTime time.Time

	// spinner provides visual activity feedback while connecting.
	spinner spinner.Model

	// width and height track terminal dimensions.
	width  int
	height int

	// quitting suppresses the final repaint on exit.
	quitting bool
}

// watchEventMsg carries one facade event into the Update loop.
type watchEventMsg struct {
	ev watch.Event
}

// eventsClosedMsg signals that the facade stopped producing events.
type eventsClosedMsg struct{}

// newWatchModel creates the live monitor model.
func newWatchModel(w *watch.Watcher, version string) watchModel {
	return watchModel{
		watcher:   w,
		version:   version,
		state:     w.State(),
		verdict:   w.Health(),
		jobList:   w.Jobs(),
		startTime: time.Now(),
		spinner:   newSpinner(),
	}
}

// waitForEventCmd reads one facade event. Each delivery re-issues itself so
// the model receives a continuous stream -- the standard Bubble Tea
// channel-draining pattern.
func waitForEventCmd(ch <-chan watch.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return watchEventMsg{ev: ev}
	}
}

// Init starts the spinner and the event read chain.
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEventCmd(m.watcher.Events()))
}

// Update handles key presses, facade events, and spinner ticks.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watchEventMsg:
		m.apply(msg.ev)
		return m, waitForEventCmd(m.watcher.Events())

	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one facade event into the model. The job list and verdict are
// re-read from the facade rather than patched incrementally; the facade owns
// the authoritative state.
func (m *watchModel) apply(ev watch.Event) {
	switch ev.Kind {
	case watch.EventStateChanged:
		m.state = ev.State
	case watch.EventJobsChanged:
		m.jobList = m.watcher.Jobs()
	case watch.EventHealthChanged:
		m.verdict = ev.Verdict
	case watch.EventNotification:
		if ev.Notification != nil {
			line := fmt.Sprintf("%s  %s", time.Now().Format("15:04:05"), ev.Notification.Title)
			m.notifications = append(m.notifications, line)
			if len(m.notifications) > maxNotificationLines {
				m.notifications = m.notifications[len(m.notifications)-maxNotificationLines:]
			}
		}
	case watch.EventUnknownFrame:
		m.unknownEvents++
	}
}

// View renders the monitor.
func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width <= 0 {
		width = 80
	}

	s := titleStyle.Render("STASHQ") + dimStyle.Render("  watch "+m.version) + "\n"
	s += m.statusLine() + "\n"
	s += separator(width) + "\n"

	s += sectionStyle.Render("Jobs") + "\n"
	if len(m.jobList) == 0 {
		s += dimStyle.Render("  no jobs in view") + "\n"
	}
	for _, j := range m.jobList {
		s += m.jobLine(&j) + "\n"
	}

	if len(m.notifications) > 0 {
		s += sectionStyle.Render("Notifications") + "\n"
		for _, n := range m.notifications {
			s += errorStyle.Render("  ✗ ") + normalStyle.Render(n) + "\n"
		}
	}

	s += "\n" + helpStyle.Render("q quit")
	return s
}

// statusLine renders the connection indicator, health verdict, and uptime.
func (m watchModel) statusLine() string {
	var conn string
	switch m.state {
	case stream.Connected:
		conn = successStyle.Render("● connected")
	case stream.Connecting:
		conn = warningStyle.Render(m.spinner.View() + "connecting")
	default:
		conn = errorStyle.Render("○ disconnected")
	}

	var verdict string
	if m.verdict == health.Healthy {
		verdict = successStyle.Render(m.verdict.String())
	} else {
		verdict = warningStyle.Render(m.verdict.String())
	}

	line := conn + dimStyle.Render("  │  ") + verdict
	line += dimStyle.Render(fmt.Sprintf("  │  up %s", time.Since(m.startTime).Round(time.Second)))
	if m.unknownEvents > 0 {
		line += dimStyle.Render(fmt.Sprintf("  │  %d unknown events", m.unknownEvents))
	}
	return line
}

// jobLine renders one job row: icon, name, status, progress, error.
func (m watchModel) jobLine(j *api.Job) string {
	icon := jobs.StatusIcon(j.Status)
	style := dimStyle
	switch jobs.StatusCategory(j.Status) {
	case "info":
		style = runningStyle
	case "warning":
		style = warningStyle
	case "success":
		style = successStyle
	case "error":
		style = errorStyle
	}

	name := j.Name
	if name == "" {
		name = j.URL
	}
	if name == "" {
		name = j.ID
	}

	line := fmt.Sprintf("  %s %-40s %s", style.Render(icon), name, style.Render(j.Status))
	if jobs.IsActive(j.Status) {
		line += dimStyle.Render(fmt.Sprintf("  %3.0f%%", j.Progress*100))
	}
	if j.ErrorMessage != "" {
		line += "  " + errorStyle.Render(j.ErrorMessage)
	}
	return line
}

// RunWatch launches the live monitor over an already-started facade. The
// caller owns the facade lifecycle; this blocks until the user quits.
//
// Parameters:
//   - w: the started watch facade
//   - version: the CLI version string for display
//
// Returns:
//   - error: any error from the Bubble Tea runtime
func RunWatch(w *watch.Watcher, version string) error {
	p := tea.NewProgram(
		newWatchModel(w, version),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
