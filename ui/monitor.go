// Package ui is the terminal serial monitor: a scrolling, tag highlighted view of the raw stream with a send
// box, driven by the same engine and connection as the web dashboard.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"livegraph/connection"
	"livegraph/drivers"
	"livegraph/events"
	"livegraph/graph"
	"livegraph/models"
)

const (
	HISTORY_LINES = 1000
	CHROME_HEIGHT = 4
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d0d0d0")).Background(lipgloss.Color("#21252b"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d02662"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

type eventMsg struct{ event *events.Event }

type connectedMsg struct{ err error }

type Monitor struct {
	engine *graph.Engine
	conn   *connection.Manager
	baud   int

	events <-chan *events.Event
	cancel func()

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	notice   string
}

func NewMonitor(engine *graph.Engine, conn *connection.Manager, baud int) *Monitor {
	in := textinput.New()
	in.Placeholder = "Type and press Enter to send"
	in.Prompt = "> "
	in.CharLimit = 256
	in.Focus()

	_, ch, cancel := engine.Hub().Subscribe()
	return &Monitor{
		engine: engine,
		conn:   conn,
		baud:   baud,
		events: ch,
		cancel: cancel,
		input:  in,
	}
}

// Close drops the monitor's hub subscription.
func (m *Monitor) Close() {
	m.cancel()
}

func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

func (m *Monitor) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg{event}
	}
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - CHROME_HEIGHT
		if height < 1 {
			height = 1
		}
		m.viewport = viewport.New(msg.Width, height)
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.ready = true
		m.refresh()
		return m, nil
	case eventMsg:
		if msg.event.Kind == events.Monitor {
			m.refresh()
		}
		return m, m.waitForEvent()
	case connectedMsg:
		m.setNotice(msg.err)
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *Monitor) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		m.send()
		return m, nil
	case "ctrl+o":
		return m, m.toggleConnection()
	case "ctrl+l":
		m.engine.ClearMonitor()
		m.refresh()
		return m, nil
	case "ctrl+r":
		m.toggleRecording()
		return m, nil
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Monitor) send() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	err := m.engine.Send(m.conn, text)
	m.setNotice(err)
	if err == nil {
		m.input.SetValue("")
		m.refresh()
	}
}

func (m *Monitor) toggleConnection() tea.Cmd {
	if m.conn.State() != models.Disconnected {
		m.conn.Disconnect()
		return nil
	}
	conn, baud := m.conn, m.baud
	return func() tea.Msg {
		return connectedMsg{conn.Connect(context.Background(), drivers.PortConfig{BaudRate: baud})}
	}
}

func (m *Monitor) toggleRecording() {
	var (
		path string
		err  error
	)
	if m.engine.Snapshot().LogRecording != "" {
		path, err = m.engine.StopLogRecording()
		if err == nil {
			m.notice = "saved " + path
			return
		}
	} else {
		path, err = m.engine.StartLogRecording()
		if err == nil {
			m.notice = "recording to " + path
			return
		}
	}
	m.setNotice(err)
}

func (m *Monitor) setNotice(err error) {
	switch {
	case err == nil:
		m.notice = ""
	case errors.Is(err, drivers.ErrTransportUnavailable):
		m.notice = "no device found"
	default:
		m.notice = err.Error()
	}
}

// refresh re-renders the history, staying pinned to the bottom unless the user scrolled up.
func (m *Monitor) refresh() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	lines, _ := m.engine.MonitorTail(HISTORY_LINES)
	m.viewport.SetContent(renderLines(lines))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func renderLines(lines []graph.MonitorLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, segment := range line {
			if segment.Colour == "" {
				b.WriteString(segment.Text)
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(segment.Colour)).Render(segment.Text))
		}
	}
	return b.String()
}

func (m *Monitor) View() string {
	if !m.ready {
		return "starting…"
	}
	return strings.Join([]string{
		m.viewport.View(),
		m.input.View(),
		statusStyle.Width(m.viewport.Width).Render(m.status()),
		noticeStyle.Render(m.notice) + helpStyle.Render("  ctrl+o connect · ctrl+r record · ctrl+l clear · esc quit"),
	}, "\n")
}

func (m *Monitor) status() string {
	snapshot := m.engine.Snapshot()
	parts := []string{stateLabel(snapshot.State), strconv.Itoa(m.baud) + " baud", m.conn.Transport().Name()}
	if snapshot.LogRecording != "" {
		parts = append(parts, "REC")
	}
	if len(snapshot.Latest) > 0 {
		values := make([]string, len(snapshot.Latest))
		for i, v := range snapshot.Latest {
			values[i] = fmt.Sprintf("%.3f", v)
		}
		parts = append(parts, strings.Join(values, " "))
	}
	return strings.Join(parts, " | ")
}

func stateLabel(state models.ConnectionState) string {
	switch state {
	case models.Connected:
		return "Connected"
	case models.Connecting:
		return "Connecting"
	case models.Closing:
		return "Disconnecting"
	}
	return "Disconnected"
}
