package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/khudiiash/three-ediitor/pkg/aggregator"
	"github.com/khudiiash/three-ediitor/pkg/state"
	"github.com/khudiiash/three-ediitor/pkg/surface"
	"github.com/khudiiash/three-ediitor/pkg/wire"
)

const (
	refreshInterval = 250 * time.Millisecond
	recentLimit     = 8
)

// controller is the part of the bridge the monitor drives.
type controller interface {
	State() state.Reader
	Send(cmd wire.Command) error
	RelayAddr() string
	RelayError() error
}

type keyMap struct {
	Quit    key.Binding
	Play    key.Binding
	Refresh key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Play:    key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "play/stop")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "request scene")),
	}
}

type notificationMsg surface.Notification

type notesClosedMsg struct{}

type refreshMsg time.Time

// monitorModel is the terminal editor surface: it shows the shared state and
// the latest engine traffic, and sends play and scene requests.
type monitorModel struct {
	ctl   controller
	notes <-chan surface.Notification
	keys  keyMap

	snap   state.Snapshot
	stats  aggregator.FrameStats
	recent []string
	err    error
	width  int
}

func newMonitorModel(ctl controller, notes <-chan surface.Notification) monitorModel {
	return monitorModel{
		ctl:   ctl,
		notes: notes,
		keys:  defaultKeyMap(),
		snap:  ctl.State().Snapshot(),
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(waitNotification(m.notes), refreshTick())
}

func waitNotification(notes <-chan surface.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-notes
		if !ok {
			return notesClosedMsg{}
		}
		return notificationMsg(n)
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Play):
			m.err = m.ctl.Send(wire.SetPlayMode{Playing: !m.ctl.State().Playing()})
			m.snap = m.ctl.State().Snapshot()
		case key.Matches(msg, m.keys.Refresh):
			m.err = m.ctl.Send(wire.GetSceneState{})
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case notificationMsg:
		switch msg.Name {
		case aggregator.FrameStatsNotification:
			if fs, ok := msg.Payload.(aggregator.FrameStats); ok {
				m.stats = fs
			}
		case aggregator.EngineMessageNotification:
			if s, ok := msg.Payload.(string); ok {
				m.recent = append(m.recent, s)
				if len(m.recent) > recentLimit {
					m.recent = m.recent[len(m.recent)-recentLimit:]
				}
			}
		}
		return m, waitNotification(m.notes)

	case notesClosedMsg:
		return m, tea.Quit

	case refreshMsg:
		m.snap = m.ctl.State().Snapshot()
		return m, refreshTick()
	}

	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("three-editor"))
	b.WriteString("\n\n")

	conn := disconnectedStyle.Render("● disconnected")
	if m.snap.Connected {
		conn = connectedStyle.Render("● connected")
	}
	mode := dimStyle.Render("editing")
	if m.snap.Playing {
		mode = playingStyle.Render("playing")
	}
	fmt.Fprintf(&b, "%s  %s\n", conn, mode)

	relayLine := "relay " + m.ctl.RelayAddr()
	if err := m.ctl.RelayError(); err != nil {
		relayLine = errorStyle.Render("relay unavailable: " + err.Error())
	}
	b.WriteString(dimStyle.Render(relayLine))
	b.WriteString("\n")

	fmt.Fprintf(&b, "fps %d  entities %d (cached %d)\n\n", m.stats.FPS, m.stats.EntityCount, len(m.snap.Entities))

	b.WriteString(labelStyle.Render("engine messages"))
	b.WriteString("\n")
	if len(m.recent) == 0 {
		b.WriteString(dimStyle.Render("  none yet"))
		b.WriteString("\n")
	}
	for _, line := range m.recent {
		b.WriteString("  ")
		b.WriteString(truncateLine(line, m.width-2))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(helpLine(m.keys.Play, m.keys.Refresh, m.keys.Quit)))

	return b.String()
}

func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// truncateLine shortens s to width runes, or leaves it alone when width is
// unknown.
func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}

	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
