// Package tui renders the live progress view of an execution.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/pkg/core"
)

const (
	maxBarWidth = 60
	logHeight   = 10
)

// Monitor is the live execution state the view reads from.
type Monitor interface {
	ID() int64
	Snapshot() (core.Progress, bool)
	Logs() (*core.LogPage, error)
	Err() error
	Updates() (<-chan struct{}, func())
	Done() <-chan struct{}
	Cancel(ctx context.Context) error
}

type (
	updateMsg struct{}
	doneMsg   struct{}
	cancelMsg struct{ err error }
)

type keyMap struct {
	Quit    key.Binding
	Cancel  key.Binding
	Confirm key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "detach")),
	Cancel:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel execution")),
	Confirm: key.NewBinding(key.WithKeys("y", "Y")),
}

// WatchModel is a bubbletea model following one execution until it ends.
type WatchModel struct {
	ctx         context.Context
	mon         Monitor
	updates     <-chan struct{}
	unsubscribe func()
	styles      *output.Styles

	bar  progress.Model
	logs viewport.Model

	snapshot   core.Progress
	received   bool
	finished   bool
	confirming bool
	detached   bool
	cancelErr  error
}

// NewWatchModel subscribes to mon. The subscription ends when the program exits.
func NewWatchModel(ctx context.Context, mon Monitor, styles *output.Styles) *WatchModel {
	updates, unsubscribe := mon.Updates()
	return &WatchModel{
		ctx:         ctx,
		mon:         mon,
		updates:     updates,
		unsubscribe: unsubscribe,
		styles:      styles,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		logs:        viewport.New(80, logHeight),
	}
}

// Init implements tea.Model.
func (m *WatchModel) Init() tea.Cmd {
	m.refresh()
	return m.wait()
}

// wait blocks until the monitor publishes a change or finishes.
func (m *WatchModel) wait() tea.Cmd {
	updates, done := m.updates, m.mon.Done()
	return func() tea.Msg {
		select {
		case <-done:
			return doneMsg{}
		case _, ok := <-updates:
			if !ok {
				return doneMsg{}
			}
			return updateMsg{}
		}
	}
}

func (m *WatchModel) cancel() tea.Cmd {
	return func() tea.Msg {
		return cancelMsg{err: m.mon.Cancel(m.ctx)}
	}
}

// Update implements tea.Model.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(maxBarWidth, max(msg.Width-4, 10))
		m.logs.Width = msg.Width
		return m, nil

	case updateMsg:
		m.refresh()
		return m, m.wait()

	case doneMsg:
		m.refresh()
		m.finish()
		return m, nil

	case cancelMsg:
		m.cancelErr = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.finished {
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		m.confirming = false
		if key.Matches(msg, keys.Confirm) {
			return m, m.cancel()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		if !m.finished {
			m.detached = true
		}
		m.unsubscribe()
		return m, tea.Quit
	case key.Matches(msg, keys.Cancel) && !m.finished:
		m.confirming = true
		m.cancelErr = nil
		return m, nil
	}

	if m.finished {
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) refresh() {
	m.snapshot, m.received = m.mon.Snapshot()
}

func (m *WatchModel) finish() {
	m.finished = true
	m.confirming = false
	m.unsubscribe()

	page, err := m.mon.Logs()
	switch {
	case err != nil:
		m.logs.SetContent(m.styles.Error.Render("Failed to fetch logs: " + err.Error()))
	case page == nil || len(page.Logs) == 0:
		m.logs.SetContent(m.styles.Muted.Render("No delivery logs"))
	default:
		m.logs.SetContent(FormatLogs(page.Logs))
		m.logs.Height = min(logHeight, len(page.Logs))
	}
}

// View implements tea.Model.
func (m *WatchModel) View() string {
	var sb strings.Builder

	status := core.ExecutionQueued
	if m.received {
		status = m.snapshot.Status
	}
	title := m.styles.Header1.Render(fmt.Sprintf("Execution #%d", m.mon.ID()))
	badge := m.styles.Status(string(status)).Render(strings.ToUpper(string(status)))
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", badge))
	sb.WriteString("\n\n")

	if !m.received {
		sb.WriteString(m.styles.Muted.Render("Waiting for the first progress update..."))
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(m.bar.ViewAs(clampPercent(m.snapshot.Percent())))
		sb.WriteString("\n")
		sb.WriteString(Counters(m.snapshot))
		sb.WriteString("\n")
		if m.snapshot.Error != "" {
			sb.WriteString(m.styles.Error.Render(m.snapshot.Error))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if err := m.mon.Err(); err != nil {
		sb.WriteString(m.styles.Warning.Render(err.Error()))
		sb.WriteString("\n\n")
	}
	if m.cancelErr != nil {
		sb.WriteString(m.styles.Error.Render("Cancel failed: " + m.cancelErr.Error()))
		sb.WriteString("\n\n")
	}

	switch {
	case m.finished:
		sb.WriteString(m.styles.Header2.Render("Delivery logs"))
		sb.WriteString("\n")
		sb.WriteString(m.logs.View())
		sb.WriteString("\n\n")
		sb.WriteString(m.styles.Muted.Render("q quit · ↑/↓ scroll"))
	case m.confirming:
		sb.WriteString(m.styles.Warning.Render(fmt.Sprintf("Cancel execution #%d? (y/N)", m.mon.ID())))
	default:
		sb.WriteString(m.styles.Muted.Render("q detach · c cancel execution"))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Detached reports whether the user left before the execution ended.
func (m *WatchModel) Detached() bool {
	return m.detached
}

// Finished reports whether the execution ended while the view was open.
func (m *WatchModel) Finished() bool {
	return m.finished
}

// Counters formats the processed and outcome counts of p.
func Counters(p core.Progress) string {
	return fmt.Sprintf("Processed %d/%d (%.0f%%) · Success %d · Failed %d",
		p.Processed, p.Total, p.Percent(), p.Success, p.Failed)
}

// FormatLogs renders log entries one per line.
func FormatLogs(entries []core.LogEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		line := fmt.Sprintf("%-10s %s", e.Status, e.Recipient)
		if e.RetryCount > 0 {
			line += fmt.Sprintf(" (retries: %d)", e.RetryCount)
		}
		if e.Error != "" {
			line += "  " + e.Error
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func clampPercent(pct float64) float64 {
	return min(max(pct/100, 0), 1)
}
