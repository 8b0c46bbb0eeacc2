// Package tui renders an inline spinner while a generation task is polled.
// It stays out of the way of plain stdout: the program runs without the alt
// screen and leaves nothing behind once the task settles.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusMsg updates the line shown next to the spinner.
type StatusMsg struct {
	Text string
}

// DoneMsg tells the monitor to clear itself and exit.
type DoneMsg struct{}

var (
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	elapsedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type progressModel struct {
	spinner spinner.Model
	status  string
	start   time.Time
	done    bool
	cancel  context.CancelFunc
}

func newProgressModel(cancel context.CancelFunc, status string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return progressModel{
		spinner: s,
		status:  status,
		start:   time.Now(),
		cancel:  cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.cancel != nil {
				m.cancel()
			}
			m.done = true
			return m, tea.Quit
		}
	case StatusMsg:
		m.status = msg.Text
		return m, nil
	case DoneMsg:
		m.done = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	elapsed := time.Since(m.start).Round(time.Second)
	line := fmt.Sprintf("%s %s", m.spinner.View(), statusStyle.Render(m.status))
	line += elapsedStyle.Render(fmt.Sprintf(" (%s)", elapsed))
	return line + "\n"
}

// Monitor runs the spinner program and accepts status updates from the
// goroutine doing the actual polling.
type Monitor struct {
	prog   *tea.Program
	doneCh chan struct{}
	runErr error
}

// NewMonitor builds a monitor showing status until the first update arrives.
// Pressing ctrl+c or esc cancels via cancel.
func NewMonitor(cancel context.CancelFunc, status string) *Monitor {
	return &Monitor{
		prog:   tea.NewProgram(newProgressModel(cancel, status)),
		doneCh: make(chan struct{}),
	}
}

// Start launches the program; it renders until Stop or a quit key.
func (m *Monitor) Start() {
	go func() {
		_, m.runErr = m.prog.Run()
		close(m.doneCh)
	}()
}

// Update pushes a new status line into the running program.
func (m *Monitor) Update(text string) {
	m.prog.Send(StatusMsg{Text: text})
}

// Stop clears the spinner and waits for the program to exit.
func (m *Monitor) Stop() error {
	m.prog.Send(DoneMsg{})
	<-m.doneCh
	return m.runErr
}
