package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// statusMsgKind defines the visual style of a status message.
type statusMsgKind int

const (
	statusSuccess statusMsgKind = iota
	statusError
	statusWarning
)

// statusAutoDismiss is how long transient messages stay visible.
const statusAutoDismiss = 3 * time.Second

// statusBarModel is the line under the progress bar.
//
// Layout: [left: message] [center: help keybindings] [right: phase counter]
//
// A message replaces the help while it is shown. Transient messages go away
// after statusAutoDismiss; pinned ones stay until the next phase starts.
type statusBarModel struct {
	width int

	// Left zone.
	msg     string
	msgKind statusMsgKind
	pinned  bool
	msgID   int // Monotonic; used to ignore stale dismiss timers.
	nextID  int

	// Right zone: items handled in the current phase.
	total   int
	done    int
	running bool
	spinner spinner.Model
}

// statusDismissMsg is sent by the auto-dismiss timer.
type statusDismissMsg struct {
	id int
}

func newStatusBarModel() statusBarModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)
	return statusBarModel{
		spinner: s,
	}
}

// showMsg displays a transient message in the left zone.
func (m statusBarModel) showMsg(text string, kind statusMsgKind) (statusBarModel, tea.Cmd) {
	m = m.setMsg(text, kind)
	m.pinned = false

	id := m.msgID
	cmd := tea.Tick(statusAutoDismiss, func(_ time.Time) tea.Msg {
		return statusDismissMsg{id: id}
	})
	return m, cmd
}

// pinMsg displays a message that stays until the next phase starts.
func (m statusBarModel) pinMsg(text string, kind statusMsgKind) statusBarModel {
	m = m.setMsg(text, kind)
	m.pinned = true
	return m
}

func (m statusBarModel) setMsg(text string, kind statusMsgKind) statusBarModel {
	m.msg = text
	m.msgKind = kind
	m.msgID = m.nextID
	m.nextID++
	return m
}

// dismissMsg clears the message.
func (m statusBarModel) dismissMsg() statusBarModel {
	m.msg = ""
	m.pinned = false
	return m
}

// startPhase resets the counter and clears any pinned message. The returned
// command starts the spinner.
func (m statusBarModel) startPhase(total int) (statusBarModel, tea.Cmd) {
	m.total = total
	m.done = 0
	if m.pinned {
		m = m.dismissMsg()
	}
	wasRunning := m.running
	m.running = true
	if wasRunning {
		return m, nil
	}
	return m, m.spinner.Tick
}

// advance records progress within the current phase.
func (m statusBarModel) advance(done int) statusBarModel {
	if done > m.total {
		done = m.total
	}
	m.done = done
	return m
}

// endPhase stops the spinner.
func (m statusBarModel) endPhase() statusBarModel {
	m.running = false
	m.done = m.total
	return m
}

// update handles status bar messages.
func (m statusBarModel) update(msg tea.Msg) (statusBarModel, tea.Cmd) {
	switch msg := msg.(type) {
	case statusDismissMsg:
		if msg.id == m.msgID && !m.pinned {
			m = m.dismissMsg()
		}
		return m, nil

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

// view renders the status bar.
func (m statusBarModel) view(helpContent string) string {
	left := m.renderLeft()
	if left == "" {
		left = helpContent
	}
	right := m.renderRight()
	if right == "" {
		return left
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	return left + fmt.Sprintf("%*s%s", gap, "", right)
}

// renderLeft renders the message zone.
func (m statusBarModel) renderLeft() string {
	if m.msg == "" {
		return ""
	}

	switch m.msgKind {
	case statusSuccess:
		return statusSuccessStyle.Render("✓ " + m.msg)
	case statusError:
		return statusErrorStyle.Render("✗ " + m.msg)
	case statusWarning:
		return statusWarningStyle.Render("⚠ " + m.msg)
	}

	return ""
}

// renderRight renders the phase counter.
func (m statusBarModel) renderRight() string {
	if m.total == 0 {
		return ""
	}
	counter := fmt.Sprintf("%d/%d", m.done, m.total)
	if !m.running {
		return statusTaskStyle.Render(counter)
	}
	return statusTaskStyle.Render(m.spinner.View() + counter)
}
