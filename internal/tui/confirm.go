package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// confirmModel is a yes/no prompt run as its own program before a
// destructive step (restoring over an existing profile).
//
// Navigation: left/right/tab/shift+tab move focus between Yes and No.
// Enter activates the focused button. y/n/esc are shortcut accelerators.
// The program quits as soon as the user answers.
type confirmModel struct {
	active    bool
	message   string
	focusYes  bool // true = Yes focused, false = No focused.
	answered  bool
	confirmed bool

	width  int
	height int
}

func newConfirmModel() confirmModel {
	return confirmModel{}
}

// show activates the prompt. Focus defaults to No.
func (m confirmModel) show(message string) confirmModel {
	m.active = true
	m.message = message
	m.focusYes = false
	m.answered = false
	m.confirmed = false
	return m
}

// answer records the response and ends the prompt.
func (m confirmModel) answer(yes bool) (confirmModel, tea.Cmd) {
	m.active = false
	m.answered = true
	m.confirmed = yes
	return m, tea.Quit
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd, _ := m.update(msg)
	return m, cmd
}

// update handles key input while the prompt is active. It reports whether
// the message was consumed.
func (m confirmModel) update(msg tea.Msg) (confirmModel, tea.Cmd, bool) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
		return m, nil, false
	}
	if !m.active {
		return m, nil, false
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil, false
	}

	switch {
	case key.Matches(keyMsg, confirmYesKey):
		m, cmd := m.answer(true)
		return m, cmd, true

	case key.Matches(keyMsg, confirmNoKey),
		key.Matches(keyMsg, keys.Back),
		key.Matches(keyMsg, keys.Abort):
		m, cmd := m.answer(false)
		return m, cmd, true

	case key.Matches(keyMsg, keys.Enter):
		m, cmd := m.answer(m.focusYes)
		return m, cmd, true

	case key.Matches(keyMsg, confirmLeft), key.Matches(keyMsg, confirmRight),
		key.Matches(keyMsg, confirmTab), key.Matches(keyMsg, confirmShiftTab):
		m.focusYes = !m.focusYes
		return m, nil, true
	}

	// Swallow everything else while the prompt is up.
	return m, nil, true
}

func (m confirmModel) View() string {
	return m.view()
}

// view renders a bordered dialog with the question and Yes / No buttons,
// centered when the terminal size is known.
func (m confirmModel) view() string {
	if !m.active {
		return ""
	}

	question := lipgloss.NewStyle().
		Width(48).
		Align(lipgloss.Center).
		Render(m.message)

	var yesBtn, noBtn string
	if m.focusYes {
		yesBtn = dialogActiveButtonStyle.Render("Yes")
		noBtn = dialogButtonStyle.Render("No")
	} else {
		yesBtn = dialogButtonStyle.Render("Yes")
		noBtn = dialogActiveButtonStyle.Render("No")
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Top, yesBtn, "  ", noBtn)
	ui := lipgloss.JoinVertical(lipgloss.Center, question, "", buttons)
	dialog := dialogBoxStyle.Render(ui)

	if m.width <= 0 || m.height <= 0 {
		return dialog
	}
	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		dialog,
	)
}

// Key bindings for the prompt (not part of the global keyMap).
var (
	confirmYesKey = key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "confirm"),
	)
	confirmNoKey = key.NewBinding(
		key.WithKeys("n", "N"),
		key.WithHelp("n", "cancel"),
	)
	confirmLeft = key.NewBinding(
		key.WithKeys("left", "h"),
	)
	confirmRight = key.NewBinding(
		key.WithKeys("right", "l"),
	)
	confirmTab = key.NewBinding(
		key.WithKeys("tab"),
	)
	confirmShiftTab = key.NewBinding(
		key.WithKeys("shift+tab"),
	)
)
