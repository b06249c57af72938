package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/juju/loggo"

	"github.com/barysiuk/profiler/internal/core"
)

var logger = loggo.GetLogger("profiler.tui")

const defaultBarWidth = 48

// --- Messages ---

type phaseStartMsg struct {
	title string
	total int
}

type phaseUpdateMsg struct {
	done    int
	message string
}

type phaseDoneMsg struct{}

type workDoneMsg struct {
	err error
}

// teaProgress implements core.Progress by forwarding every call to a
// running program. Cancelled is answered from a flag the model sets when
// the user presses esc.
type teaProgress struct {
	send      func(tea.Msg)
	cancelled atomic.Bool
}

func (p *teaProgress) Start(title string, total int) {
	p.cancelled.Store(false)
	p.send(phaseStartMsg{title: title, total: total})
}

func (p *teaProgress) Update(done int, message string) {
	p.send(phaseUpdateMsg{done: done, message: message})
}

func (p *teaProgress) Cancelled() bool {
	return p.cancelled.Load()
}

func (p *teaProgress) Done() {
	p.send(phaseDoneMsg{})
}

// progressModel renders one reconciliation phase at a time: a title, a bar,
// the item being handled and a status line.
type progressModel struct {
	width int

	title   string
	current string
	total   int
	done    int

	bar     progress.Model
	spinner spinner.Model
	status  statusBarModel
	help    help.Model

	cancel *atomic.Bool       // shared with teaProgress
	stop   context.CancelFunc // aborts the whole run

	finished bool
	stopping bool
	err      error
}

func newProgressModel(cancel *atomic.Bool, stop context.CancelFunc) progressModel {
	h := help.New()
	h.ShortSeparator = "  |  "

	return progressModel{
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(defaultBarWidth),
		),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
		status: newStatusBarModel(),
		help:   h,
		cancel: cancel,
		stop:   stop,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.status.width = msg.Width
		m.bar.Width = min(defaultBarWidth, max(10, msg.Width-8))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Cancel):
			if m.total > 0 && !m.cancel.Load() {
				m.cancel.Store(true)
				m.status = m.status.pinMsg("Skipping the rest of "+strings.ToLower(m.title), statusWarning)
			}
			return m, nil
		case key.Matches(msg, keys.Abort):
			if !m.stopping {
				m.stopping = true
				m.cancel.Store(true)
				if m.stop != nil {
					m.stop()
				}
				m.status = m.status.pinMsg("Stopping", statusError)
			}
			return m, nil
		}
		return m, nil

	case phaseStartMsg:
		m.title = msg.title
		m.total = msg.total
		m.done = 0
		m.current = ""
		var cmd tea.Cmd
		m.status, cmd = m.status.startPhase(msg.total)
		return m, cmd

	case phaseUpdateMsg:
		m.done = msg.done
		m.current = msg.message
		m.status = m.status.advance(msg.done)
		return m, nil

	case phaseDoneMsg:
		m.done = m.total
		m.current = ""
		m.status = m.status.endPhase()
		if m.status.msg == "" {
			var cmd tea.Cmd
			m.status, cmd = m.status.showMsg(m.title+" done", statusSuccess)
			return m, cmd
		}
		return m, nil

	case workDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		m.status, cmd = m.status.update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case statusDismissMsg:
		var cmd tea.Cmd
		m.status, cmd = m.status.update(msg)
		return m, cmd
	}

	return m, nil
}

// percent returns the bar position for the current phase.
func (m progressModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}

	var b strings.Builder
	title := m.title
	if title == "" {
		title = "Preparing"
	}
	b.WriteString(logoStyle.Render("Profiler") + headerTitleStyle.Render(title) + "\n\n")

	b.WriteString(m.bar.ViewAs(m.percent()) + "\n")
	if m.current != "" {
		b.WriteString(m.spinner.View() + mutedStyle.Render(m.current) + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.status.view(m.help.ShortHelpView(progressHelp())))
	return b.String()
}

// Run executes work while rendering its progress on out, reading keys from
// in (nil disables input). Pressing esc cancels the current phase; ctrl+c
// cancels the context passed to work. Run returns once work has returned.
func Run(ctx context.Context, in io.Reader, out io.Writer, work func(ctx context.Context, p core.Progress) error) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	prog := &teaProgress{}
	model := newProgressModel(&prog.cancelled, stop)
	p := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out))
	prog.send = p.Send

	errc := make(chan error, 1)
	go func() {
		err := work(ctx, prog)
		errc <- err
		p.Send(workDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		// The work keeps going without a display.
		logger.Warningf("progress display: %v", err)
	}
	return <-errc
}

// Confirm asks a yes/no question and returns the answer. esc and n answer
// no.
func Confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	m := newConfirmModel().show(question)
	final, err := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return final.(confirmModel).confirmed, nil
}
