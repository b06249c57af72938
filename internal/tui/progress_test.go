package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/barysiuk/profiler/internal/core"
)

func step(t *testing.T, m progressModel, msg tea.Msg) (progressModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(progressModel)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return pm, cmd
}

func TestProgressModel_Phase(t *testing.T) {
	var cancelled atomic.Bool
	m := newProgressModel(&cancelled, nil)

	m, _ = step(t, m, phaseStartMsg{title: "Installing add-ons", total: 4})
	m, _ = step(t, m, phaseUpdateMsg{done: 1, message: "plugin.two"})

	if got := m.percent(); got != 0.25 {
		t.Errorf("percent() = %v, want 0.25", got)
	}
	v := m.View()
	for _, want := range []string{"Installing add-ons", "plugin.two", "1/4"} {
		if !strings.Contains(v, want) {
			t.Errorf("View() missing %q:\n%s", want, v)
		}
	}

	m, cmd := step(t, m, phaseDoneMsg{})
	if m.percent() != 1 {
		t.Errorf("percent() after done = %v, want 1", m.percent())
	}
	if cmd == nil {
		t.Error("phase done should schedule the success message dismissal")
	}
	if !strings.Contains(m.View(), "Installing add-ons done") {
		t.Errorf("View() after done:\n%s", m.View())
	}
}

func TestProgressModel_EscCancelsPhase(t *testing.T) {
	var cancelled atomic.Bool
	m := newProgressModel(&cancelled, nil)

	// Nothing to cancel before a phase starts.
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if cancelled.Load() {
		t.Fatal("esc before any phase set the cancel flag")
	}

	m, _ = step(t, m, phaseStartMsg{title: "Installing repositories", total: 2})
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if !cancelled.Load() {
		t.Fatal("esc did not set the cancel flag")
	}
	if !strings.Contains(m.View(), "Skipping the rest of installing repositories") {
		t.Errorf("View() missing cancel notice:\n%s", m.View())
	}

	// The notice stays through phase end and clears when the next phase starts.
	m, _ = step(t, m, phaseDoneMsg{})
	if !strings.Contains(m.View(), "Skipping") {
		t.Error("cancel notice replaced at phase end")
	}
	m, _ = step(t, m, phaseStartMsg{title: "Installing add-ons", total: 3})
	if strings.Contains(m.View(), "Skipping") {
		t.Error("cancel notice survived into the next phase")
	}
}

func TestProgressModel_CtrlCStopsRun(t *testing.T) {
	var cancelled atomic.Bool
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	m := newProgressModel(&cancelled, stop)

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Error("ctrl+c should wait for the work to return instead of quitting")
	}
	if ctx.Err() == nil {
		t.Error("ctrl+c did not cancel the run context")
	}
	if !cancelled.Load() || !m.stopping {
		t.Error("ctrl+c did not mark the run as stopping")
	}
}

func TestProgressModel_WorkDoneQuits(t *testing.T) {
	var cancelled atomic.Bool
	m := newProgressModel(&cancelled, nil)
	boom := errors.New("boom")

	m, cmd := step(t, m, workDoneMsg{err: boom})
	if !m.finished || m.err != boom {
		t.Errorf("finished/err = %v/%v", m.finished, m.err)
	}
	if cmd == nil {
		t.Fatal("work done should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd returned %T, want tea.QuitMsg", cmd())
	}
	if m.View() != "" {
		t.Errorf("View() after finish = %q, want empty", m.View())
	}
}

func TestProgressModel_WindowSize(t *testing.T) {
	var cancelled atomic.Bool
	m := newProgressModel(&cancelled, nil)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 30, Height: 10})
	if m.bar.Width != 22 {
		t.Errorf("bar width = %d, want 22", m.bar.Width)
	}
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 200, Height: 10})
	if m.bar.Width != defaultBarWidth {
		t.Errorf("bar width = %d, want %d", m.bar.Width, defaultBarWidth)
	}
}

func TestTeaProgress(t *testing.T) {
	var sent []tea.Msg
	p := &teaProgress{send: func(msg tea.Msg) { sent = append(sent, msg) }}
	var _ core.Progress = p

	p.cancelled.Store(true)
	p.Start("Installing add-ons", 2)
	if p.Cancelled() {
		t.Error("Start() should clear the cancel flag")
	}
	p.Update(1, "plugin.a")
	p.Done()

	if len(sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(sent))
	}
	if msg, ok := sent[0].(phaseStartMsg); !ok || msg.total != 2 {
		t.Errorf("sent[0] = %#v", sent[0])
	}
	if msg, ok := sent[1].(phaseUpdateMsg); !ok || msg.message != "plugin.a" {
		t.Errorf("sent[1] = %#v", sent[1])
	}
	if _, ok := sent[2].(phaseDoneMsg); !ok {
		t.Errorf("sent[2] = %#v", sent[2])
	}
}

func TestRun_ReturnsWorkError(t *testing.T) {
	var out bytes.Buffer
	boom := errors.New("boom")
	err := Run(context.Background(), nil, &out, func(ctx context.Context, p core.Progress) error {
		p.Start("Installing add-ons", 1)
		p.Update(0, "plugin.a")
		p.Done()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}
