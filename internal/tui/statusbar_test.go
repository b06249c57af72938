package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

func TestNewStatusBarModel(t *testing.T) {
	m := newStatusBarModel()
	if m.msg != "" {
		t.Errorf("msg = %q, want empty", m.msg)
	}
	if m.nextID != 0 {
		t.Errorf("nextID = %d, want 0", m.nextID)
	}
	if m.running {
		t.Error("new status bar should not be running")
	}
	if r := m.renderRight(); r != "" {
		t.Errorf("renderRight() = %q, want empty", r)
	}
}

func TestStatusBar_ShowMsg(t *testing.T) {
	m := newStatusBarModel()
	m, cmd := m.showMsg("Repositories done", statusSuccess)

	if m.msg != "Repositories done" {
		t.Errorf("msg = %q, want %q", m.msg, "Repositories done")
	}
	if m.msgKind != statusSuccess {
		t.Errorf("msgKind = %d, want statusSuccess (%d)", m.msgKind, statusSuccess)
	}
	if m.pinned {
		t.Error("showMsg() message should not be pinned")
	}
	if m.nextID != 1 {
		t.Errorf("nextID = %d, want 1", m.nextID)
	}
	if cmd == nil {
		t.Error("showMsg() should return a cmd for the auto-dismiss timer")
	}
}

func TestStatusBar_DismissMatchingID(t *testing.T) {
	m := newStatusBarModel()
	m, _ = m.showMsg("hello", statusSuccess)

	m, _ = m.update(statusDismissMsg{id: m.msgID})
	if m.msg != "" {
		t.Errorf("msg = %q, want empty when dismiss ID matches", m.msg)
	}
}

func TestStatusBar_DismissStaleID(t *testing.T) {
	m := newStatusBarModel()
	m, _ = m.showMsg("first", statusSuccess)
	staleID := m.msgID

	m, _ = m.showMsg("second", statusError)
	if m.msgID == staleID {
		t.Fatal("second message should have a different ID")
	}

	m, _ = m.update(statusDismissMsg{id: staleID})
	if m.msg != "second" {
		t.Errorf("msg = %q, want %q (stale dismiss should be ignored)", m.msg, "second")
	}
}

func TestStatusBar_PinnedSurvivesTimerUntilNextPhase(t *testing.T) {
	m := newStatusBarModel()
	m, _ = m.showMsg("transient", statusSuccess)
	m = m.pinMsg("Cancelling", statusWarning)

	m, _ = m.update(statusDismissMsg{id: m.msgID})
	if m.msg != "Cancelling" {
		t.Errorf("msg = %q, pinned message should ignore the timer", m.msg)
	}

	m, _ = m.startPhase(3)
	if m.msg != "" {
		t.Errorf("msg = %q, want pinned message cleared by the next phase", m.msg)
	}
}

func TestStatusBar_Phase(t *testing.T) {
	m := newStatusBarModel()
	m, cmd := m.startPhase(4)
	if cmd == nil {
		t.Error("startPhase() should start the spinner")
	}
	if !m.running {
		t.Error("running should be true after startPhase()")
	}

	m = m.advance(2)
	if r := m.renderRight(); !strings.Contains(r, "2/4") {
		t.Errorf("renderRight() = %q, want it to contain 2/4", r)
	}

	m = m.advance(9)
	if m.done != 4 {
		t.Errorf("done = %d, want clamped to 4", m.done)
	}

	m = m.endPhase()
	if m.running {
		t.Error("running should be false after endPhase()")
	}
	if r := m.renderRight(); !strings.Contains(r, "4/4") {
		t.Errorf("renderRight() = %q, want it to contain 4/4", r)
	}
}

func TestStatusBar_StartPhase_AlreadyRunning(t *testing.T) {
	m := newStatusBarModel()
	m, _ = m.startPhase(2)
	m, cmd := m.startPhase(5)
	if cmd != nil {
		t.Error("second startPhase() should not start another spinner tick")
	}
	if m.total != 5 || m.done != 0 {
		t.Errorf("total/done = %d/%d, want 5/0", m.total, m.done)
	}
}

func TestStatusBar_SpinnerTick(t *testing.T) {
	tick := spinner.TickMsg{Time: time.Now()}

	m := newStatusBarModel()
	if _, cmd := m.update(tick); cmd != nil {
		t.Error("spinner tick while idle should return nil cmd")
	}

	m, _ = m.startPhase(1)
	m, _ = m.update(tick)
	if !m.running {
		t.Error("phase should still be running after a spinner tick")
	}
}

func TestStatusBar_View(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(statusBarModel) statusBarModel
		want    []string
		notWant []string
	}{
		{
			name:  "help only",
			setup: func(m statusBarModel) statusBarModel { return m },
			want:  []string{"help text"},
		},
		{
			name: "message hides help",
			setup: func(m statusBarModel) statusBarModel {
				return m.pinMsg("Cancelling after the current item", statusWarning)
			},
			want:    []string{"Cancelling after the current item"},
			notWant: []string{"help text"},
		},
		{
			name: "counter on the right",
			setup: func(m statusBarModel) statusBarModel {
				m, _ = m.startPhase(12)
				return m.advance(3)
			},
			want: []string{"help text", "3/12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newStatusBarModel()
			m.width = 80
			v := tt.setup(m).view("help text")
			for _, w := range tt.want {
				if !strings.Contains(v, w) {
					t.Errorf("view() = %q, want it to contain %q", v, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(v, w) {
					t.Errorf("view() = %q, should not contain %q", v, w)
				}
			}
		})
	}
}

func TestStatusBar_RenderLeft(t *testing.T) {
	for _, kind := range []statusMsgKind{statusSuccess, statusError, statusWarning} {
		m := newStatusBarModel()
		m, _ = m.showMsg("text", kind)
		if left := m.renderLeft(); !strings.Contains(left, "text") {
			t.Errorf("renderLeft(kind %d) = %q, should contain message", kind, left)
		}
	}
}
