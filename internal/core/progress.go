package core

import (
	"sync/atomic"

	"github.com/juju/loggo"
)

// Progress surfaces one phase of a run to the user and reports whether the
// user asked to cancel it. Start begins a phase with fresh cancel state.
type Progress interface {
	Start(title string, total int)
	Update(done int, message string)
	Cancelled() bool
	Done()
}

// NopProgress ignores updates and is never cancelled.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Update(int, string) {}
func (NopProgress) Cancelled() bool { return false }
func (NopProgress) Done() {}

// LogProgress writes progress to a logger. Cancel marks the current phase
// cancelled; the next Start clears it.
type LogProgress struct {
	Logger    loggo.Logger
	title     string
	total     int
	cancelled atomic.Bool
}

// Start implements Progress.
func (p *LogProgress) Start(title string, total int) {
	p.title = title
	p.total = total
	p.cancelled.Store(false)
	p.Logger.Infof("%s (%d)", title, total)
}

// Update implements Progress.
func (p *LogProgress) Update(done int, message string) {
	p.Logger.Infof("[%d/%d] %s", done+1, p.total, message)
}

// Cancelled implements Progress.
func (p *LogProgress) Cancelled() bool {
	return p.cancelled.Load()
}

// Cancel requests cancellation of the current phase.
func (p *LogProgress) Cancel() {
	p.cancelled.Store(true)
}

// Done implements Progress.
func (p *LogProgress) Done() {
	p.Logger.Debugf("%s done", p.title)
}
