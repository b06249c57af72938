package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const stateFileName = "state.json"

// StatePath returns the full path to the restore state file.
func (cm *ConfigManager) StatePath() string {
	return filepath.Join(cm.configDir, stateFileName)
}

// ReadState reads the restore state. A missing file is an empty state.
func (cm *ConfigManager) ReadState() (*State, error) {
	data, err := os.ReadFile(cm.StatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	return &st, nil
}

// WriteState writes the restore state atomically.
func (cm *ConfigManager) WriteState(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state file: %w", err)
	}
	return writeFileAtomic(cm.StatePath(), append(data, '\n'))
}

// UpdateState applies fn to the stored state and writes it back.
func (cm *ConfigManager) UpdateState(fn func(*State)) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	st, err := cm.ReadState()
	if err != nil {
		return err
	}
	fn(st)
	return cm.WriteState(st)
}

// SaveReport persists a reconciliation report under the reports directory
// and returns its path. Reports are named by the time they were written.
func (cm *ConfigManager) SaveReport(r *Report, now time.Time) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}
	path := filepath.Join(cm.ReportsDir(), "report-"+now.UTC().Format("20060102-150405")+".json")
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := NewReport()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	for _, c := range []*CategoryReport{&r.Repos, &r.Addons} {
		for i := range c.Failed {
			if c.Failed[i].Error == ErrCancelled.Error() {
				c.Failed[i].Kind = FailureCancelled
			}
		}
	}
	return r, nil
}
