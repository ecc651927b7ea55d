// ABOUTME: Recovery-state persistence for --auto-recovery and --show-recovery-info
// ABOUTME: One small JSON file per workflow, written before each dispatch and removed on success

package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/bastelbude1/tasker/internal/util"
)

// State is the persisted marker: which task the workflow was on when it was
// last dispatched, and enough identity to resume it.
type State struct {
	TaskFile    string `json:"task_file"`
	ExecutionID string `json:"execution_id"`
	CurrentTask int    `json:"current_task"`
	UpdatedAt   string `json:"updated_at"`
	LogFile     string `json:"log_file,omitempty"`
	PID         int    `json:"pid"`
}

// StatePath derives the per-workflow state filename inside dir.
func StatePath(dir, taskFile string) string {
	name := util.SanitizeFilename(filepath.Base(taskFile))
	return filepath.Join(dir, fmt.Sprintf("recovery_%s.state", name))
}

// Writer implements controller.RecoveryWriter over an afero.Fs.
type Writer struct {
	fs          afero.Fs
	path        string
	taskFile    string
	executionID string
	logFile     string
}

// NewWriter builds a Writer persisting to path.
func NewWriter(fs afero.Fs, path, taskFile, executionID, logFile string) *Writer {
	return &Writer{fs: fs, path: path, taskFile: taskFile, executionID: executionID, logFile: logFile}
}

// WriteState records taskID as the task about to be dispatched.
func (w *Writer) WriteState(taskID int) error {
	if err := w.fs.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create recovery directory: %w", err)
	}
	st := State{
		TaskFile:    w.taskFile,
		ExecutionID: w.executionID,
		CurrentTask: taskID,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
		LogFile:     w.logFile,
		PID:         os.Getpid(),
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(w.fs, w.path, data, 0o644)
}

// Clear removes the state file; called when the workflow finishes cleanly.
func (w *Writer) Clear() error {
	err := w.fs.Remove(w.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Read loads a persisted State, reporting ok=false when none exists.
func Read(fs afero.Fs, path string) (*State, bool, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return nil, false, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, false, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("malformed recovery state %s: %w", path, err)
	}
	return &st, true, nil
}
