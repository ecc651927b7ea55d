// ABOUTME: JSON execution-summary artifact and the project TSV append
// ABOUTME: Atomic temp-then-rename for the JSON document, flock-guarded append for the TSV

package summary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/bastelbude1/tasker/internal/util"
	"github.com/bastelbude1/tasker/pkg/types"
)

// NewExecutionID returns a fresh 8-hex execution id, truncated from a
// google/uuid v4").
func NewExecutionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// WorkflowMetadata is the top-level identity block of the JSON artifact.
type WorkflowMetadata struct {
	TaskFile        string  `json:"task_file"`
	ExecutionID     string  `json:"execution_id"`
	Status          string  `json:"status"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationSeconds float64 `json:"duration_seconds"`
	LogFile         string  `json:"log_file,omitempty"`
}

// ExecutionSummary rolls up counters and the path actually walked.
type ExecutionSummary struct {
	TotalTasks    int    `json:"total_tasks"`
	Executed      int    `json:"executed"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	Timeouts      int    `json:"timeouts"`
	ExecutionPath []int  `json:"execution_path"`
	FinalTask     int    `json:"final_task"`
	FailureInfo   string `json:"failure_info,omitempty"`
}

// TaskResultSummary is the per-task slice of the JSON artifact; streams are
// rendered as their bounded string content, never a raw tempfile handle.
type TaskResultSummary struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Success  bool   `json:"success"`
}

// Document is the full JSON artifact written by Write.
type Document struct {
	WorkflowMetadata WorkflowMetadata             `json:"workflow_metadata"`
	ExecutionSummary ExecutionSummary             `json:"execution_summary"`
	TaskResults      map[string]TaskResultSummary `json:"task_results"`
	Variables        map[string]string            `json:"variables"`
}

// Build assembles a Document from a completed run. executionID should
// already be the truncated 8-hex form; readStream bounds each captured
// stream to a sane size for the artifact (full content lives at FilePath
// when spilled).
func Build(executionID, taskFile string, start, end time.Time, status string, path []int, finalTask int, failureInfo string, results map[int]*types.TaskResult, globals types.GlobalVariables, readStream func(types.StreamRef) string) *Document {
	doc := &Document{
		WorkflowMetadata: WorkflowMetadata{
			TaskFile:        taskFile,
			ExecutionID:     executionID,
			Status:          status,
			StartTime:       start.UTC().Format(time.RFC3339),
			EndTime:         end.UTC().Format(time.RFC3339),
			DurationSeconds: end.Sub(start).Seconds(),
		},
		ExecutionSummary: ExecutionSummary{
			TotalTasks:    len(results),
			Executed:      len(path),
			ExecutionPath: path,
			FinalTask:     finalTask,
			FailureInfo:   failureInfo,
		},
		TaskResults: make(map[string]TaskResultSummary, len(results)),
		Variables:   map[string]string(globals),
	}

	for id, r := range results {
		if r.Success {
			doc.ExecutionSummary.Succeeded++
		} else {
			doc.ExecutionSummary.Failed++
		}
		if r.TimedOut {
			doc.ExecutionSummary.Timeouts++
		}
		doc.TaskResults[fmt.Sprintf("%d", id)] = TaskResultSummary{
			ExitCode: r.ExitCode,
			Stdout:   readStream(r.Stdout),
			Stderr:   readStream(r.Stderr),
			Success:  r.Success,
		}
	}

	return doc
}

// Write serializes doc to path atomically: write to a sibling tempfile in
// the same directory, fsync, then rename over path so readers never see a
// half-written artifact.
func Write(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("create summary tempfile: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, werr := tmp.Write(data); werr != nil {
		tmp.Close()
		return fmt.Errorf("write summary tempfile: %w", werr)
	}
	if serr := tmp.Sync(); serr != nil {
		tmp.Close()
		return fmt.Errorf("sync summary tempfile: %w", serr)
	}
	if cerr := tmp.Close(); cerr != nil {
		return fmt.Errorf("close summary tempfile: %w", cerr)
	}

	if rerr := os.Rename(tmpPath, path); rerr != nil {
		return fmt.Errorf("rename summary into place: %w", rerr)
	}
	return nil
}

// ProjectRecord is one TSV line appended to <logdir>/project/<PROJECT>.summary.
type ProjectRecord struct {
	Timestamp    time.Time
	Status       string
	ExitCode     int
	TaskFile     string
	FinalTaskID  int
	FinalHost    string
	FinalCommand string
	LogFileRef   string
}

// AppendProjectRecord appends rec as a TAB-separated line under an exclusive
// advisory lock, so concurrent tasker invocations against the same project
// file never interleave partial lines.
func AppendProjectRecord(path string, rec ProjectRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create project summary directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open project summary: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock project summary: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	// Free-form fields (a shell command= may legitimately carry tabs or
	// newlines) must not break the one-line-per-execution format.
	line := fmt.Sprintf("%s\t%s\t%d\t%s\t%d\t%s\t%s\t%s\n",
		rec.Timestamp.UTC().Format(time.RFC3339), rec.Status, rec.ExitCode,
		util.SanitizeTSVField(rec.TaskFile), rec.FinalTaskID,
		util.SanitizeTSVField(rec.FinalHost), util.SanitizeTSVField(rec.FinalCommand),
		util.SanitizeTSVField(rec.LogFileRef))

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append project summary record: %w", err)
	}
	return nil
}
