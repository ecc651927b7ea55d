// ABOUTME: Default TaskRunner backend: direct process spawn with timeout and process-group cancellation
// ABOUTME: exec.CommandContext spawn with syscall.WaitStatus exit-code extraction and group kill on timeout

package runner

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/bastelbude1/tasker/internal/procgroup"
	"github.com/bastelbude1/tasker/pkg/types"
)

// ProcessRunner spawns req.Argv directly (or via whatever wrapper binary
// ExecConfig already put at argv[0] — pbrun, p7s, wwrs, shell). The wrapper
// binaries themselves are external integrations; this type only owns the
// spawn/wait/timeout/cancellation mechanics common to all of them.
type ProcessRunner struct{}

// New returns a ProcessRunner.
func New() *ProcessRunner { return &ProcessRunner{} }

var _ types.TaskRunner = (*ProcessRunner)(nil)

var errEmptyArgv = fmt.Errorf("empty argv")

// Run implements types.TaskRunner.
func (r *ProcessRunner) Run(ctx context.Context, req types.RunRequest) types.RunResult {
	if len(req.Argv) == 0 {
		return types.RunResult{ExitCode: -1, Err: errEmptyArgv}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, req.Argv[0], req.Argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stderr
	procgroup.Setup(cmd)

	err := cmd.Run()

	timedOut := runCtx.Err() == context.DeadlineExceeded
	if timedOut {
		_ = procgroup.Kill(cmd, syscall.SIGKILL)
	}

	if err == nil {
		return types.RunResult{ExitCode: 0}
	}

	if timedOut {
		return types.RunResult{ExitCode: -1, TimedOut: true}
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			code = status.ExitStatus()
		}
		return types.RunResult{ExitCode: code}
	}

	// Failed to start at all (binary not found, permission denied, ...).
	return types.RunResult{ExitCode: -1, Err: err}
}
