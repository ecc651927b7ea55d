// ABOUTME: Fallback process-group handling for non-Linux builds
// ABOUTME: Falls back to signaling the child process directly; no grandchild reaping

//go:build !linux

package procgroup

import (
	"os/exec"
	"syscall"
)

// Setup is a no-op outside Linux.
func Setup(cmd *exec.Cmd) {}

// Kill signals cmd's direct child process only.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(sig)
}
