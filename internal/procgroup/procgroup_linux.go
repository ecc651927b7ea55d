// ABOUTME: Process-group creation/kill for task timeout and cancellation on Linux
// ABOUTME: Lets a timed-out wrapper's whole process group be reaped, not just the wrapper itself

//go:build linux

package procgroup

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Setup arranges for cmd to start in its own process group, so Kill can
// reach a shell wrapper's children (e.g. a pbrun/p7s/wwrs session's spawned
// remote command) instead of only the wrapper itself.
func Setup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill sends sig to the entire process group rooted at cmd's pid.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return unix.Kill(-cmd.Process.Pid, sig)
}
