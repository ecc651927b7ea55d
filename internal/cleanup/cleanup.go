// ABOUTME: Owns tempfile/lockfile teardown on every exit path; child processes are killed by the runner, not here
// ABOUTME: Only removes resources this session created; runs exactly once on every exit path

package cleanup

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Manager tracks every resource this process session created so it can be
// torn down exactly once, on success or failure. Tempfiles created by
// other sessions are never deleted; this session's always are.
type Manager struct {
	mu        sync.Mutex
	tempFiles map[string]bool
	lock      types.InstanceLock
	ran       bool
}

// New returns an empty Manager. Call Track for every tempfile a
// StreamingOutputHandler spills to disk as it happens, not just at the end,
// so a crash mid-run still leaves a complete cleanup list.
func New() *Manager {
	return &Manager{tempFiles: make(map[string]bool)}
}

// Track records path as created by this session.
func (m *Manager) Track(path string) {
	if path == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempFiles[path] = true
}

// SetLock registers the InstanceLock (if any) this run acquired, so Run
// releases it alongside tempfiles.
func (m *Manager) SetLock(lock types.InstanceLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lock = lock
}

// Run removes every tracked tempfile and releases the instance lock. It is
// idempotent: a second call is a no-op, so deferred cleanup and an explicit
// end-of-run cleanup can't double-delete or double-unlock.
func (m *Manager) Run(logger types.Logger) {
	m.mu.Lock()
	if m.ran {
		m.mu.Unlock()
		return
	}
	m.ran = true
	files := make([]string, 0, len(m.tempFiles))
	for f := range m.tempFiles {
		files = append(files, f)
	}
	lock := m.lock
	m.mu.Unlock()

	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) && logger != nil {
			logger.Warn().Str("file", f).Err(err).Msg("failed to remove tempfile during cleanup")
		}
	}
	if lock != nil {
		if err := lock.Release(); err != nil && logger != nil {
			logger.Warn().Err(err).Msg("failed to release instance lock during cleanup")
		}
	}
}

// AlertOnFailure invokes path (validated regular file, mode 700, no
// symlinks) with the TASKER_* environment variables exported, bounded to
// a hard 30s timeout. A failure here is logged but never fatal to the rest
// of cleanup.
func AlertOnFailure(logger types.Logger, path string, env map[string]string) {
	if path == "" {
		return
	}
	info, err := os.Lstat(path)
	if err != nil {
		logf(logger, "alert-on-failure: cannot stat %s: %v", path, err)
		return
	}
	if info.Mode()&os.ModeSymlink != 0 {
		logf(logger, "alert-on-failure: %s is a symlink, refusing to invoke", path)
		return
	}
	if info.IsDir() {
		logf(logger, "alert-on-failure: %s is a directory, refusing to invoke", path)
		return
	}
	if info.Mode().Perm() != 0o700 {
		logf(logger, "alert-on-failure: %s must be mode 700 (got %o), refusing to invoke", path, info.Mode().Perm())
		return
	}

	cmd := exec.Command(path)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		logf(logger, "alert-on-failure: failed to start %s: %v", path, err)
		return
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logf(logger, "alert-on-failure: %s exited with error: %v", path, err)
		}
	case <-time.After(30 * time.Second):
		_ = cmd.Process.Kill()
		logf(logger, "alert-on-failure: %s exceeded 30s timeout, killed", path)
	}
}

func logf(logger types.Logger, format string, args ...interface{}) {
	if logger == nil {
		return
	}
	logger.Warn().Msgf(format, args...)
}
