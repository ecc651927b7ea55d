// ABOUTME: SHA-256 content-hash InstanceLock with stale-PID reclaim
// ABOUTME: Create-exclusive acquisition with stale-PID reclaim and idempotent release

package lockfile

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Lock implements types.InstanceLock keyed by a hash of the task-file
// contents plus the resolved global-variable map.
type Lock struct {
	dir      string
	path     string
	force    bool
	acquired bool
}

// HashKey computes the lock filename's content hash.
func HashKey(taskFileContents []byte, globals map[string]string) string {
	h := sha256.New()
	h.Write(taskFileContents)
	keys := make([]string, 0, len(globals))
	for k := range globals {
		keys = append(keys, k)
	}
	// Deterministic ordering: sort keys so the hash doesn't depend on map
	// iteration order.
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(globals[k]))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// New builds a Lock in dir for the given content hash. force bypasses the
// "instance already running" failure after a stale check still fails.
func New(dir string, hashHex16 string, force bool) *Lock {
	return &Lock{
		dir:   dir,
		path:  filepath.Join(dir, fmt.Sprintf("workflow_%s.lock", hashHex16)),
		force: force,
	}
}

// Acquire implements types.InstanceLock.
func (l *Lock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		defer f.Close()
		if _, werr := f.WriteString(strconv.Itoa(os.Getpid())); werr != nil {
			return werr
		}
		l.acquired = true
		return nil
	}
	if !os.IsExist(err) {
		return fmt.Errorf("create lock file: %w", err)
	}

	holderPID, rerr := readHolderPID(l.path)
	if rerr == nil && !processAlive(holderPID) {
		// Stale: reclaim.
		if rerr := os.Remove(l.path); rerr != nil {
			return fmt.Errorf("reclaim stale lock: %w", rerr)
		}
		return l.Acquire(ctx)
	}

	if l.force {
		if rerr := os.Remove(l.path); rerr != nil {
			return fmt.Errorf("force-remove lock: %w", rerr)
		}
		return l.Acquire(ctx)
	}

	return types.NewWorkflowError(25, fmt.Sprintf("instance already running (pid %d holds %s)", holderPID, l.path), nil)
}

// Release removes the lock file if this process acquired it.
func (l *Lock) Release() error {
	if !l.acquired {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	l.acquired = false
	return nil
}

func readHolderPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes existence
	// without affecting the process.
	return proc.Signal(syscall.Signal(0)) == nil
}

var _ types.InstanceLock = (*Lock)(nil)
