package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastelbude1/tasker/internal/constants"
	"github.com/bastelbude1/tasker/pkg/types"
)

func TestHashKey_DeterministicAndOrderIndependent(t *testing.T) {
	a := HashKey([]byte("task=0\ncommand=echo\n"), map[string]string{"A": "1", "B": "2"})
	b := HashKey([]byte("task=0\ncommand=echo\n"), map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	c := HashKey([]byte("task=0\ncommand=echo\n"), map[string]string{"A": "other"})
	assert.NotEqual(t, a, c)
}

func TestLock_AcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "deadbeefdeadbeef", false)
	require.NoError(t, l.Acquire(context.Background()))

	path := filepath.Join(dir, "workflow_deadbeefdeadbeef.lock")
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLock_SecondAcquireFailsWithInstanceCode(t *testing.T) {
	dir := t.TempDir()
	first := New(dir, "cafecafecafecafe", false)
	require.NoError(t, first.Acquire(context.Background()))
	defer func() { _ = first.Release() }()

	second := New(dir, "cafecafecafecafe", false)
	err := second.Acquire(context.Background())
	require.Error(t, err)
	we, ok := types.AsWorkflowError(err)
	require.True(t, ok)
	assert.Equal(t, constants.ExitInstanceAlreadyRunning, we.ExitCode)
}

func TestLock_StaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow_0123456789abcdef.lock")
	// A pid far above pid_max that cannot be alive.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	l := New(dir, "0123456789abcdef", false)
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Release())
}

func TestLock_ForceStealsLiveLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow_feedfacefeedface.lock")
	// Our own pid: definitely alive.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	blocked := New(dir, "feedfacefeedface", false)
	require.Error(t, blocked.Acquire(context.Background()))

	forced := New(dir, "feedfacefeedface", true)
	require.NoError(t, forced.Acquire(context.Background()))
	require.NoError(t, forced.Release())
}
