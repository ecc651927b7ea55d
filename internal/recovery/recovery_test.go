package recovery

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_WriteReadClear(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := StatePath("/var/log/tasker/recovery", "/srv/wf/deploy.tasker")

	w := NewWriter(fs, path, "/srv/wf/deploy.tasker", "a1b2c3d4", "/var/log/tasker/run.log")
	require.NoError(t, w.WriteState(5))

	st, ok, err := Read(fs, path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, st.CurrentTask)
	assert.Equal(t, "/srv/wf/deploy.tasker", st.TaskFile)
	assert.Equal(t, "a1b2c3d4", st.ExecutionID)
	assert.Equal(t, "/var/log/tasker/run.log", st.LogFile)

	// A later dispatch overwrites the marker.
	require.NoError(t, w.WriteState(9))
	st, ok, err = Read(fs, path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, st.CurrentTask)

	require.NoError(t, w.Clear())
	_, ok, err = Read(fs, path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriter_ClearWithoutStateIsNoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, "/tmp/recovery_none.state", "f", "id", "")
	assert.NoError(t, w.Clear())
}

func TestStatePath_SanitizesFilename(t *testing.T) {
	p := StatePath("/run/tasker", "/srv/my workflows/deploy v2.tasker")
	assert.Equal(t, "/run/tasker/recovery_deploy_v2.tasker.state", p)
}
