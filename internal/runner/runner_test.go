package runner

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastelbude1/tasker/pkg/types"
)

func TestProcessRunner_Success(t *testing.T) {
	r := New()
	var stdout bytes.Buffer
	res := r.Run(context.Background(), types.RunRequest{
		Argv:   []string{"echo", "hello"},
		Stdout: &stdout,
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", stdout.String())
}

func TestProcessRunner_NonZeroExit(t *testing.T) {
	r := New()
	res := r.Run(context.Background(), types.RunRequest{
		Argv: []string{"sh", "-c", "exit 3"},
	})
	assert.NoError(t, res.Err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestProcessRunner_Timeout(t *testing.T) {
	r := New()
	res := r.Run(context.Background(), types.RunRequest{
		Argv:    []string{"sleep", "5"},
		Timeout: 50 * time.Millisecond,
	})
	assert.True(t, res.TimedOut)
}

func TestProcessRunner_BinaryNotFound(t *testing.T) {
	r := New()
	res := r.Run(context.Background(), types.RunRequest{
		Argv: []string{"tasker-definitely-not-a-real-binary"},
	})
	assert.Error(t, res.Err)
}
