package stream

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastelbude1/tasker/pkg/types"
)

func TestHandler_SmallStreamStaysInMemory(t *testing.T) {
	h := NewStdoutHandler()
	_, err := h.Write([]byte("hello\n"))
	require.NoError(t, err)

	ref, err := h.Finish()
	require.NoError(t, err)
	assert.False(t, ref.IsFile())
	assert.Equal(t, []byte("hello\n"), ref.InMemory)
	assert.Equal(t, int64(6), ref.Size)
}

func TestHandler_SpillsToFileAboveThreshold(t *testing.T) {
	h := NewStderrHandler()
	chunk := bytes.Repeat([]byte("x"), 64*1024)
	var written int64
	for written <= types.StreamMemoryThreshold {
		n, err := h.Write(chunk)
		require.NoError(t, err)
		written += int64(n)
	}

	ref, err := h.Finish()
	require.NoError(t, err)
	require.True(t, ref.IsFile())
	assert.Equal(t, written, ref.Size)
	assert.False(t, ref.Truncated)

	info, err := os.Stat(ref.FilePath)
	require.NoError(t, err)
	assert.Equal(t, written, info.Size())

	t.Cleanup(func() { _ = os.Remove(ref.FilePath) })
}

func TestReadBounded_TruncatesInMemory(t *testing.T) {
	ref := types.StreamRef{InMemory: bytes.Repeat([]byte("a"), 200)}
	data, err := ReadBounded(ref, 100)
	require.NoError(t, err)
	assert.Len(t, data, 100)
}

func TestReadBounded_TruncatesSpilledFile(t *testing.T) {
	h := NewStdoutHandler()
	payload := bytes.Repeat([]byte("b"), int(types.StreamMemoryThreshold)+4096)
	_, err := h.Write(payload)
	require.NoError(t, err)
	ref, err := h.Finish()
	require.NoError(t, err)
	require.True(t, ref.IsFile())
	t.Cleanup(func() { _ = os.Remove(ref.FilePath) })

	data, err := ReadBounded(ref, types.ArgMaxSubstitutionCap)
	require.NoError(t, err)
	assert.Len(t, data, types.ArgMaxSubstitutionCap)

	full, err := ReadAll(ref)
	require.NoError(t, err)
	assert.Len(t, full, len(payload))
}

func TestCapture_CleanupRemovesSpilledFiles(t *testing.T) {
	c := NewCapture()
	payload := bytes.Repeat([]byte("c"), int(types.StreamMemoryThreshold)+1)
	_, err := c.WriteStdout(payload)
	require.NoError(t, err)
	stdout, _, err := c.Finish()
	require.NoError(t, err)
	require.True(t, stdout.IsFile())

	require.NoError(t, c.Cleanup())
	_, serr := os.Stat(stdout.FilePath)
	assert.True(t, os.IsNotExist(serr))
}

func TestLineCount(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"empty", "", 0},
		{"single no newline", "one", 1},
		{"single with newline", "one\n", 1},
		{"three lines", "a\nb\nc\n", 3},
		{"trailing partial", "a\nb\nc", 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n, err := LineCount(types.StreamRef{InMemory: []byte(tc.data)})
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}
