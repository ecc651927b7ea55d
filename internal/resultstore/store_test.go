package resultstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastelbude1/tasker/pkg/types"
)

func TestStore_PutGet(t *testing.T) {
	s := New()
	_, ok := s.Get(0)
	assert.False(t, ok)

	s.Put(0, &types.TaskResult{TaskID: 0, ExitCode: 0, Success: true})
	r, ok := s.Get(0)
	require.True(t, ok)
	assert.True(t, r.Success)
}

func TestStore_LoopIterationOverwritesKeepingLast(t *testing.T) {
	s := New()
	s.Put(3, &types.TaskResult{TaskID: 3, Iterations: 1, ExitCode: 1})
	s.Put(3, &types.TaskResult{TaskID: 3, Iterations: 2, ExitCode: 0, Success: true})

	r, ok := s.Get(3)
	require.True(t, ok)
	assert.Equal(t, 2, r.Iterations)
	assert.True(t, r.Success)
	assert.Equal(t, []int{3}, s.ExecutionPath(), "overwrite must not duplicate the path entry")
}

func TestStore_ExecutionPathPreservesFirstWriteOrder(t *testing.T) {
	s := New()
	for _, id := range []int{5, 0, 9} {
		s.Put(id, &types.TaskResult{TaskID: id})
	}
	assert.Equal(t, []int{5, 0, 9}, s.ExecutionPath())
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.Put(id, &types.TaskResult{TaskID: id, Success: true})
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.All(), 64)
}
