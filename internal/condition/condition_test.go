package condition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastelbude1/tasker/internal/resultstore"
	"github.com/bastelbude1/tasker/pkg/types"
)

func TestEvaluate_ExitAndKeywords(t *testing.T) {
	e := New()
	cur := &types.TaskResult{ExitCode: 0, Success: true}
	ctx := types.EvalContext{Current: cur}

	ok, err := e.Evaluate("exit_0", ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("exit_1", ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate("always", ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("never", ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_AndOr(t *testing.T) {
	e := New()
	cur := &types.TaskResult{ExitCode: 0}
	ctx := types.EvalContext{Current: cur}

	ok, err := e.Evaluate("exit_0 & always", ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("exit_1 | always", ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("(exit_1 | exit_0) & always", ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_NestedParensRejected(t *testing.T) {
	e := New()
	_, err := e.Evaluate("((exit_0))", types.EvalContext{Current: &types.TaskResult{}})
	require.Error(t, err)
}

func TestEvaluate_StreamMatch(t *testing.T) {
	e := New()
	cur := &types.TaskResult{Stdout: types.StreamRef{InMemory: []byte("hello world")}}
	ctx := types.EvalContext{Current: cur}

	ok, err := e.Evaluate("stdout~hello", ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("stdout!~goodbye", ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_AggregateKeywords(t *testing.T) {
	e := New()
	ctx := types.EvalContext{Aggregate: &types.AggregateCounts{SuccessCount: 4, FailedCount: 1, TotalCount: 5}}

	ok, err := e.Evaluate("min_success=4", ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Evaluate("all_success", ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Evaluate("any_success", ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSubstitute_CrossTaskReference(t *testing.T) {
	e := New()
	store := resultstore.New()
	store.Put(0, &types.TaskResult{
		ExitCode: 0,
		Success:  true,
		Stdout:   types.StreamRef{InMemory: []byte("hello")},
		Hostname: "web1",
		Duration: 2500 * time.Millisecond,
	})

	ctx := types.EvalContext{Results: store, Globals: types.GlobalVariables{"GREETING": "hi"}}
	out, err := e.Substitute("@0_stdout@ world from @0_hostname@, exit=@0_exit@, @GREETING@", ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello world from web1, exit=0, hi", out)
}

func TestEvaluate_VarRefComparison(t *testing.T) {
	e := New()
	store := resultstore.New()
	store.Put(3, &types.TaskResult{ExitCode: 2})
	ctx := types.EvalContext{Results: store}

	ok, err := e.Evaluate("@3_exit@=2", ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
