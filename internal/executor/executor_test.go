package executor

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastelbude1/tasker/internal/cleanup"
	"github.com/bastelbude1/tasker/internal/condition"
	"github.com/bastelbude1/tasker/internal/resultstore"
	"github.com/bastelbude1/tasker/pkg/types"
)

// fakeResolver always resolves to a template that simply echoes command/arguments.
type fakeResolver struct{}

func (fakeResolver) Resolve(name string) (types.ExecTemplate, bool) {
	return fakeTemplate{}, true
}

type fakeTemplate struct{}

func (fakeTemplate) Render(hostname, command, arguments string) []string {
	argv := []string{command}
	if arguments != "" {
		argv = append(argv, strings.Fields(arguments)...)
	}
	return argv
}

// fakeRunner maps a joined argv string to a canned RunResult and writes
// canned stdout, letting tests drive success/failure deterministically
// without touching the real shell.
type fakeRunner struct {
	exitCodes map[string]int
	stdout    map[string]string
	defaultEC int
	calls     atomic.Int32
}

func (f *fakeRunner) Run(_ context.Context, req types.RunRequest) types.RunResult {
	f.calls.Add(1)
	key := strings.Join(req.Argv, " ")
	if out, ok := f.stdout[key]; ok {
		_, _ = req.Stdout.Write([]byte(out))
	}
	if ec, ok := f.exitCodes[key]; ok {
		return types.RunResult{ExitCode: ec}
	}
	return types.RunResult{ExitCode: f.defaultEC}
}

func newTestCommon(runner types.TaskRunner, wf *types.Workflow) (*Common, *resultstore.Store) {
	store := resultstore.New()
	c := &Common{
		Workflow:  wf,
		Globals:   types.GlobalVariables{},
		Results:   store,
		Evaluator: condition.New(),
		Resolver:  fakeResolver{},
		Runner:    runner,
		Cleanup:   cleanup.New(),
	}
	return c, store
}

func TestSequential_SuccessRoutesAndStores(t *testing.T) {
	task := &types.TaskRecord{ID: 0, Hostname: "h1", Command: "echo", Arguments: "OK"}
	runner := &fakeRunner{exitCodes: map[string]int{"echo OK": 0}, stdout: map[string]string{"echo OK": "OK\n"}}
	c, store := newTestCommon(runner, types.NewWorkflow("f", nil, nil, []*types.TaskRecord{task}))

	seq := NewSequential(c)
	result, err := seq.Execute(context.Background(), task, types.ExecDeps{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, string(result.Stdout.InMemory), "OK")

	stored, ok := store.Get(0)
	require.True(t, ok)
	assert.Equal(t, result, stored)
}

func TestSequential_ConditionSkips(t *testing.T) {
	prior := &types.TaskRecord{ID: 0, Hostname: "h1", Command: "false"}
	task := &types.TaskRecord{ID: 1, Hostname: "h1", Command: "echo", Arguments: "x", Condition: "@0_exit@=0"}
	runner := &fakeRunner{exitCodes: map[string]int{"false": 1}}
	c, store := newTestCommon(runner, types.NewWorkflow("f", nil, nil, []*types.TaskRecord{prior, task}))

	store.Put(0, &types.TaskResult{TaskID: 0, ExitCode: 1, Success: false})

	seq := NewSequential(c)
	result, err := seq.Execute(context.Background(), task, types.ExecDeps{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.False(t, result.Success)
}

func TestSequential_VariableSubstitution(t *testing.T) {
	store := resultstore.New()
	store.Put(0, &types.TaskResult{TaskID: 0, Stdout: types.StreamRef{InMemory: []byte("hello")}, ExitCode: 0, Success: true})

	task := &types.TaskRecord{ID: 1, Hostname: "h1", Command: "echo", Arguments: "@0_stdout@ world"}
	runner := &fakeRunner{exitCodes: map[string]int{"echo hello world": 0}, stdout: map[string]string{"echo hello world": "hello world\n"}}
	c := &Common{
		Workflow:  types.NewWorkflow("f", nil, nil, []*types.TaskRecord{task}),
		Globals:   types.GlobalVariables{},
		Results:   store,
		Evaluator: condition.New(),
		Resolver:  fakeResolver{},
		Runner:    runner,
		Cleanup:   cleanup.New(),
	}

	seq := NewSequential(c)
	result, err := seq.Execute(context.Background(), task, types.ExecDeps{})
	require.NoError(t, err)
	assert.Contains(t, string(result.Stdout.InMemory), "hello world")
}

func TestParallel_HostnamesAggregate(t *testing.T) {
	task := &types.TaskRecord{
		ID: 0, Type: types.TaskParallel,
		Command: "true", Hostnames: []string{"h1", "h2", "h3"},
		MaxParallel: 3, Success: "min_success=2",
	}
	runner := &fakeRunner{defaultEC: 0, exitCodes: map[string]int{"true": 0}}
	c, _ := newTestCommon(runner, types.NewWorkflow("f", nil, nil, []*types.TaskRecord{task}))

	par := NewParallel(c)
	result, err := par.Execute(context.Background(), task, types.ExecDeps{})
	require.NoError(t, err)
	require.NotNil(t, result.Aggregate)
	assert.Equal(t, 3, result.Aggregate.SuccessCount)
	assert.Equal(t, 0, result.Aggregate.FailedCount)
	assert.Equal(t, 3, result.Aggregate.TotalCount)
	assert.True(t, result.Success)
}

func TestParallel_PartialFailureMinSuccess(t *testing.T) {
	// Each synthesized subtask renders "check_<subtask id>"; the first four
	// succeed and the fifth falls through to defaultEC.
	ids := subtaskIDsForTest(0, 5)
	exitCodes := map[string]int{}
	for _, id := range ids[:4] {
		exitCodes["check_"+strconv.Itoa(id)] = 0
	}
	runner := &fakeRunner{exitCodes: exitCodes, defaultEC: 1}
	task := &types.TaskRecord{
		ID: 0, Type: types.TaskParallel,
		Command: "check_@task@", Hostnames: []string{"h1", "h2", "h3", "h4", "h5"},
		MaxParallel: 3, Success: "min_success=4",
	}
	c, _ := newTestCommon(runner, types.NewWorkflow("f", nil, nil, []*types.TaskRecord{task}))
	par := NewParallel(c)
	result, err := par.Execute(context.Background(), task, types.ExecDeps{})
	require.NoError(t, err)
	require.NotNil(t, result.Aggregate)
	assert.Equal(t, 4, result.Aggregate.SuccessCount)
	assert.Equal(t, 1, result.Aggregate.FailedCount)
	assert.Equal(t, 5, result.Aggregate.TotalCount)
	assert.True(t, result.Success)
}

func subtaskIDsForTest(parent, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = types.SubtaskIDBase + parent*types.SubtaskIDParentUnit + i
	}
	return out
}

func TestConditional_BranchSelection(t *testing.T) {
	trueTask := &types.TaskRecord{ID: 1, Hostname: "h1", Command: "echo", Arguments: "yes"}
	falseTask := &types.TaskRecord{ID: 2, Hostname: "h1", Command: "echo", Arguments: "no"}
	parent := &types.TaskRecord{ID: 0, Type: types.TaskConditional, Condition: "always", IfTrueTasks: []int{1}, IfFalseTasks: []int{2}}

	runner := &fakeRunner{exitCodes: map[string]int{"echo yes": 0, "echo no": 0}}
	c, _ := newTestCommon(runner, types.NewWorkflow("f", nil, nil, []*types.TaskRecord{parent, trueTask, falseTask}))

	cond := NewConditional(c)
	result, err := cond.Execute(context.Background(), parent, types.ExecDeps{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Aggregate.TotalCount)
}

func TestDecision_RoutesOnSuccessExpr(t *testing.T) {
	store := resultstore.New()
	store.Put(5, &types.TaskResult{TaskID: 5, ExitCode: 0, Success: true})
	task := &types.TaskRecord{ID: 6, Type: types.TaskDecision, Success: "@5_success@=true"}
	c := &Common{
		Workflow:  types.NewWorkflow("f", nil, nil, []*types.TaskRecord{task}),
		Globals:   types.GlobalVariables{},
		Results:   store,
		Evaluator: condition.New(),
	}
	dec := NewDecision(c)
	result, err := dec.Execute(context.Background(), task, types.ExecDeps{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRetryBound(t *testing.T) {
	task := &types.TaskRecord{ID: 0, Hostname: "h", Command: "flaky", RetryCount: 2, RetryDelay: 0}
	runner := &fakeRunner{defaultEC: 1}
	c, _ := newTestCommon(runner, types.NewWorkflow("f", nil, nil, []*types.TaskRecord{task}))
	seq := NewSequential(c)
	result, err := seq.Execute(context.Background(), task, types.ExecDeps{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int32(3), runner.calls.Load())
}
