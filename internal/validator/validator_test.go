package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastelbude1/tasker/pkg/types"
)

func intPtr(n int) *int { return &n }

func TestStructural_NormalTaskRequiresCommand(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Type: types.TaskNormal},
	})
	errs := checkStructural(wf)
	require.NotEmpty(t, errs)
	assert.Equal(t, "command", errs[0].Field)
}

func TestStructural_TimeoutOutOfRange(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Timeout: 1},
	})
	errs := checkStructural(wf)
	require.NotEmpty(t, errs)
	assert.Equal(t, "timeout", errs[0].Field)
}

func TestStructural_HostnamesCountBounds(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Type: types.TaskParallel, Command: "echo", Hostnames: []string{"h1"}},
	})
	errs := checkStructural(wf)
	require.NotEmpty(t, errs)
	assert.Equal(t, "hostnames", errs[0].Field)
}

func TestStructural_ConditionalRequiresBranches(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Type: types.TaskConditional, Condition: "always"},
	})
	errs := checkStructural(wf)
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	assert.True(t, fields["if_true_tasks"])
	assert.True(t, fields["if_false_tasks"])
}

func TestSemantic_UnreachableTaskIsError(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Next: "never"},
		{ID: 1, Command: "echo"},
	})
	errs := checkSemantic(wf, 0)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].TaskID)
}

func TestSemantic_HandlerRangeExemptFromReachability(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Next: "never"},
		{ID: 95, Command: "echo"},
	})
	errs := checkSemantic(wf, 0)
	assert.Empty(t, errs)
}

func TestSemantic_OnSuccessToMissingTaskIsError(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", OnSuccess: intPtr(7)},
	})
	errs := checkSemantic(wf, 0)
	require.NotEmpty(t, errs)
	assert.Equal(t, "on_success", errs[0].Field)
}

func TestSemantic_SubtaskRoutingRejected(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Type: types.TaskConditional, Condition: "always", IfTrueTasks: []int{1}, IfFalseTasks: []int{2}},
		{ID: 1, Command: "echo", OnSuccess: intPtr(2)},
		{ID: 2, Command: "echo"},
	})
	errs := checkSemantic(wf, 0)
	require.NotEmpty(t, errs)
	assert.Equal(t, 1, errs[0].TaskID)
}

func TestWarnings_LoopWithoutNextLoop(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Loop: 3},
	})
	warnings := Warnings(wf)
	require.Len(t, warnings, 1)
}

func TestSecurity_ShellMetacharRejectedForNonShell(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Arguments: "foo; rm -rf /", Exec: "local"},
	})
	errs := checkSecurity(wf)
	require.NotEmpty(t, errs)
}

func TestSecurity_ShellMetacharAllowedForShell(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Arguments: "foo; rm -rf /", Exec: "shell"},
	})
	errs := checkSecurity(wf)
	assert.Empty(t, errs)
}

func TestSecurity_NullByteRejected(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo\x00", Exec: "shell"},
	})
	errs := checkSecurity(wf)
	require.NotEmpty(t, errs)
}

func TestVariables_UnknownGlobalRejected(t *testing.T) {
	wf := types.NewWorkflow("f", nil, types.GlobalVariables{"known": "x"}, []*types.TaskRecord{
		{ID: 0, Command: "echo", Arguments: "@unknown@"},
	})
	errs := checkVariables(wf)
	require.NotEmpty(t, errs)
}

func TestVariables_KnownGlobalAccepted(t *testing.T) {
	wf := types.NewWorkflow("f", nil, types.GlobalVariables{"known": "x"}, []*types.TaskRecord{
		{ID: 0, Command: "echo", Arguments: "@known@"},
	})
	errs := checkVariables(wf)
	assert.Empty(t, errs)
}

func TestVariables_QualifiedRefToMissingTask(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Arguments: "@5_stdout@"},
	})
	errs := checkVariables(wf)
	require.NotEmpty(t, errs)
}

func TestVariables_TaskVarOnlyInsideHostnamesBlock(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Arguments: "@task@"},
	})
	errs := checkVariables(wf)
	require.NotEmpty(t, errs)

	wf2 := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Type: types.TaskParallel, Command: "echo", Arguments: "@task@", Hostnames: []string{"h1", "h2"}},
	})
	errs2 := checkVariables(wf2)
	assert.Empty(t, errs2)
}

func TestValidator_RunAggregatesAllLayers(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Type: types.TaskNormal}, // missing command
	})
	v := New(Options{})
	result := v.Run(context.Background(), wf)
	assert.True(t, result.HasErrors())
}

func TestValidator_SkipAllProducesNoErrors(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Type: types.TaskNormal},
	})
	v := New(Options{SkipAll: true})
	result := v.Run(context.Background(), wf)
	assert.False(t, result.HasErrors())
}

func TestSemantic_HighIDGroupExemptFromReachability(t *testing.T) {
	wf := types.NewWorkflow("f", nil, nil, []*types.TaskRecord{
		{ID: 0, Command: "echo", Next: "never"},
		{ID: 200, Command: "echo"},
	})
	errs := checkSemantic(wf, 0)
	assert.Empty(t, errs)
}
