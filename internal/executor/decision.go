// ABOUTME: Decision strategy: non-executing routing node
// ABOUTME: Evaluates task.Success against prior results/globals and produces no stdout/stderr

package executor

import (
	"context"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Decision has no command and produces no stdout/stderr; it only evaluates
// task.Success against whatever cross-task references it names and lets the
// controller route on the resulting TaskResult.Success.
type Decision struct {
	common *Common
}

// NewDecision builds a Decision strategy over common.
func NewDecision(common *Common) *Decision {
	return &Decision{common: common}
}

var _ types.TaskExecutor = (*Decision)(nil)

// Execute implements types.TaskExecutor.
func (d *Decision) Execute(_ context.Context, task *types.TaskRecord, _ types.ExecDeps) (*types.TaskResult, error) {
	successExpr := task.Success
	if successExpr == "" {
		successExpr = "always"
	}
	ok, err := d.common.Evaluator.Evaluate(successExpr, d.common.evalCtx(nil, "", nil))
	if err != nil {
		return nil, err
	}
	result := &types.TaskResult{
		TaskID:  task.ID,
		Success: ok,
	}
	if !ok {
		result.ExitCode = -1
	}
	return result, nil
}
