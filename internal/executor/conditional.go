// ABOUTME: Conditional strategy: evaluates condition, runs if_true_tasks or if_false_tasks sequentially
// ABOUTME: Subtasks are forbidden from declaring routing (enforced by the validator), so they run purely for their own success/retry semantics

package executor

import (
	"context"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Conditional evaluates task.Condition and executes one of its two task
// lists sequentially, each subtask independently retried per its own
// retry_count/retry_delay.
type Conditional struct {
	common *Common
}

// NewConditional builds a Conditional strategy over common.
func NewConditional(common *Common) *Conditional {
	return &Conditional{common: common}
}

var _ types.TaskExecutor = (*Conditional)(nil)

// Execute implements types.TaskExecutor.
func (c *Conditional) Execute(ctx context.Context, task *types.TaskRecord, _ types.ExecDeps) (*types.TaskResult, error) {
	branchTaken, err := c.common.Evaluator.Evaluate(task.Condition, c.common.evalCtx(nil, "", nil))
	if err != nil {
		return nil, err
	}

	branch := task.IfFalseTasks
	if branchTaken {
		branch = task.IfTrueTasks
	}

	successCount, failedCount := 0, 0
	for _, id := range branch {
		sub, ok := c.common.Workflow.Task(id)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		result, err := c.common.RunTask(ctx, sub, "", "")
		if err != nil {
			return nil, err
		}
		c.common.Results.Put(sub.ID, result)
		if result.Success {
			successCount++
		} else {
			failedCount++
		}
	}

	aggregate := &types.AggregateCounts{
		SuccessCount: successCount,
		FailedCount:  failedCount,
		TotalCount:   len(branch),
	}

	successExpr := task.Success
	if successExpr == "" {
		successExpr = "all_success"
	}
	parentSuccess, err := c.common.Evaluator.Evaluate(successExpr, c.common.evalCtx(nil, "", aggregate))
	if err != nil {
		return nil, err
	}

	result := &types.TaskResult{
		TaskID:    task.ID,
		Success:   parentSuccess,
		Aggregate: aggregate,
	}
	if !parentSuccess {
		result.ExitCode = -1
	}
	return result, nil
}
