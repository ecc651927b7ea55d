// ABOUTME: Sequential strategy: one task record, optional loop iteration
// ABOUTME: Routing (next id / on_success / on_failure) lives in the controller, not here — this only runs the task

package executor

import (
	"context"
	"strings"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Sequential runs a single normal TaskRecord, including its loop iterations.
type Sequential struct {
	common *Common
}

// NewSequential builds a Sequential strategy over common.
func NewSequential(common *Common) *Sequential {
	return &Sequential{common: common}
}

var _ types.TaskExecutor = (*Sequential)(nil)

// Execute implements types.TaskExecutor.
func (s *Sequential) Execute(ctx context.Context, task *types.TaskRecord, _ types.ExecDeps) (*types.TaskResult, error) {
	maxIter := 1
	loops := task.Loop > 0 && strings.EqualFold(strings.TrimSpace(task.Next), "loop")
	if loops {
		maxIter = task.Loop
	}

	var result *types.TaskResult
	for iteration := 1; iteration <= maxIter; iteration++ {
		r, err := s.common.RunTask(ctx, task, "", "")
		if err != nil {
			return nil, err
		}
		r.Iterations = iteration
		result = r
		s.common.Results.Put(task.ID, result)

		if !loops || result.Skipped {
			break
		}
		if task.LoopBreak != "" {
			brk, berr := s.common.Evaluator.Evaluate(task.LoopBreak, s.common.evalCtx(result, "", nil))
			if berr != nil {
				return nil, berr
			}
			if brk {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return result, nil
}
