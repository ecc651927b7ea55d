// ABOUTME: Parallel strategy: explicit tasks= fan-out or synthesized hostnames= fan-out
// ABOUTME: conc/pool worker pool bounded by min(max_parallel, 2*NumCPU, 32, 8)

package executor

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Parallel runs a parallel TaskRecord's subtasks with bounded concurrency
// and per-subtask retry, then computes the aggregate counters.
type Parallel struct {
	common *Common
}

// NewParallel builds a Parallel strategy over common.
func NewParallel(common *Common) *Parallel {
	return &Parallel{common: common}
}

var _ types.TaskExecutor = (*Parallel)(nil)

// Execute implements types.TaskExecutor.
func (p *Parallel) Execute(ctx context.Context, task *types.TaskRecord, _ types.ExecDeps) (*types.TaskResult, error) {
	subtasks, taskVars, hostnames := p.planSubtasks(task)

	runCtx := ctx
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(task.Timeout)*time.Second)
		defer cancel()
	}

	workers := workerCount(task.MaxParallel)

	var mu sync.Mutex
	successCount, failedCount := 0, 0

	pl := pool.New().WithMaxGoroutines(workers).WithContext(runCtx)
	for i := range subtasks {
		idx := i
		sub := subtasks[idx]
		taskVar := taskVars[idx]
		hostname := hostnames[idx]
		pl.Go(func(goCtx context.Context) error {
			if goCtx.Err() != nil {
				return nil // cancelled before start: stays uncounted
			}
			result, err := p.common.RunTask(goCtx, sub, hostname, taskVar)
			if err != nil {
				return nil
			}
			p.common.Results.Put(sub.ID, result)

			mu.Lock()
			if result.Success {
				successCount++
			} else {
				failedCount++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = pl.Wait()

	aggregate := &types.AggregateCounts{
		SuccessCount: successCount,
		FailedCount:  failedCount,
		TotalCount:   len(subtasks),
	}

	successExpr := task.Success
	if successExpr == "" {
		successExpr = "all_success"
	}
	parentSuccess, err := p.common.Evaluator.Evaluate(successExpr, p.common.evalCtx(nil, "", aggregate))
	if err != nil {
		return nil, err
	}

	result := &types.TaskResult{
		TaskID:    task.ID,
		ExitCode:  0,
		Success:   parentSuccess,
		Aggregate: aggregate,
		TimedOut:  runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil,
	}
	if !parentSuccess {
		result.ExitCode = -1
	}
	return result, nil
}

// planSubtasks returns the subtask records to run, the @task@ value to
// expose during substitution for each (non-empty only for hostnames=
// synthesis), and any hostname override (also only for hostnames=).
func (p *Parallel) planSubtasks(task *types.TaskRecord) (records []*types.TaskRecord, taskVars, hostnameOverrides []string) {
	if len(task.Hostnames) > 0 {
		for i, host := range task.Hostnames {
			id := subtaskID(task.ID, i)
			sub := &types.TaskRecord{
				ID:         id,
				Type:       types.TaskNormal,
				Hostname:   host,
				Command:    task.Command,
				Arguments:  task.Arguments,
				Exec:       task.Exec,
				Timeout:    task.Timeout,
				RetryCount: task.RetryCount,
				RetryDelay: task.RetryDelay,
			}
			records = append(records, sub)
			taskVars = append(taskVars, strconv.Itoa(id))
			hostnameOverrides = append(hostnameOverrides, host)
		}
		return
	}

	for _, id := range task.Tasks {
		sub, ok := p.common.Workflow.Task(id)
		if !ok {
			continue
		}
		records = append(records, sub)
		taskVars = append(taskVars, "")
		hostnameOverrides = append(hostnameOverrides, "")
	}
	return
}

// workerCount bounds the pool at min(max_parallel, 2*cpu_count, 32, 8).
func workerCount(maxParallel int) int {
	if maxParallel <= 0 {
		maxParallel = types.DefaultMaxParallel
	}
	n := maxParallel
	if c := 2 * runtime.NumCPU(); c < n {
		n = c
	}
	if n > 32 {
		n = 32
	}
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}
