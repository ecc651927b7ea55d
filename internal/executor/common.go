// ABOUTME: Shared task-execution preamble: condition check, substitution, spawn, capture, success eval, post-sleep
// ABOUTME: Each strategy delegates its per-attempt mechanics here so retry, capture, and sleep behave identically everywhere

package executor

import (
	"context"
	"strconv"
	"time"

	"github.com/bastelbude1/tasker/internal/cleanup"
	"github.com/bastelbude1/tasker/internal/stream"
	"github.com/bastelbude1/tasker/pkg/types"
)

// Common is the shared preamble every TaskExecutor strategy (Sequential,
// Parallel, Conditional) delegates a single task attempt to. Decision tasks
// never execute a command and so never call this.
type Common struct {
	Workflow  *types.Workflow
	Globals   types.GlobalVariables
	Results   types.ResultStore
	Evaluator types.ConditionEvaluator
	Resolver  types.ExecResolver
	Runner    types.TaskRunner
	HostProbe types.HostProbe
	Logger    types.Logger
	Cleanup   *cleanup.Manager
	DryRun    bool

	// DefaultTimeout applies when a record sets no timeout= of its own
	// (the -o/--timeout flag or TASK_EXECUTOR_TIMEOUT).
	DefaultTimeout time.Duration
	// DefaultExec applies when a record sets no exec= of its own
	// (the -t/--type flag or TASK_EXECUTOR_TYPE).
	DefaultExec string
}

func (c *Common) evalCtx(current *types.TaskResult, taskVar string, aggregate *types.AggregateCounts) types.EvalContext {
	return types.EvalContext{
		Globals:   c.Globals,
		Results:   c.Results,
		Current:   current,
		TaskVar:   taskVar,
		Aggregate: aggregate,
	}
}

// RunTask is the entry point: it checks task.Condition, then runs with retry
//. hostnameOverride and taskVar are non-empty only
// for parallel-hostnames synthesized subtasks.
func (c *Common) RunTask(ctx context.Context, task *types.TaskRecord, hostnameOverride, taskVar string) (*types.TaskResult, error) {
	if task.Condition != "" {
		ok, err := c.Evaluator.Evaluate(task.Condition, c.evalCtx(nil, taskVar, nil))
		if err != nil {
			return nil, err
		}
		if !ok {
			return &types.TaskResult{
				TaskID:   task.ID,
				ExitCode: -1,
				Skipped:  true,
				Success:  false,
				Hostname: hostnameOverride,
			}, nil
		}
	}
	return c.runWithRetry(ctx, task, hostnameOverride, taskVar)
}

// runWithRetry bounds attempts at 1+retry_count.
func (c *Common) runWithRetry(ctx context.Context, task *types.TaskRecord, hostnameOverride, taskVar string) (*types.TaskResult, error) {
	attempts := 1
	if task.RetryCount > 0 {
		attempts = 1 + task.RetryCount
	}

	var result *types.TaskResult
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && task.RetryDelay > 0 {
			select {
			case <-time.After(time.Duration(task.RetryDelay) * time.Second):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
		result, err = c.attempt(ctx, task, hostnameOverride, taskVar)
		if err != nil {
			return result, err
		}
		if result.Success {
			break
		}
	}
	return result, nil
}

// attempt runs exactly one try of task: substitution, spawn, capture, split,
// success evaluation, and the post-task sleep.
func (c *Common) attempt(ctx context.Context, task *types.TaskRecord, hostnameOverride, taskVar string) (*types.TaskResult, error) {
	preCtx := c.evalCtx(nil, taskVar, nil)

	hostname := task.Hostname
	if hostnameOverride != "" {
		hostname = hostnameOverride
	}
	hostname, err := c.Evaluator.Substitute(hostname, preCtx)
	if err != nil {
		return nil, err
	}
	command, err := c.Evaluator.Substitute(task.Command, preCtx)
	if err != nil {
		return nil, err
	}
	arguments, err := c.Evaluator.Substitute(task.Arguments, preCtx)
	if err != nil {
		return nil, err
	}

	execName := task.Exec
	if execName == "" {
		execName = c.DefaultExec
	}
	tmpl, ok := c.Resolver.Resolve(execName)
	if !ok {
		return nil, &unknownExecError{exec: execName}
	}
	argv := tmpl.Render(hostname, command, arguments)

	if c.DryRun {
		return &types.TaskResult{
			TaskID:   task.ID,
			ExitCode: 0,
			Success:  true,
			Hostname: hostname,
			Skipped:  false,
		}, nil
	}

	capture := stream.NewCapture()
	start := time.Now()
	timeout := time.Duration(task.Timeout) * time.Second
	if task.Timeout == 0 {
		timeout = c.DefaultTimeout
	}
	runRes := c.Runner.Run(ctx, types.RunRequest{
		Argv:    argv,
		Timeout: timeout,
		Stdout:  capture.Stdout(),
		Stderr:  capture.Stderr(),
	})
	duration := time.Since(start)

	stdoutRef, stderrRef, ferr := capture.Finish()
	if ferr != nil {
		return nil, ferr
	}
	if c.Cleanup != nil {
		c.Cleanup.Track(stdoutRef.FilePath)
		c.Cleanup.Track(stderrRef.FilePath)
	}

	if task.StdoutSplit != "" {
		data, rerr := stream.ReadAll(stdoutRef)
		if rerr == nil {
			stdoutRef = types.StreamRef{InMemory: []byte(applySplit(string(data), task.StdoutSplit))}
		}
	}
	if task.StderrSplit != "" {
		data, rerr := stream.ReadAll(stderrRef)
		if rerr == nil {
			stderrRef = types.StreamRef{InMemory: []byte(applySplit(string(data), task.StderrSplit))}
		}
	}

	result := &types.TaskResult{
		TaskID:   task.ID,
		ExitCode: runRes.ExitCode,
		Stdout:   stdoutRef,
		Stderr:   stderrRef,
		Hostname: hostname,
		Duration: duration,
		TimedOut: runRes.TimedOut,
	}
	if runRes.Err != nil {
		result.ExitCode = -1
		result.Success = false
	} else {
		successExpr := task.Success
		if successExpr == "" {
			successExpr = "exit_0"
		}
		ok, serr := c.Evaluator.Evaluate(successExpr, c.evalCtx(result, taskVar, nil))
		if serr != nil {
			return nil, serr
		}
		result.Success = ok
	}

	// Post-task sleep runs outside the cancellation window:
	// it is suppressed only if cancellation already occurred before it begins.
	if task.Sleep > 0 && ctx.Err() == nil {
		time.Sleep(time.Duration(task.Sleep) * time.Second)
	}

	return result, nil
}

type unknownExecError struct {
	exec string
}

func (e *unknownExecError) Error() string {
	if e.exec == "" {
		return "no execution type resolved"
	}
	return "unknown execution type " + strconv.Quote(e.exec)
}

// subtaskID computes the reserved id for the i-th (0-based) synthesized
// parallel-hostnames subtask of parent.
func subtaskID(parent, index int) int {
	return types.SubtaskIDBase + parent*types.SubtaskIDParentUnit + index
}
