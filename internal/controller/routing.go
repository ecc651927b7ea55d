// ABOUTME: Next-task-id determination: on_success/on_failure, next expression, TaskReturn, per-type failure exit codes
// ABOUTME: Kept separate from controller.go so the run loop stays readable

package controller

import (
	"strings"

	"github.com/bastelbude1/tasker/internal/constants"
	"github.com/bastelbude1/tasker/pkg/types"
)

// outcome is what the controller does after one task record finishes.
type outcome struct {
	terminate bool
	exitCode  int
	nextID    int
}

// route decides what happens after task produced result. c.workflow is used to
// check whether an implicit id+1 fallthrough target exists.
func (c *Controller) route(task *types.TaskRecord, result *types.TaskResult) (outcome, error) {
	if task.Return != nil {
		return outcome{terminate: true, exitCode: *task.Return}, nil
	}

	nextTrim := strings.ToLower(strings.TrimSpace(task.Next))

	if nextTrim == "never" {
		if result.Success {
			return outcome{terminate: true, exitCode: constants.ExitSuccess}, nil
		}
		return outcome{terminate: true, exitCode: failureExitCode(task.Type)}, nil
	}

	if result.Success && task.OnSuccess != nil {
		return outcome{nextID: *task.OnSuccess}, nil
	}
	if !result.Success && task.OnFailure != nil {
		return outcome{nextID: *task.OnFailure}, nil
	}

	// Evaluate defaults to true on an empty expression and treats "loop" as
	// always-true (the executor already handled iteration internally).
	ok, err := c.evaluator.Evaluate(task.Next, c.evalCtx(result))
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		if result.TimedOut {
			return outcome{terminate: true, exitCode: constants.ExitTaskTimeout}, nil
		}
		return outcome{terminate: true, exitCode: failureExitCode(task.Type)}, nil
	}

	if nextRecord, exists := c.workflow.Task(task.ID + 1); exists {
		return outcome{nextID: nextRecord.ID}, nil
	}
	// Ran off the end of the file: success is a clean finish, failure with
	// nowhere left to route is the "task failed (final)" case.
	if result.Success {
		return outcome{terminate: true, exitCode: constants.ExitSuccess}, nil
	}
	if result.TimedOut {
		return outcome{terminate: true, exitCode: constants.ExitTaskTimeout}, nil
	}
	return outcome{terminate: true, exitCode: constants.ExitTaskFailedFinal}, nil
}

// failureExitCode maps the task type whose next/success expression was not
// met to the stable per-type exit code.
func failureExitCode(t types.TaskType) int {
	switch t {
	case types.TaskParallel:
		return constants.ExitParallelBlockFailed
	case types.TaskConditional:
		return constants.ExitConditionalBranchFailed
	default: // normal, decision
		return constants.ExitSequentialNextNotMet
	}
}
