// ABOUTME: Syntactic validation layer: required fields per type, numeric ranges, list-size bounds
// ABOUTME: Required fields and numeric ranges per task type, one record at a time

package validator

import (
	"fmt"

	"github.com/bastelbude1/tasker/pkg/types"
)

func checkStructural(wf *types.Workflow) []*types.ValidationError {
	var errs []*types.ValidationError

	for _, t := range wf.Records {
		switch t.Type {
		case types.TaskParallel:
			errs = append(errs, checkParallelFields(t)...)
		case types.TaskConditional:
			errs = append(errs, checkConditionalFields(t)...)
		case types.TaskReturn:
			if t.Return == nil {
				errs = append(errs, fieldErr(t.ID, "return", "return task must set return"))
			}
		case types.TaskDecision:
			// no required fields beyond success=, which defaults to "always"
		default: // normal
			if t.Command == "" {
				errs = append(errs, fieldErr(t.ID, "command", "normal task requires command"))
			}
		}

		errs = append(errs, checkRange(t.ID, "timeout", t.Timeout, 0, types.MinTimeoutSeconds, types.MaxTimeoutSeconds)...)
		errs = append(errs, checkRange(t.ID, "sleep", t.Sleep, types.MinSleepSeconds, types.MinSleepSeconds, types.MaxSleepSeconds)...)
		errs = append(errs, checkRange(t.ID, "loop", t.Loop, 0, types.MinLoopCount, types.MaxLoopCount)...)
		errs = append(errs, checkRange(t.ID, "retry_count", t.RetryCount, 0, types.MinRetryCount, types.MaxRetryCount)...)
		errs = append(errs, checkRange(t.ID, "retry_delay", t.RetryDelay, types.MinRetryDelaySeconds, types.MinRetryDelaySeconds, types.MaxRetryDelaySeconds)...)
		if t.MaxParallel != 0 {
			errs = append(errs, checkRange(t.ID, "max_parallel", t.MaxParallel, 0, types.MinMaxParallel, types.MaxMaxParallel)...)
		}

		for _, id := range t.Tasks {
			if _, ok := wf.Task(id); !ok {
				errs = append(errs, fieldErr(t.ID, "tasks", fmt.Sprintf("referenced task %d does not exist", id)))
			}
		}
	}

	return errs
}

func checkParallelFields(t *types.TaskRecord) []*types.ValidationError {
	var errs []*types.ValidationError
	hasTasks := len(t.Tasks) > 0
	hasHostnames := len(t.Hostnames) > 0
	if !hasTasks && !hasHostnames {
		errs = append(errs, fieldErr(t.ID, "tasks", "parallel task requires tasks= or hostnames="))
	}
	if hasHostnames {
		if len(t.Hostnames) < types.MinParallelHosts || len(t.Hostnames) > types.MaxParallelHosts {
			errs = append(errs, fieldErr(t.ID, "hostnames", fmt.Sprintf("must have between %d and %d entries", types.MinParallelHosts, types.MaxParallelHosts)))
		}
		if t.Command == "" {
			errs = append(errs, fieldErr(t.ID, "command", "parallel hostnames= block requires command"))
		}
	}
	return errs
}

func checkConditionalFields(t *types.TaskRecord) []*types.ValidationError {
	var errs []*types.ValidationError
	if t.Condition == "" {
		errs = append(errs, fieldErr(t.ID, "condition", "conditional task requires condition"))
	}
	if len(t.IfTrueTasks) == 0 {
		errs = append(errs, fieldErr(t.ID, "if_true_tasks", "conditional task requires non-empty if_true_tasks"))
	}
	if len(t.IfFalseTasks) == 0 {
		errs = append(errs, fieldErr(t.ID, "if_false_tasks", "conditional task requires non-empty if_false_tasks"))
	}
	return errs
}

// checkRange validates v against [lo, hi] unless v equals skipIfEqual (the
// record's "unset" sentinel, typically 0).
func checkRange(taskID int, field string, v, skipIfEqual, lo, hi int) []*types.ValidationError {
	if v == skipIfEqual {
		return nil
	}
	if v < lo || v > hi {
		return []*types.ValidationError{fieldErr(taskID, field, fmt.Sprintf("%d out of range [%d, %d]", v, lo, hi))}
	}
	return nil
}

func fieldErr(taskID int, field, message string) *types.ValidationError {
	return types.NewValidationError(taskID, true, field, message)
}
