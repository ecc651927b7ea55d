// ABOUTME: Semantic/reachability layer: BFS over the routing graph, subtask-routing rejection, loop-without-next=loop warning
// ABOUTME: Walks every edge the controller can take, so a typo'd routing target fails before anything runs

package validator

import (
	"fmt"
	"strings"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Unreached tasks in the 90-99 band or at id >= 100 are assumed to be
// intentional error-handler / parallel-group targets rather than typos.
const (
	handlerRangeLow   = 90
	handlerRangeHigh  = 99
	handlerGroupFloor = 100
)

func checkSemantic(wf *types.Workflow, startTaskID int) []*types.ValidationError {
	var errs []*types.ValidationError

	reachable := reachableFrom(wf, startTaskID)

	for _, t := range wf.Records {
		if t.IsSubtask() {
			continue // synthesized parallel-hostnames subtasks are never declared in the file
		}
		if _, ok := reachable[t.ID]; ok {
			continue
		}
		if t.ID >= handlerRangeLow && t.ID <= handlerRangeHigh {
			continue
		}
		if t.ID >= handlerGroupFloor {
			continue
		}
		errs = append(errs, fieldErr(t.ID, "task", "unreachable from start task"))
	}

	errs = append(errs, checkRoutingTargets(wf)...)
	errs = append(errs, checkSubtaskRouting(wf)...)

	return errs
}

// reachableFrom performs a BFS over every edge TASKER's controller can take:
// on_success/on_failure, the implicit id+1 fallthrough, and
// conditional/parallel subtask lists.
func reachableFrom(wf *types.Workflow, start int) map[int]struct{} {
	seen := map[int]struct{}{}
	queue := []int{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := seen[id]; ok {
			continue
		}
		task, ok := wf.Task(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		for _, next := range outgoingEdges(wf, task) {
			if _, ok := seen[next]; !ok {
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func outgoingEdges(wf *types.Workflow, t *types.TaskRecord) []int {
	var out []int
	if t.OnSuccess != nil {
		out = append(out, *t.OnSuccess)
	}
	if t.OnFailure != nil {
		out = append(out, *t.OnFailure)
	}
	out = append(out, t.IfTrueTasks...)
	out = append(out, t.IfFalseTasks...)
	out = append(out, t.Tasks...)

	if strings.EqualFold(strings.TrimSpace(t.Next), "never") || t.Return != nil {
		return out
	}
	// The controller falls through to id+1 on whichever outcome has no
	// on_success/on_failure target of its own.
	if t.OnSuccess == nil || t.OnFailure == nil {
		if next, ok := wf.Task(t.ID + 1); ok {
			out = append(out, next.ID)
		}
	}
	return out
}

// checkRoutingTargets rejects on_success/on_failure/if_true_tasks/
// if_false_tasks references to task ids that don't exist.
func checkRoutingTargets(wf *types.Workflow) []*types.ValidationError {
	var errs []*types.ValidationError
	check := func(taskID int, field string, target int) {
		if _, ok := wf.Task(target); !ok {
			errs = append(errs, fieldErr(taskID, field, fmt.Sprintf("routes to nonexistent task %d", target)))
		}
	}
	for _, t := range wf.Records {
		if t.OnSuccess != nil {
			check(t.ID, "on_success", *t.OnSuccess)
		}
		if t.OnFailure != nil {
			check(t.ID, "on_failure", *t.OnFailure)
		}
		for _, id := range t.IfTrueTasks {
			check(t.ID, "if_true_tasks", id)
		}
		for _, id := range t.IfFalseTasks {
			check(t.ID, "if_false_tasks", id)
		}
	}
	return errs
}

// checkSubtaskRouting rejects conditional/parallel subtasks that declare
// their own routing fields; subtasks must return control to their parent
//.
func checkSubtaskRouting(wf *types.Workflow) []*types.ValidationError {
	subtaskIDs := map[int]struct{}{}
	for _, t := range wf.Records {
		if t.Type == types.TaskConditional {
			for _, id := range t.IfTrueTasks {
				subtaskIDs[id] = struct{}{}
			}
			for _, id := range t.IfFalseTasks {
				subtaskIDs[id] = struct{}{}
			}
		}
		if t.Type == types.TaskParallel {
			for _, id := range t.Tasks {
				subtaskIDs[id] = struct{}{}
			}
		}
	}

	var errs []*types.ValidationError
	for id := range subtaskIDs {
		sub, ok := wf.Task(id)
		if !ok {
			continue
		}
		if sub.OnSuccess != nil || sub.OnFailure != nil || (sub.Next != "" && !strings.EqualFold(sub.Next, "loop")) {
			errs = append(errs, fieldErr(sub.ID, "next", "subtasks of parallel/conditional blocks may not declare routing"))
		}
	}
	return errs
}

// Warnings reports non-fatal issues: tasks with loop>0 but next != loop,
// where the loop count is declared but never iterated more than once.
func Warnings(wf *types.Workflow) []string {
	var warnings []string
	for _, t := range wf.Records {
		if t.Loop > 0 && !strings.EqualFold(strings.TrimSpace(t.Next), "loop") {
			warnings = append(warnings, fmt.Sprintf("task=%d: loop=%d set but next is not \"loop\"", t.ID, t.Loop))
		}
	}
	return warnings
}
