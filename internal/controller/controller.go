// ABOUTME: The pc-driven run loop: dispatches each task to its strategy, stores the result, routes to the next id, honors signals and the master timeout
// ABOUTME: Single-threaded: one executor at a time; concurrency lives inside the parallel strategy, never here

package controller

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bastelbude1/tasker/internal/constants"
	"github.com/bastelbude1/tasker/pkg/types"
)

// RecoveryWriter persists and clears the "currently executing task id" marker
// used by --auto-recovery to resume a workflow at the task it was on when
// interrupted.
type RecoveryWriter interface {
	WriteState(taskID int) error
	Clear() error
}

// Config bundles everything the Controller needs beyond the parsed Workflow
// itself.
type Config struct {
	Workflow      *types.Workflow
	Executors     map[types.TaskType]types.TaskExecutor
	Results       types.ResultStore
	Evaluator     types.ConditionEvaluator
	Globals       types.GlobalVariables
	Logger        types.Logger
	Recovery      RecoveryWriter // nil disables recovery-state tracking
	MasterTimeout time.Duration  // 0 means constants-level default
	StartTaskID   int
}

// Run is the terminal outcome of a Controller.Run call.
type Run struct {
	ExitCode      int
	ExecutionPath []int
	Interrupted   bool
}

// Controller drives task execution from the start id until a route
// terminates the workflow, a signal arrives, or the master timeout expires.
type Controller struct {
	workflow      *types.Workflow
	executors     map[types.TaskType]types.TaskExecutor
	results       types.ResultStore
	evaluator     types.ConditionEvaluator
	globals       types.GlobalVariables
	logger        types.Logger
	recovery      RecoveryWriter
	masterTimeout time.Duration
	startTaskID   int
}

// New builds a Controller from cfg.
func New(cfg Config) *Controller {
	timeout := cfg.MasterTimeout
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultMasterTimeout) * time.Second
	}
	return &Controller{
		workflow:      cfg.Workflow,
		executors:     cfg.Executors,
		results:       cfg.Results,
		evaluator:     cfg.Evaluator,
		globals:       cfg.Globals,
		logger:        cfg.Logger,
		recovery:      cfg.Recovery,
		masterTimeout: timeout,
		startTaskID:   cfg.StartTaskID,
	}
}

func (c *Controller) evalCtx(result *types.TaskResult) types.EvalContext {
	return types.EvalContext{
		Globals: c.globals,
		Results: c.results,
		Current: result,
	}
}

// Run drives the workflow to completion. When err is nil, Run.ExitCode
// follows the stable exit-code table. A non-nil err carries internal
// failures (evaluator errors, unknown task types) distinct from a workflow
// that merely routed to a non-zero exit, and the returned *Run is then nil.
func (c *Controller) Run(ctx context.Context) (*Run, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.masterTimeout)
	defer cancel()

	sigCtx, sigCancel, signalExitCode := withSignalHandling(runCtx)
	defer sigCancel()

	current := c.workflow.StartTaskID(intPtrOrNil(c.startTaskID))
	var path []int

	for {
		if sigCtx.Err() != nil {
			return &Run{ExitCode: int(signalExitCode.Load()), ExecutionPath: path, Interrupted: true}, nil
		}

		task, ok := c.workflow.Task(current)
		if !ok {
			if c.logger != nil {
				c.logger.Error().Int("task", current).Msg("routed to a task id that does not exist")
			}
			return &Run{ExitCode: constants.ExitTaskFailedFinal, ExecutionPath: path}, nil
		}

		if c.recovery != nil {
			if err := c.recovery.WriteState(task.ID); err != nil && c.logger != nil {
				c.logger.Warn().Err(err).Msg("failed to persist recovery state")
			}
		}

		if task.Type == types.TaskReturn {
			path = append(path, task.ID)
			exitCode := 0
			if task.Return != nil {
				exitCode = *task.Return
			}
			c.clearRecovery()
			return &Run{ExitCode: exitCode, ExecutionPath: path}, nil
		}

		executor, ok := c.executors[task.Type]
		if !ok {
			return nil, &unknownTaskTypeError{taskType: task.Type}
		}

		result, err := executor.Execute(sigCtx, task, types.ExecDeps{
			Results:   c.results,
			Globals:   c.globals,
			Evaluator: c.evaluator,
			Logger:    c.logger,
		})
		if err != nil {
			return nil, err
		}
		c.results.Put(task.ID, result)
		path = append(path, task.ID)

		if sigCtx.Err() != nil {
			return &Run{ExitCode: int(signalExitCode.Load()), ExecutionPath: path, Interrupted: true}, nil
		}

		outcome, rerr := c.route(task, result)
		if rerr != nil {
			return nil, rerr
		}
		if outcome.terminate {
			c.clearRecovery()
			return &Run{ExitCode: outcome.exitCode, ExecutionPath: path}, nil
		}
		current = outcome.nextID
	}
}

func (c *Controller) clearRecovery() {
	if c.recovery == nil {
		return
	}
	if err := c.recovery.Clear(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Msg("failed to clear recovery state")
	}
}

func intPtrOrNil(id int) *int {
	if id == 0 {
		return nil
	}
	return &id
}

// withSignalHandling derives a cancellable context from parent that cancels
// on SIGINT (exit 130, the POSIX convention) or SIGTERM (exit 15).
func withSignalHandling(parent context.Context) (context.Context, context.CancelFunc, *atomic.Int32) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var exitCode atomic.Int32
	exitCode.Store(constants.ExitInterruptedBySignal)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			if sig == os.Interrupt {
				exitCode.Store(constants.ExitUserInterrupt)
			}
			cancel()
		case <-done:
		}
	}()

	return ctx, func() {
		close(done)
		signal.Stop(sigCh)
		cancel()
	}, &exitCode
}

type unknownTaskTypeError struct {
	taskType types.TaskType
}

func (e *unknownTaskTypeError) Error() string {
	return "unknown task type: " + string(e.taskType)
}
