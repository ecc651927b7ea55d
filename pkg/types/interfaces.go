// ABOUTME: Interfaces shared across the parser, validator, executor, and controller packages
// ABOUTME: Kept in pkg/types so implementations in internal/ avoid circular imports

package types

import (
	"context"
	"io"
	"time"
)

// Logger is the structured-logging facade every component depends on, mirroring
// the zerolog-backed wrapper used throughout the rest of this codebase.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	With() LogContext
}

// LogEvent is a single in-progress structured log line.
type LogEvent interface {
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Bool(key string, value bool) LogEvent
	Err(err error) LogEvent
	Msg(message string)
	Msgf(format string, args ...interface{})
}

// LogContext accumulates fields for a derived Logger.
type LogContext interface {
	Str(key, value string) LogContext
	Int(key string, value int) LogContext
	Logger() Logger
}

// HostProbe resolves and reaches hosts for the validator's runtime layer;
// it is the network-touching part of the Runtime Validation layer. The
// executors do not call it.
type HostProbe interface {
	Resolve(hostname string) error
	Dial(ctx context.Context, hostname string, timeout int) error
}

// ResultStore records and retrieves TaskResult values keyed by task id.
type ResultStore interface {
	Put(taskID int, result *TaskResult)
	Get(taskID int) (*TaskResult, bool)
	All() map[int]*TaskResult
}

// EvalContext bundles everything the condition evaluator needs to substitute
// @TOKEN@ references and evaluate a success/next/condition/loop_break
// expression: the task currently being judged, cross-task lookups, and, for
// parallel/conditional parents, the aggregate counters.
type EvalContext struct {
	Globals   GlobalVariables
	Results   ResultStore
	Current   *TaskResult // the result of the task the expression belongs to
	TaskVar   string      // value of the literal @task@ token inside a parallel-hostnames render
	Aggregate *AggregateCounts
}

// ConditionEvaluator evaluates the closed boolean grammar used by
// condition=, success=, next=, and loop_break=, and performs @TOKEN@
// substitution into hostname/command/arguments.
type ConditionEvaluator interface {
	Evaluate(expr string, ctx EvalContext) (bool, error)
	Substitute(input string, ctx EvalContext) (string, error)
}

// StreamingOutputHandler captures a child process's stdout/stderr with the
// memory-to-tempfile switchover and hard cap given by StreamMemoryThreshold
// and StreamHardCap in types.go.
type StreamingOutputHandler interface {
	WriteStdout(p []byte) (int, error)
	WriteStderr(p []byte) (int, error)
	Finish() (stdout, stderr StreamRef, err error)
	Cleanup() error
}

// InstanceLock prevents two invocations of the same task file from running
// concurrently.
type InstanceLock interface {
	Acquire(ctx context.Context) error
	Release() error
}

// TaskExecutor runs one TaskRecord and returns its result. Distinct
// implementations exist per TaskType (normal/parallel/conditional/decision).
type TaskExecutor interface {
	Execute(ctx context.Context, task *TaskRecord, deps ExecDeps) (*TaskResult, error)
}

// ExecTemplate renders argv for a task given its resolved hostname, command,
// and arguments. execconfig.Template implements this.
type ExecTemplate interface {
	Render(hostname, command, arguments string) []string
}

// ExecResolver looks up the argv-rendering template for a named execution
// type, following aliases; "local" always resolves. execconfig.Config
// implements this.
type ExecResolver interface {
	Resolve(execName string) (ExecTemplate, bool)
}

// RunRequest is everything a TaskRunner backend needs to spawn one attempt.
type RunRequest struct {
	Argv    []string
	Env     []string
	Dir     string
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
}

// RunResult is a completed (or failed-to-start) process attempt.
type RunResult struct {
	ExitCode int
	TimedOut bool
	Err      error // non-nil only when the process could not be started at all
}

// TaskRunner spawns the argv ExecConfig rendered for a task and waits for it
// to finish or for ctx/Timeout to expire. Concrete backends (direct spawn,
// shell wrapper, pbrun/p7s/wwrs) are external integrations; this interface is
// their sole contract with the engine.
type TaskRunner interface {
	Run(ctx context.Context, req RunRequest) RunResult
}

// ExecDeps bundles the collaborators every TaskExecutor needs, avoiding a
// sprawling parameter list on Execute.
type ExecDeps struct {
	Results   ResultStore
	Globals   GlobalVariables
	Evaluator ConditionEvaluator
	Logger    Logger
	Resolver  ExecResolver
	Runner    TaskRunner
	HostProbe HostProbe
	DryRun    bool
}
