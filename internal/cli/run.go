// ABOUTME: The full run lifecycle behind the root command: parse, merge prelude args, validate, plan, lock, execute, summarize, clean up
// ABOUTME: Every terminal outcome maps onto the stable exit-code table and logs a single summary line

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bastelbude1/tasker/internal/cleanup"
	"github.com/bastelbude1/tasker/internal/cliargs"
	"github.com/bastelbude1/tasker/internal/condition"
	"github.com/bastelbude1/tasker/internal/constants"
	"github.com/bastelbude1/tasker/internal/controller"
	"github.com/bastelbude1/tasker/internal/execconfig"
	"github.com/bastelbude1/tasker/internal/executor"
	"github.com/bastelbude1/tasker/internal/hostprobe"
	"github.com/bastelbude1/tasker/internal/lockfile"
	"github.com/bastelbude1/tasker/internal/recovery"
	"github.com/bastelbude1/tasker/internal/resultstore"
	"github.com/bastelbude1/tasker/internal/runner"
	"github.com/bastelbude1/tasker/internal/stream"
	"github.com/bastelbude1/tasker/internal/summary"
	"github.com/bastelbude1/tasker/internal/taskfile"
	"github.com/bastelbude1/tasker/internal/validator"
	"github.com/bastelbude1/tasker/internal/workflowfile"
	"github.com/bastelbude1/tasker/pkg/types"
	"github.com/bastelbude1/tasker/pkg/utils"
)

func runWorkflow(cmd *cobra.Command, args []string) error {
	taskFilePath := args[0]

	parsed := workflowfile.ParsePath(taskFilePath)
	fs, fsPath, err := workflowfile.GetFilesystem(parsed, credentialsFromEnv())
	if err != nil {
		return fail(constants.ExitInvalidArgs, "cannot access %s: %v", taskFilePath, err)
	}

	wf, err := taskfile.New(fs).ParseFile(fsPath)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return fail(constants.ExitTaskFileNotFound, "task file not found: %s", taskFilePath)
		case taskfile.IsEmptyFileError(err):
			return fail(constants.ExitTaskFileEmpty, "task file is empty: %s", taskFilePath)
		default:
			return fail(constants.ExitParseError, "parse %s: %v", taskFilePath, err)
		}
	}

	fileArgs, err := cliargs.ParsePrelude(wf.PreludeRaw)
	if err != nil {
		return fail(constants.ExitInvalidArgs, "%v", err)
	}
	eff, err := cliargs.Merge(&cliArgs, fileArgs)
	if err != nil {
		return fail(constants.ExitInvalidArgs, "%v", err)
	}
	applyEnvDefaults(eff)

	if eff.ShowEffectiveArgs {
		fmt.Print(eff.String())
		return nil
	}

	logDir := eff.LogDir
	if logDir == "" {
		logDir = constants.DefaultLogDir
	}
	level := utils.ParseLevel(eff.LogLevel)
	if eff.Debug {
		level = utils.LevelDebug
	}

	logger, logFilePath, closeLog := buildLogger(eff, level, logDir)
	defer closeLog()

	if eff.StrictEnvValidation && len(wf.MissingEnv) > 0 {
		return fail(constants.ExitTaskFileValidationFailed,
			"unset environment variable(s) referenced: %s", strings.Join(wf.MissingEnv, ", "))
	}

	recoveryPath := recovery.StatePath(filepath.Join(logDir, "recovery"), wf.FilePath)
	if eff.ShowRecoveryInfo {
		return showRecoveryInfo(recoveryPath)
	}

	execCfg, err := execconfig.Load(afero.NewOsFs(), execConfigPath())
	if err != nil {
		return fail(constants.ExitExecTypeValidationFailed, "load exec-type config: %v", err)
	}
	if w := execCfg.Warning(); w != "" {
		logger.Warn().Msg(w)
	}

	if !eff.SkipValidation {
		v := validator.New(validator.Options{
			SkipTaskValidation:     eff.SkipTaskValidation,
			SkipHostValidation:     eff.SkipHostValidation,
			SkipCommandValidation:  eff.SkipCommandValidation,
			SkipSecurityValidation: eff.SkipSecurityValidation,
			ConnectionTest:         eff.ConnectionTest,
			StartTaskID:            eff.StartFrom,
			HostProbe:              hostprobe.New(),
			Resolver:               execCfg,
		})
		diags := v.Run(cmd.Context(), wf)
		for _, w := range validator.Warnings(wf) {
			logger.Warn().Msg(w)
		}
		if diags.HasErrors() {
			for _, e := range diags.Errors {
				logger.Error().Msg(e.Error())
			}
			return fail(validationExitCode(diags), "%d validation error(s) in %s", len(diags.Errors), taskFilePath)
		}
		logger.Info().Str("task_file", taskFilePath).Int("tasks", len(wf.Records)).Msg("validation passed")
	}

	if eff.ValidateOnly {
		return nil
	}

	if eff.ShowPlan || !eff.Run {
		printPlan(wf)
		if !eff.Run {
			return nil
		}
	}

	if eff.FireAndForget {
		return detachAndForget(logger)
	}

	cleanupMgr := cleanup.New()
	defer cleanupMgr.Run(logger)

	if eff.InstanceCheck {
		data, rerr := afero.ReadFile(fs, fsPath)
		if rerr != nil {
			return fail(constants.ExitTaskFileNotFound, "reread task file for lock hash: %v", rerr)
		}
		lock := lockfile.New(constants.DefaultLockDir, lockfile.HashKey(data, wf.Globals), eff.ForceInstance)
		if lerr := lock.Acquire(cmd.Context()); lerr != nil {
			if we, ok := types.AsWorkflowError(lerr); ok {
				return we
			}
			return fail(constants.ExitInstanceAlreadyRunning, "acquire instance lock: %v", lerr)
		}
		cleanupMgr.SetLock(lock)
	}

	executionID := summary.NewExecutionID()
	logger = utils.NewWorkflowLogger(logger, executionID)

	startFrom := eff.StartFrom
	var recoveryWriter controller.RecoveryWriter
	if eff.AutoRecovery {
		if st, ok, rerr := recovery.Read(afero.NewOsFs(), recoveryPath); rerr == nil && ok {
			startFrom = st.CurrentTask
			logger.Info().Int("task", st.CurrentTask).Str("recorded_at", st.UpdatedAt).Msg("resuming from recovery state")
		}
		recoveryWriter = recovery.NewWriter(afero.NewOsFs(), recoveryPath, wf.FilePath, executionID, logFilePath)
	}

	store := resultstore.New()
	evaluator := condition.New()
	common := &executor.Common{
		Workflow:       wf,
		Globals:        wf.Globals,
		Results:        store,
		Evaluator:      evaluator,
		Resolver:       execCfg,
		Runner:         runner.New(),
		HostProbe:      hostprobe.New(),
		Logger:         logger,
		Cleanup:        cleanupMgr,
		DefaultTimeout: time.Duration(eff.TimeoutSeconds) * time.Second,
		DefaultExec:    eff.ExecType,
	}
	executors := map[types.TaskType]types.TaskExecutor{
		types.TaskNormal:      executor.NewSequential(common),
		types.TaskParallel:    executor.NewParallel(common),
		types.TaskConditional: executor.NewConditional(common),
		types.TaskDecision:    executor.NewDecision(common),
	}

	ctl := controller.New(controller.Config{
		Workflow:    wf,
		Executors:   executors,
		Results:     store,
		Evaluator:   evaluator,
		Globals:     wf.Globals,
		Logger:      logger,
		Recovery:    recoveryWriter,
		StartTaskID: startFrom,
	})

	startTime := time.Now()
	run, runErr := ctl.Run(context.Background())
	endTime := time.Now()
	if runErr != nil {
		logger.Error().Err(runErr).Msg("workflow aborted by internal error")
		run = &controller.Run{ExitCode: constants.ExitGenericTaskFailure}
	}

	finalize(eff, wf, run, runErr, store, logger, finalizeInfo{
		executionID:  executionID,
		logDir:       logDir,
		logFilePath:  logFilePath,
		recoveryPath: recoveryPath,
		startTime:    startTime,
		endTime:      endTime,
	})

	exitCode = run.ExitCode
	return nil
}

// buildLogger selects a console-only or console+file sink. The log file is
// only opened for an actual run; validation and planning stay on stderr.
func buildLogger(eff *cliargs.Args, level utils.LogLevel, logDir string) (types.Logger, string, func()) {
	if !eff.Run || eff.ValidateOnly || eff.ShowRecoveryInfo {
		return utils.NewLogger(level, os.Stderr), "", func() {}
	}
	f, path, err := utils.OpenLogFile(logDir, time.Now())
	if err != nil {
		l := utils.NewLogger(level, os.Stderr)
		l.Warn().Err(err).Msg("cannot open log file; logging to stderr only")
		return l, "", func() {}
	}
	return utils.NewFileLogger(level, os.Stderr, f), path, func() { _ = f.Close() }
}

// validationExitCode picks the most specific exit code the diagnostics
// support: hostname resolution (23) and connectivity (22) outrank host
// validation (21), exec-type problems map to 24, everything else to 20.
func validationExitCode(diags *types.ValidationErrors) int {
	code := constants.ExitTaskFileValidationFailed
	for _, e := range diags.Errors {
		switch {
		case e.Field == "hostname" && strings.Contains(e.Message, "DNS resolution"):
			return constants.ExitHostnameResolutionFailed
		case e.Field == "hostname" && strings.Contains(e.Message, "connectivity"):
			return constants.ExitHostConnectionFailed
		case e.Field == "hostname":
			code = constants.ExitHostValidationFailed
		case e.Field == "exec":
			code = constants.ExitExecTypeValidationFailed
		}
	}
	return code
}

// printPlan writes the execution plan for --show-plan and plain (no -r)
// invocations.
func printPlan(wf *types.Workflow) {
	fmt.Printf("Execution plan for %s (%d tasks):\n", wf.FilePath, len(wf.Records))
	for _, t := range wf.Records {
		var detail string
		switch t.Type {
		case types.TaskParallel:
			if len(t.Hostnames) > 0 {
				detail = fmt.Sprintf("%s across %d hosts (max_parallel=%d)", t.Command, len(t.Hostnames), t.MaxParallel)
			} else {
				detail = fmt.Sprintf("subtasks %v (max_parallel=%d)", t.Tasks, t.MaxParallel)
			}
		case types.TaskConditional:
			detail = fmt.Sprintf("if %s then %v else %v", t.Condition, t.IfTrueTasks, t.IfFalseTasks)
		case types.TaskDecision:
			detail = fmt.Sprintf("decide %s", t.Success)
		case types.TaskReturn:
			detail = fmt.Sprintf("return %d", *t.Return)
		default:
			detail = strings.TrimSpace(t.Command + " " + t.Arguments)
			if t.Hostname != "" {
				detail = fmt.Sprintf("%s on %s", detail, t.Hostname)
			}
		}
		routing := ""
		if t.OnSuccess != nil {
			routing += fmt.Sprintf(" on_success=%d", *t.OnSuccess)
		}
		if t.OnFailure != nil {
			routing += fmt.Sprintf(" on_failure=%d", *t.OnFailure)
		}
		if t.Next != "" {
			routing += fmt.Sprintf(" next=%s", t.Next)
		}
		fmt.Printf("  %4d  %-12s %s%s\n", t.ID, t.Type, detail, routing)
	}
}

// showRecoveryInfo prints the persisted recovery state, if any.
func showRecoveryInfo(path string) error {
	st, ok, err := recovery.Read(afero.NewOsFs(), path)
	if err != nil {
		return fail(constants.ExitInvalidArgs, "read recovery state: %v", err)
	}
	if !ok {
		fmt.Println("No recovery state found.")
		return nil
	}
	fmt.Printf("Recovery state for %s:\n", st.TaskFile)
	fmt.Printf("  execution_id: %s\n", st.ExecutionID)
	fmt.Printf("  current_task: %d\n", st.CurrentTask)
	fmt.Printf("  updated_at:   %s\n", st.UpdatedAt)
	if st.LogFile != "" {
		fmt.Printf("  log_file:     %s\n", st.LogFile)
	}
	return nil
}

// detachAndForget re-invokes this binary without --fire-and-forget as a
// detached child and returns immediately.
func detachAndForget(logger types.Logger) error {
	var childArgs []string
	for _, a := range os.Args[1:] {
		if a == "--fire-and-forget" {
			continue
		}
		childArgs = append(childArgs, a)
	}
	child := exec.Command(os.Args[0], childArgs...)
	child.Stdout = nil
	child.Stderr = nil
	child.Stdin = nil
	if err := child.Start(); err != nil {
		return fail(constants.ExitGenericTaskFailure, "fire-and-forget: start detached run: %v", err)
	}
	logger.Info().Int("pid", child.Process.Pid).Msg("workflow detached")
	// Release the child so its exit never needs this process to reap it.
	return child.Process.Release()
}

type finalizeInfo struct {
	executionID  string
	logDir       string
	logFilePath  string
	recoveryPath string
	startTime    time.Time
	endTime      time.Time
}

// finalize logs the single terminal summary line and writes the JSON and
// TSV artifacts plus the failure alert.
func finalize(eff *cliargs.Args, wf *types.Workflow, run *controller.Run, runErr error, store *resultstore.Store, logger types.Logger, info finalizeInfo) {
	status := statusString(run)
	finalTask := 0
	if n := len(run.ExecutionPath); n > 0 {
		finalTask = run.ExecutionPath[n-1]
	}

	logger.Info().
		Str("status", status).
		Int("exit_code", run.ExitCode).
		Int("final_task", finalTask).
		Int("executed", len(run.ExecutionPath)).
		Msg("workflow finished")

	jsonPath := eff.OutputJSON
	if jsonPath == "" && eff.AutoRecovery {
		jsonPath = cliargs.OutputJSONDefault
	}
	if jsonPath == cliargs.OutputJSONDefault {
		jsonPath = filepath.Join(info.logDir, fmt.Sprintf("tasker_%s.json", info.executionID))
	}
	if jsonPath != "" {
		failureInfo := ""
		if runErr != nil {
			failureInfo = runErr.Error()
		} else if run.ExitCode != 0 {
			failureInfo = fmt.Sprintf("terminated at task %d with exit code %d", finalTask, run.ExitCode)
		}
		doc := summary.Build(info.executionID, wf.FilePath, info.startTime, info.endTime, status,
			run.ExecutionPath, finalTask, failureInfo, store.All(), wf.Globals, boundedStreamString)
		doc.WorkflowMetadata.LogFile = info.logFilePath
		if err := summary.Write(jsonPath, doc); err != nil {
			logger.Warn().Err(err).Str("path", jsonPath).Msg("failed to write JSON summary")
		}
	}

	if eff.Project != "" {
		finalHost, finalCommand := "", ""
		if r, ok := store.Get(finalTask); ok {
			finalHost = r.Hostname
		}
		if t, ok := wf.Task(finalTask); ok {
			finalCommand = t.Command
		}
		rec := summary.ProjectRecord{
			Timestamp:    info.endTime,
			Status:       status,
			ExitCode:     run.ExitCode,
			TaskFile:     wf.FilePath,
			FinalTaskID:  finalTask,
			FinalHost:    finalHost,
			FinalCommand: finalCommand,
			LogFileRef:   info.logFilePath,
		}
		path := filepath.Join(info.logDir, "project", eff.Project+".summary")
		if err := summary.AppendProjectRecord(path, rec); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to append project summary")
		}
	}

	if run.ExitCode != 0 && eff.AlertOnFailure != "" {
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}
		cleanup.AlertOnFailure(logger, eff.AlertOnFailure, map[string]string{
			"TASKER_LOG_FILE":    info.logFilePath,
			"TASKER_STATE_FILE":  info.recoveryPath,
			"TASKER_TASK_FILE":   wf.FilePath,
			"TASKER_FAILED_TASK": fmt.Sprintf("%d", finalTask),
			"TASKER_EXIT_CODE":   fmt.Sprintf("%d", run.ExitCode),
			"TASKER_ERROR":       errMsg,
			"TASKER_TIMESTAMP":   info.endTime.UTC().Format(time.RFC3339),
		})
	}
}

func statusString(run *controller.Run) string {
	switch {
	case run.Interrupted:
		return "INTERRUPTED"
	case run.ExitCode == constants.ExitTaskTimeout:
		return "TIMEOUT"
	case run.ExitCode == 0:
		return "SUCCESS"
	default:
		return "FAILED"
	}
}

// boundedStreamString renders a captured stream for the JSON artifact,
// bounded the same way argv substitution is.
func boundedStreamString(ref types.StreamRef) string {
	data, err := stream.ReadBounded(ref, types.ArgMaxSubstitutionCap)
	if err != nil {
		return ""
	}
	return string(data)
}

// credentialsFromEnv populates remote-filesystem credentials from the
// conventional environment variables.
func credentialsFromEnv() workflowfile.Credentials {
	return workflowfile.Credentials{
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          os.Getenv("AWS_REGION"),
		SSHUser:            os.Getenv("TASKER_SSH_USER"),
		SSHPassword:        os.Getenv("TASKER_SSH_PASSWORD"),
		SSHKeyFile:         os.Getenv("TASKER_SSH_KEY_FILE"),
		SSHPassphrase:      os.Getenv("TASKER_SSH_KEY_PASSPHRASE"),
	}
}
