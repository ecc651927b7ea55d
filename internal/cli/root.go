// ABOUTME: Root command and CLI setup for the tasker workflow engine
// ABOUTME: Registers the flag surface, binds environment defaults, and maps terminal errors onto the stable exit-code table

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bastelbude1/tasker/internal/cliargs"
	"github.com/bastelbude1/tasker/internal/constants"
	"github.com/bastelbude1/tasker/pkg/types"
)

var (
	cliArgs  cliargs.Args
	exitCode int
)

// rootCmd is the single tasker command: one positional task file plus flags.
var rootCmd = &cobra.Command{
	Use:   "tasker [flags] task_file",
	Short: "A declarative workflow executor for shell commands across hosts",
	Long: `Tasker executes workflows described as ordered task records in a
plain-text key=value file: sequential tasks with routing, parallel fan-out
across hosts, conditional branches, decision nodes, retry and timeout
handling, and cross-task variable substitution.

Without -r/--run, tasker validates the task file and prints the execution
plan. File-defined arguments in the task file's prelude are merged with the
command line (boolean flags OR-combine, value options prefer the CLI).

Examples:
  tasker -r deploy.tasker                 Validate and execute a workflow
  tasker deploy.tasker                    Validate and show the plan only
  tasker -r -p nightly deploy.tasker      Execute and append the project summary
  tasker --validate-only deploy.tasker    Validate without planning or running
  tasker -r --start-from 5 deploy.tasker  Resume execution at task 5`,
	Version:       "1.0.0",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWorkflow,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if we, ok := types.AsWorkflowError(err); ok {
			fmt.Fprintf(os.Stderr, "Error: %s\n", we.Message)
			return we.ExitCode
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return constants.ExitInvalidArgs
	}
	return exitCode
}

func init() {
	cliargs.Register(rootCmd.Flags(), &cliArgs)

	// Environment defaults, overridable by CLI and file-prelude flags.
	_ = viper.BindEnv("type", "TASK_EXECUTOR_TYPE")
	_ = viper.BindEnv("log-dir", "TASK_EXECUTOR_LOG")
	_ = viper.BindEnv("timeout", "TASK_EXECUTOR_TIMEOUT")
	_ = viper.BindEnv("exec-config", "TASKER_EXEC_CONFIG")
}

// applyEnvDefaults fills any option still unset after the CLI/file merge
// from the bound environment variables.
func applyEnvDefaults(a *cliargs.Args) {
	if a.ExecType == "" {
		a.ExecType = viper.GetString("type")
	}
	if a.LogDir == "" {
		a.LogDir = viper.GetString("log-dir")
	}
	if a.TimeoutSeconds == 0 {
		a.TimeoutSeconds = viper.GetInt("timeout")
	}
}

// execConfigPath resolves the execution-type template file location.
func execConfigPath() string {
	if p := viper.GetString("exec-config"); p != "" {
		return p
	}
	return constants.DefaultExecConfig
}

// fail wraps a terminal condition with its stable exit code.
func fail(code int, format string, args ...interface{}) error {
	return types.NewWorkflowError(code, fmt.Sprintf(format, args...), nil)
}
