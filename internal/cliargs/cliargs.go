// ABOUTME: Shared CLI flag surface and the task-file-prelude merge
// ABOUTME: One Register function feeds both cobra's root command and the prelude parser, so the two surfaces can never drift

package cliargs

import (
	"fmt"
	"io"
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/pflag"
)

// OutputJSONDefault is the sentinel stored when --output-json is given with
// no =PATH; the run resolves it to a path beside the log file.
const OutputJSONDefault = "default"

// Args holds every overridable tasker option. Zero values mean "not set",
// which is what lets mergo layer CLI over file-defined defaults.
type Args struct {
	Run            bool
	Project        string
	LogDir         string
	LogLevel       string
	Debug          bool
	ExecType       string
	TimeoutSeconds int

	ShowPlan               bool
	ValidateOnly           bool
	SkipTaskValidation     bool
	SkipHostValidation     bool
	SkipCommandValidation  bool
	SkipSecurityValidation bool
	SkipValidation         bool
	ConnectionTest         bool

	StartFrom        int
	AutoRecovery     bool
	ShowRecoveryInfo bool

	InstanceCheck bool
	ForceInstance bool

	FireAndForget       bool
	StrictEnvValidation bool
	ShowEffectiveArgs   bool
	OutputJSON          string
	AlertOnFailure      string
}

// Register declares the full tasker flag surface on fs, bound into a. The
// root command and ParsePrelude both call this, so a prelude line accepts
// exactly the flags the command line does.
func Register(fs *pflag.FlagSet, a *Args) {
	fs.BoolVarP(&a.Run, "run", "r", false, "execute the workflow (without this, validate and show the plan only)")
	fs.StringVarP(&a.Project, "project", "p", "", "project name for the TSV summary append")
	fs.StringVarP(&a.LogDir, "log-dir", "l", "", "directory for the timestamped log file")
	fs.StringVar(&a.LogLevel, "log-level", "", "log level (ERROR, WARN, INFO, DEBUG)")
	fs.BoolVarP(&a.Debug, "debug", "d", false, "shortcut for --log-level DEBUG")
	fs.StringVarP(&a.ExecType, "type", "t", "", "default execution type for tasks without exec=")
	fs.IntVarP(&a.TimeoutSeconds, "timeout", "o", 0, "default per-task timeout in seconds")

	fs.BoolVar(&a.ShowPlan, "show-plan", false, "print the execution plan (exits afterwards unless -r is given)")
	fs.BoolVar(&a.ValidateOnly, "validate-only", false, "validate the task file and exit")
	fs.BoolVar(&a.SkipTaskValidation, "skip-task-validation", false, "skip structural and semantic validation")
	fs.BoolVar(&a.SkipHostValidation, "skip-host-validation", false, "skip hostname resolution and connectivity checks")
	fs.BoolVar(&a.SkipCommandValidation, "skip-command-validation", false, "skip execution-type resolution checks")
	fs.BoolVar(&a.SkipSecurityValidation, "skip-security-validation", false, "skip command/argument security scanning")
	fs.BoolVar(&a.SkipValidation, "skip-validation", false, "skip all validation layers")
	fs.BoolVarP(&a.ConnectionTest, "connection-test", "c", false, "probe host connectivity during validation")

	fs.IntVar(&a.StartFrom, "start-from", 0, "task id to begin execution at")
	fs.BoolVar(&a.AutoRecovery, "auto-recovery", false, "persist recovery state and resume from it when present")
	fs.BoolVar(&a.ShowRecoveryInfo, "show-recovery-info", false, "print persisted recovery state and exit")

	fs.BoolVar(&a.InstanceCheck, "instance-check", false, "refuse to run while another instance holds the lock")
	fs.BoolVar(&a.ForceInstance, "force-instance", false, "steal the instance lock from a live holder")

	fs.BoolVar(&a.FireAndForget, "fire-and-forget", false, "detach the workflow and return immediately")
	fs.BoolVar(&a.StrictEnvValidation, "strict-env-validation", false, "fail when a global references an unset environment variable")
	fs.BoolVar(&a.ShowEffectiveArgs, "show-effective-args", false, "print the merged CLI/file-prelude arguments and exit")
	fs.StringVar(&a.OutputJSON, "output-json", "", "write the JSON execution summary (optionally to PATH)")
	fs.StringVar(&a.AlertOnFailure, "alert-on-failure", "", "executable invoked when the workflow fails")

	if f := fs.Lookup("output-json"); f != nil {
		f.NoOptDefVal = OutputJSONDefault
	}
}

// forbiddenPreludeFlags may never appear in a task-file prelude.
var forbiddenPreludeFlags = map[string]bool{
	"-h": true, "--help": true, "--version": true,
}

// ParsePrelude parses the raw prelude lines collected by the task-file
// parser into an Args. Positional arguments and -h/--help/--version are
// rejected; a task file cannot name another task file or short-circuit the
// process.
func ParsePrelude(lines []string) (*Args, error) {
	var tokens []string
	for _, line := range lines {
		tokens = append(tokens, strings.Fields(line)...)
	}
	for _, tok := range tokens {
		name := tok
		if idx := strings.IndexByte(name, '='); idx >= 0 {
			name = name[:idx]
		}
		if forbiddenPreludeFlags[name] {
			return nil, fmt.Errorf("flag %q is not permitted in a task-file prelude", name)
		}
	}

	a := &Args{}
	fs := pflag.NewFlagSet("task-file prelude", pflag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(io.Discard)
	Register(fs, a)
	if err := fs.Parse(tokens); err != nil {
		return nil, fmt.Errorf("task-file prelude: %w", err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("task-file prelude: positional argument %q is not permitted", fs.Arg(0))
	}
	return a, nil
}

// Merge layers file-defined defaults under the CLI's explicit values:
// boolean flags OR-combine, value options keep the CLI's value when set and
// fall back to the file's otherwise.
func Merge(cli, file *Args) (*Args, error) {
	merged := *cli
	if err := mergo.Merge(&merged, *file); err != nil {
		return nil, fmt.Errorf("merge file-defined arguments: %w", err)
	}
	return &merged, nil
}

// String renders a for --show-effective-args: one flag per line, unset
// options omitted, sorted by flag name.
func (a *Args) String() string {
	var b strings.Builder
	tmp := &Args{}
	fs := pflag.NewFlagSet("effective", pflag.ContinueOnError)
	Register(fs, tmp)
	*tmp = *a
	fs.VisitAll(func(f *pflag.Flag) {
		v := f.Value.String()
		if v == "" || v == "false" || v == "0" {
			return
		}
		fmt.Fprintf(&b, "--%s=%s\n", f.Name, v)
	})
	return b.String()
}
