// ABOUTME: Process-wide constants that don't belong to any single package
// ABOUTME: Centralizes exit codes and default paths so no package carries its own magic numbers

package constants

// Exit codes, stable across releases (never renumber).
const (
	ExitSuccess                  = 0
	ExitGenericTaskFailure       = 1
	ExitInvalidArgs              = 10
	ExitTaskFileNotFound         = 11
	ExitTaskFileEmpty            = 12
	ExitParseError               = 13
	ExitSequentialNextNotMet     = 14
	ExitInterruptedBySignal      = 15
	ExitParallelBlockFailed      = 16
	ExitConditionalBranchFailed  = 17
	ExitTaskFailedFinal          = 18
	ExitDependencyFailed         = 19
	ExitTaskFileValidationFailed = 20
	ExitHostValidationFailed     = 21
	ExitHostConnectionFailed     = 22
	ExitHostnameResolutionFailed = 23
	ExitExecTypeValidationFailed = 24
	ExitInstanceAlreadyRunning   = 25
	ExitTaskTimeout              = 124
	ExitUserInterrupt            = 130
)

// Default locations, overridable via CLI flags or environment variables.
const (
	DefaultLogDir        = "/var/log/tasker"
	DefaultSummaryDir    = "/var/log/tasker/summaries"
	DefaultLockDir       = "/var/run/tasker"
	DefaultExecConfig    = "/etc/tasker/exec_types.yaml"
	EnvPrefix            = "TASKER"
	DefaultMasterTimeout = 86400 // 24h, seconds
)
