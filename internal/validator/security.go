// ABOUTME: Security validation layer: null bytes, length limits, shell-metacharacter and path-traversal heuristics
// ABOUTME: Context-aware: shell metacharacters are only flagged when exec != shell

package validator

import (
	"fmt"
	"strings"

	"github.com/bastelbude1/tasker/pkg/types"
)

const (
	hardLengthLimit   = 8192
	nonShellLengthCap = 2000
)

var shellMetachars = []string{";", "|", "&", "$(", "`", ">", "<", "&&", "||", "\n"}

func checkSecurity(wf *types.Workflow) []*types.ValidationError {
	var errs []*types.ValidationError
	for _, t := range wf.Records {
		if t.Command == "" && t.Arguments == "" {
			continue
		}
		errs = append(errs, checkField(t, "command", t.Command)...)
		errs = append(errs, checkField(t, "arguments", t.Arguments)...)
	}
	return errs
}

func checkField(t *types.TaskRecord, field, value string) []*types.ValidationError {
	var errs []*types.ValidationError

	if strings.ContainsRune(value, 0) {
		errs = append(errs, fieldErr(t.ID, field, "contains a null byte"))
	}

	limit := hardLengthLimit
	isShell := strings.EqualFold(t.Exec, "shell") || strings.EqualFold(t.Exec, "bash")
	if !isShell {
		limit = nonShellLengthCap
	}
	if len(value) > limit {
		errs = append(errs, fieldErr(t.ID, field, fmt.Sprintf("exceeds length limit of %d bytes", limit)))
	}

	if !isShell {
		for _, meta := range shellMetachars {
			if strings.Contains(value, meta) {
				errs = append(errs, fieldErr(t.ID, field, fmt.Sprintf("shell metacharacter %q not permitted with exec=%s", meta, fallbackExec(t.Exec))))
				break
			}
		}
	}

	if strings.Contains(value, "../") || strings.Contains(value, "..\\") {
		errs = append(errs, fieldErr(t.ID, field, "contains a path-traversal sequence"))
	}

	if strings.Contains(value, "%n") || strings.Contains(value, "%s%s%s%s") {
		errs = append(errs, fieldErr(t.ID, field, "contains a suspicious format-string sequence"))
	}

	return errs
}

func fallbackExec(exec string) string {
	if exec == "" {
		return "local"
	}
	return exec
}
