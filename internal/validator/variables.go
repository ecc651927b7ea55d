// ABOUTME: Variable-resolution layer: every @NAME@ must be a global, a valid qualified cross-task reference, or @task@ in a hostnames= block
// ABOUTME: Shares the token-scanning shape of condition/substitute.go's substitutePass but only classifies, never resolves against live results

package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bastelbude1/tasker/pkg/types"
)

var qualifiedFields = map[string]bool{
	"stdout": true, "stderr": true, "exit": true, "success": true,
	"hostname": true, "duration": true, "stdout_file": true, "stderr_file": true,
	"success_count": true, "failed_count": true, "total_count": true,
}

func checkVariables(wf *types.Workflow) []*types.ValidationError {
	var errs []*types.ValidationError
	for _, t := range wf.Records {
		allowTaskVar := t.Type == types.TaskParallel && len(t.Hostnames) > 0
		for _, field := range []struct {
			name  string
			value string
		}{
			{"hostname", t.Hostname},
			{"command", t.Command},
			{"arguments", t.Arguments},
			{"condition", t.Condition},
			{"success", t.Success},
			{"next", t.Next},
			{"loop_break", t.LoopBreak},
		} {
			for _, tok := range scanTokens(field.value) {
				if err := checkToken(wf, t.ID, field.name, tok, allowTaskVar); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errs
}

// scanTokens extracts every @...@ body from s, in appearance order.
func scanTokens(s string) []string {
	var toks []string
	i := 0
	for i < len(s) {
		if s[i] != '@' {
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], '@')
		if end < 0 {
			break
		}
		toks = append(toks, s[i+1:i+1+end])
		i = i + 1 + end + 1
	}
	return toks
}

func checkToken(wf *types.Workflow, taskID int, field, token string, allowTaskVar bool) *types.ValidationError {
	if token == "task" {
		if allowTaskVar {
			return nil
		}
		return fieldErr(taskID, field, "@task@ is only valid inside a parallel hostnames= block")
	}

	if id, qf, ok := parseQualifiedToken(token); ok {
		if _, exists := wf.Task(id); !exists {
			return fieldErr(taskID, field, fmt.Sprintf("@%s@ references nonexistent task %d", token, id))
		}
		if !qualifiedFields[qf] {
			return fieldErr(taskID, field, fmt.Sprintf("@%s@: unknown field %q", token, qf))
		}
		return nil
	}

	if _, ok := wf.Globals[token]; ok {
		return nil
	}

	return fieldErr(taskID, field, fmt.Sprintf("@%s@ is not a global variable, a valid cross-task reference, or @task@", token))
}

func parseQualifiedToken(token string) (id int, field string, ok bool) {
	idx := strings.IndexByte(token, '_')
	if idx <= 0 {
		return 0, "", false
	}
	idPart := token[:idx]
	for _, r := range idPart {
		if r < '0' || r > '9' {
			return 0, "", false
		}
	}
	n, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, "", false
	}
	return n, token[idx+1:], true
}
