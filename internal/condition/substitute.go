// ABOUTME: @TOKEN@ substitution into hostname/command/arguments and expression operands
// ABOUTME: Fixed-point loop bounded at types.MaxVariableExpansionPasses, with ARG_MAX truncation for stream references

package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bastelbude1/tasker/internal/stream"
	"github.com/bastelbude1/tasker/pkg/types"
)

var qualifiedFields = map[string]bool{
	"stdout": true, "stderr": true, "exit": true, "success": true,
	"hostname": true, "duration": true, "stdout_file": true, "stderr_file": true,
	"success_count": true, "failed_count": true, "total_count": true,
}

// Substitute replaces every @TOKEN@ in input in a fixed-point loop, up to
// types.MaxVariableExpansionPasses iterations.
func (e *Evaluator) Substitute(input string, ctx types.EvalContext) (string, error) {
	current := input
	for pass := 0; pass < types.MaxVariableExpansionPasses; pass++ {
		next, changed, err := substitutePass(current, ctx)
		if err != nil {
			return "", err
		}
		if !changed {
			return next, nil
		}
		current = next
	}
	return current, nil
}

func substitutePass(input string, ctx types.EvalContext) (string, bool, error) {
	var b strings.Builder
	changed := false
	i := 0
	for i < len(input) {
		if input[i] != '@' {
			b.WriteByte(input[i])
			i++
			continue
		}
		end := strings.IndexByte(input[i+1:], '@')
		if end < 0 {
			b.WriteString(input[i:])
			break
		}
		token := input[i+1 : i+1+end]
		value, ok := resolveToken(token, ctx)
		if !ok {
			// Unresolvable token: leave verbatim, matching the parser's
			// tolerant fallback for un-evaluatable entries.
			b.WriteByte('@')
			b.WriteString(token)
			b.WriteByte('@')
			i = i + 1 + end + 1
			continue
		}
		b.WriteString(value)
		changed = true
		i = i + 1 + end + 1
	}
	return b.String(), changed, nil
}

// resolveToken resolves one @TOKEN@ body: a global variable name, the
// literal "task" inside a parallel-hostnames render, or a qualified
// "<id>_<field>" cross-task reference.
func resolveToken(token string, ctx types.EvalContext) (string, bool) {
	if token == "task" && ctx.TaskVar != "" {
		return ctx.TaskVar, true
	}
	if id, field, ok := parseQualifiedRef(token); ok {
		return resolveQualifiedRef(id, field, ctx)
	}
	if ctx.Globals != nil {
		if v, ok := ctx.Globals[token]; ok {
			return v, true
		}
	}
	return "", false
}

// parseQualifiedRef splits "<digits>_<field>" into its id and field parts.
func parseQualifiedRef(token string) (id int, field string, ok bool) {
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
	field = token[idx+1:]
	if !qualifiedFields[field] {
		return 0, "", false
	}
	n, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, "", false
	}
	return n, field, true
}

func resolveQualifiedRef(id int, field string, ctx types.EvalContext) (string, bool) {
	if ctx.Results == nil {
		return "", false
	}
	result, ok := ctx.Results.Get(id)
	if !ok {
		return "", false
	}
	switch field {
	case "stdout":
		return boundedStream(result.Stdout), true
	case "stderr":
		return boundedStream(result.Stderr), true
	case "stdout_file":
		return result.Stdout.FilePath, true
	case "stderr_file":
		return result.Stderr.FilePath, true
	case "exit":
		return strconv.Itoa(result.ExitCode), true
	case "success":
		return strconv.FormatBool(result.Success), true
	case "hostname":
		return result.Hostname, true
	case "duration":
		return fmt.Sprintf("%.3f", result.Duration.Seconds()), true
	case "success_count":
		if result.Aggregate == nil {
			return "0", true
		}
		return strconv.Itoa(result.Aggregate.SuccessCount), true
	case "failed_count":
		if result.Aggregate == nil {
			return "0", true
		}
		return strconv.Itoa(result.Aggregate.FailedCount), true
	case "total_count":
		if result.Aggregate == nil {
			return "0", true
		}
		return strconv.Itoa(result.Aggregate.TotalCount), true
	}
	return "", false
}

// boundedStream reads a captured stream truncated to ArgMaxSubstitutionCap,
// protecting the eventual child argv from exceeding OS argument limits.
func boundedStream(ref types.StreamRef) string {
	data, err := stream.ReadBounded(ref, types.ArgMaxSubstitutionCap)
	if err != nil {
		return ""
	}
	return string(data)
}
