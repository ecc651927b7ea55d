// ABOUTME: Three-phase scanner for the TASKER key=value task-file format
// ABOUTME: Produces a types.Workflow from prelude args, global variables, and task records

package taskfile

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/bastelbude1/tasker/pkg/types"
)

// reservedFieldNames are task-record keys; they can never become global
// variable names.
var reservedFieldNames = map[string]bool{
	"task": true, "hostname": true, "command": true, "arguments": true,
	"success": true, "condition": true, "exec": true, "timeout": true,
	"next": true, "on_success": true, "on_failure": true, "loop": true,
	"loop_break": true, "sleep": true, "return": true, "type": true,
	"tasks": true, "hostnames": true, "if_true_tasks": true, "if_false_tasks": true,
	"max_parallel": true, "retry_count": true, "retry_delay": true,
	"stdout_split": true, "stderr_split": true,
}

// Parser reads a task file over an afero.Fs, the way remote task files (s3://,
// sftp://) resolve through the same filesystem abstraction as local ones.
type Parser struct {
	fs afero.Fs
}

// New builds a Parser over fs. Pass afero.NewOsFs() for local files.
func New(fs afero.Fs) *Parser {
	return &Parser{fs: fs}
}

// ParseFile reads filePath and parses it.
func (p *Parser) ParseFile(filePath string) (*types.Workflow, error) {
	exists, err := afero.Exists(p.fs, filePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, os.ErrNotExist
	}
	data, err := afero.ReadFile(p.fs, filePath)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyFile
	}
	return p.Parse(filePath, data)
}

var errEmptyFile = fmt.Errorf("task file is empty")

// IsEmptyFileError reports whether err is the empty-task-file sentinel, so
// the CLI can map it to ExitTaskFileEmpty rather than ExitParseError.
func IsEmptyFileError(err error) bool {
	return err == errEmptyFile
}

type phase int

const (
	phasePrelude phase = iota
	phaseGlobals
	phaseTasks
)

// Parse runs the three-phase scan (argument prelude, global variables, task
// records) over raw file data.
func (p *Parser) Parse(filePath string, data []byte) (*types.Workflow, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var prelude []string
	globals := types.GlobalVariables{}
	var records []*types.TaskRecord
	seenIDs := map[int]bool{}
	missingEnv := map[string]bool{}

	cur := phasePrelude
	var curRecord *types.TaskRecord
	lineNo := 0
	preludeDone := false

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		if cur == phasePrelude && !preludeDone {
			if strings.HasPrefix(line, "-") {
				prelude = append(prelude, line)
				continue
			}
			// first non-comment, non-prelude line: fall through to globals/tasks
			preludeDone = true
			cur = phaseGlobals
		}

		key, value, ok := splitKV(line)
		if !ok {
			return nil, types.NewParseError(filePath, lineNo, fmt.Sprintf("malformed line: %q", raw), nil)
		}

		if key == "task" {
			id, err := strconv.Atoi(value)
			if err != nil {
				return nil, types.NewParseError(filePath, lineNo, fmt.Sprintf("task= value %q is not an integer", value), err)
			}
			if seenIDs[id] {
				return nil, types.NewParseError(filePath, lineNo, fmt.Sprintf("duplicate task id %d", id), nil)
			}
			seenIDs[id] = true
			if curRecord != nil {
				records = append(records, curRecord)
			}
			curRecord = &types.TaskRecord{ID: id, LineNumber: lineNo, MaxParallel: types.DefaultMaxParallel}
			cur = phaseTasks
			continue
		}

		if cur == phaseTasks {
			if err := applyField(curRecord, key, value, filePath, lineNo, missingEnv); err != nil {
				return nil, err
			}
			continue
		}

		// phaseGlobals
		if reservedFieldNames[key] {
			return nil, types.NewParseError(filePath, lineNo, fmt.Sprintf("reserved field name %q cannot be a global variable", key), nil)
		}
		globals[key] = expandEnv(value, missingEnv)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if curRecord != nil {
		records = append(records, curRecord)
	}

	for _, r := range records {
		deriveType(r)
	}

	wf := types.NewWorkflow(filePath, prelude, globals, records)
	for name := range missingEnv {
		wf.MissingEnv = append(wf.MissingEnv, name)
	}
	sort.Strings(wf.MissingEnv)
	return wf, nil
}

// splitKV splits a "key=value" line on the first '='.
func splitKV(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// expandEnv applies $NAME and ${NAME} expansion once at parse time,
// recording referenced names that were unset.
func expandEnv(value string, missing map[string]bool) string {
	return os.Expand(value, func(name string) string {
		v, ok := os.LookupEnv(name)
		if !ok && missing != nil {
			missing[name] = true
		}
		return v
	})
}

func splitIDList(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid task id %q", part)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

func splitStringList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func applyField(r *types.TaskRecord, key, value, filePath string, lineNo int, missingEnv map[string]bool) error {
	perr := func(msg string) error { return types.NewParseError(filePath, lineNo, msg, nil) }

	switch key {
	case "hostname":
		r.Hostname = expandEnv(value, missingEnv)
	case "command":
		r.Command = expandEnv(value, missingEnv)
	case "arguments":
		r.Arguments = expandEnv(value, missingEnv)
	case "exec":
		r.Exec = value
	case "timeout":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("timeout must be an integer")
		}
		r.Timeout = n
	case "sleep":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("sleep must be an integer")
		}
		r.Sleep = n
	case "loop":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("loop must be an integer")
		}
		r.Loop = n
	case "loop_break":
		r.LoopBreak = value
	case "condition":
		r.Condition = value
	case "success":
		r.Success = value
	case "next":
		r.Next = value
	case "on_success":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("on_success must be an integer task id")
		}
		r.OnSuccess = &n
	case "on_failure":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("on_failure must be an integer task id")
		}
		r.OnFailure = &n
	case "return":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("return must be an integer exit code")
		}
		r.Return = &n
	case "type":
		r.Type = types.TaskType(value)
	case "stdout_split":
		r.StdoutSplit = value
	case "stderr_split":
		r.StderrSplit = value
	case "tasks":
		ids, err := splitIDList(value)
		if err != nil {
			return perr(err.Error())
		}
		r.Tasks = ids
	case "hostnames":
		r.Hostnames = splitStringList(value)
	case "max_parallel":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("max_parallel must be an integer")
		}
		r.MaxParallel = n
	case "if_true_tasks":
		ids, err := splitIDList(value)
		if err != nil {
			return perr(err.Error())
		}
		r.IfTrueTasks = ids
	case "if_false_tasks":
		ids, err := splitIDList(value)
		if err != nil {
			return perr(err.Error())
		}
		r.IfFalseTasks = ids
	case "retry_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("retry_count must be an integer")
		}
		r.RetryCount = n
	case "retry_delay":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perr("retry_delay must be an integer")
		}
		r.RetryDelay = n
	default:
		// Unknown field: ignored. No warning is recorded, and no mode rejects it.
	}
	return nil
}

// deriveType infers TaskType from populated fields when `type=` was absent.
func deriveType(r *types.TaskRecord) {
	if r.Type != "" {
		return
	}
	switch {
	case r.Return != nil:
		r.Type = types.TaskReturn
	case len(r.Tasks) > 0 || len(r.Hostnames) > 0:
		r.Type = types.TaskParallel
	case len(r.IfTrueTasks) > 0 || len(r.IfFalseTasks) > 0:
		r.Type = types.TaskConditional
	case r.Command == "" && r.Hostname == "" && r.Success != "":
		r.Type = types.TaskDecision
	default:
		r.Type = types.TaskNormal
	}
}
