// ABOUTME: Runtime validation layer: exec-type resolvability and host reachability, each (hostname, exec) pair probed once
// ABOUTME: Optional and skippable independently via --skip-command-validation / --skip-host-validation

package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/bastelbude1/tasker/pkg/types"
)

type hostExecPair struct {
	hostname string
	exec     string
}

func checkRuntime(ctx context.Context, wf *types.Workflow, opts Options) []*types.ValidationError {
	var errs []*types.ValidationError

	seenExec := map[string]bool{}
	seenHost := map[hostExecPair]bool{}

	for _, t := range wf.Records {
		if t.Type != types.TaskNormal && t.Type != types.TaskParallel {
			continue
		}

		execName := t.Exec
		if !opts.SkipCommandValidation && opts.Resolver != nil && !seenExec[execName] {
			seenExec[execName] = true
			if _, ok := opts.Resolver.Resolve(execName); !ok {
				errs = append(errs, fieldErr(t.ID, "exec", fmt.Sprintf("unknown execution type %q", execName)))
			}
		}

		if opts.SkipHostValidation || opts.HostProbe == nil {
			continue
		}
		for _, host := range hostnamesOf(t) {
			pair := hostExecPair{hostname: host, exec: execName}
			if seenHost[pair] {
				continue
			}
			seenHost[pair] = true
			if host == "" || host == "localhost" || strings.Contains(host, "@") {
				continue // templated hostname; only resolvable once cross-task results exist
			}
			if err := opts.HostProbe.Resolve(host); err != nil {
				errs = append(errs, fieldErr(t.ID, "hostname", fmt.Sprintf("%s: DNS resolution failed: %v", host, err)))
				continue
			}
			if opts.ConnectionTest {
				if err := opts.HostProbe.Dial(ctx, host, 5); err != nil {
					errs = append(errs, fieldErr(t.ID, "hostname", fmt.Sprintf("%s: connectivity check failed: %v", host, err)))
				}
			}
		}
	}

	return errs
}

func hostnamesOf(t *types.TaskRecord) []string {
	if len(t.Hostnames) > 0 {
		return t.Hostnames
	}
	if t.Hostname != "" {
		return []string{t.Hostname}
	}
	return nil
}
