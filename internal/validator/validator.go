// ABOUTME: Validator aggregator: runs the structural/semantic/variable/security/runtime layers in order
// ABOUTME: All layers report everything they find before the run decides to abort, instead of stopping at the first hit

package validator

import (
	"context"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Options mirrors the CLI's --skip-*-validation flag surface.
type Options struct {
	SkipTaskValidation     bool // structural
	SkipHostValidation     bool // runtime: hostname resolution/connectivity
	SkipCommandValidation  bool // runtime: exec type resolves; the binary's presence in PATH is not checked
	SkipSecurityValidation bool
	SkipAll                bool

	// ConnectionTest enables the dial-based reachability probe on top of
	// DNS resolution (-c/--connection-test).
	ConnectionTest bool

	StartTaskID int
	HostProbe   types.HostProbe
	Resolver    types.ExecResolver
}

// Validator runs every layer over a parsed Workflow and accumulates
// diagnostics before deciding whether the workflow may execute.
type Validator struct {
	opts Options
}

func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Run executes all enabled layers and returns the accumulated errors.
// An empty result means the workflow is safe to execute.
func (v *Validator) Run(ctx context.Context, wf *types.Workflow) *types.ValidationErrors {
	result := &types.ValidationErrors{}
	if v.opts.SkipAll {
		return result
	}

	if !v.opts.SkipTaskValidation {
		for _, e := range checkStructural(wf) {
			result.Add(e)
		}
	}

	// Semantic/reachability and variable-reference checks run whenever
	// structural validation does, since both depend only on the parsed
	// tree, not on external state.
	if !v.opts.SkipTaskValidation {
		for _, e := range checkSemantic(wf, v.opts.StartTaskID) {
			result.Add(e)
		}
		for _, e := range checkVariables(wf) {
			result.Add(e)
		}
	}

	if !v.opts.SkipSecurityValidation {
		for _, e := range checkSecurity(wf) {
			result.Add(e)
		}
	}

	if !v.opts.SkipCommandValidation || !v.opts.SkipHostValidation {
		for _, e := range checkRuntime(ctx, wf, v.opts) {
			result.Add(e)
		}
	}

	return result
}
