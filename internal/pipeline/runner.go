package pipeline

import (
	"context"
	"fmt"
)

// StackDefinition points at the declared stack the update stage applies. Its
// contents are opaque to the orchestrator; it is passed through to the stack
// engine as-is.
type StackDefinition struct {
	StackName string
	AppDir    string
	// RequireApproval mirrors cdk's --require-approval values. The default
	// "never" auto-approves all changes, including destructive ones. That is
	// a deliberate operator choice to keep deployment unattended.
	RequireApproval string
}

const (
	ApprovalNever      = "never"
	ApprovalBroadening = "broadening"
	ApprovalAnyChange  = "any-change"
)

// StackEngine is the external stack-management collaborator. Both calls are
// long-running and block until the target converges or fails.
type StackEngine interface {
	Bootstrap(ctx context.Context, cfg *Config) error
	Deploy(ctx context.Context, cfg *Config, def StackDefinition) error
}

// ImageResolver resolves a service unit name to a deployable container image
// reference in the target registry.
type ImageResolver interface {
	ResolveImage(ctx context.Context, cfg *Config, unit string) (string, error)
}

type Runner struct {
	engine   StackEngine
	resolver ImageResolver
	output   func(string)
}

func NewRunner(engine StackEngine, resolver ImageResolver) *Runner {
	return &Runner{engine: engine, resolver: resolver}
}

// SetOutput directs human-readable progress lines to fn. Secrets are never
// written to the sink.
func (r *Runner) SetOutput(fn func(string)) {
	r.output = fn
}

func (r *Runner) emit(format string, args ...any) {
	if r.output != nil {
		r.output(fmt.Sprintf(format, args...))
	}
}

// Run executes the two pipeline stages in strict order. The update stage is
// invoked if and only if the bootstrap stage reported success; there is no
// parallelism and no retry. The returned results are ordered by stage, and
// err is the error of the failing stage, if any.
func (r *Runner) Run(
	ctx context.Context,
	cfg *Config,
	def StackDefinition,
) ([]StageResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if def.RequireApproval == "" {
		def.RequireApproval = ApprovalNever
	}

	results := make([]StageResult, 0, 2)

	r.emit("Bootstrapping environment %s\n", cfg.Environment())
	if err := r.engine.Bootstrap(ctx, cfg); err != nil {
		results = append(results, StageResult{
			Stage:       StageBootstrap,
			Status:      StatusFailure,
			ErrorDetail: err.Error(),
		})
		r.emit("Bootstrap failed: %s\n", err)
		return results, err
	}
	results = append(results, StageResult{
		Stage:  StageBootstrap,
		Status: StatusSuccess,
	})
	r.emit("Environment %s is ready\n", cfg.Environment())

	if err := r.update(ctx, cfg, def); err != nil {
		results = append(results, StageResult{
			Stage:       StageUpdate,
			Status:      StatusFailure,
			ErrorDetail: err.Error(),
		})
		r.emit("Update failed: %s\n", err)
		return results, err
	}
	results = append(results, StageResult{
		Stage:  StageUpdate,
		Status: StatusSuccess,
	})
	r.emit("Stack %s converged\n", def.StackName)

	return results, nil
}

// update resolves one image per service unit before handing the stack
// definition to the engine. A dangling reference is a ValidationError of the
// update stage: the stack definition would deploy an image that does not
// exist.
func (r *Runner) update(ctx context.Context, cfg *Config, def StackDefinition) error {
	for _, unit := range cfg.ServiceUnits {
		ref, err := r.resolver.ResolveImage(ctx, cfg, unit)
		if err != nil {
			return err
		}
		r.emit("Service unit %s -> %s\n", unit, ref)
	}
	return r.engine.Deploy(ctx, cfg, def)
}
