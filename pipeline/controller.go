package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slipway-io/slipway/config"
	"github.com/slipway-io/slipway/container"
	"github.com/slipway-io/slipway/credentials"
	"github.com/slipway-io/slipway/logging"
	"github.com/slipway-io/slipway/validate"
)

// RequiredScope returns the credential scope a stage needs within def, or
// "" for stages that run without credentials. Deploys to a local target
// apply nothing and need no cluster access; a configure-credentials stage
// always needs the material it exists to materialize. Verify stages only
// need cluster access when they fall back to the convergence check
// instead of a custom command.
func RequiredScope(def *config.Definition, spec config.StageSpec) credentials.Scope {
	local := def.Target.Kind == "local"
	switch spec.Kind {
	case config.KindPush:
		return credentials.ScopeRegistryWrite
	case config.KindConfigureCredentials:
		return credentials.ScopeClusterAdmin
	case config.KindDeploy:
		if local {
			return ""
		}
		return credentials.ScopeClusterAdmin
	case config.KindVerify:
		if spec.Run == "" && !local {
			return credentials.ScopeClusterAdmin
		}
	}
	return ""
}

// RequiredScopes returns the distinct credential scopes a whole definition
// needs, for the pre-run check.
func RequiredScopes(def *config.Definition) []credentials.Scope {
	seen := make(map[credentials.Scope]bool)
	var scopes []credentials.Scope
	for _, s := range def.Stages {
		if scope := RequiredScope(def, s); scope != "" && !seen[scope] {
			seen[scope] = true
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// Controller drives one pipeline run end to end: validate, order, check
// credentials, then execute stages strictly in sequence, stopping at the
// first failure.
type Controller struct {
	Dispatcher Dispatcher
	Resolver   *credentials.Resolver
	Log        logging.Logger

	// ResolveTag produces the immutable tag when the definition does not
	// pin one; typically the short commit hash of the build context.
	ResolveTag func(ctx context.Context, contextDir string) (string, error)
}

// NewController wires a controller.
func NewController(d Dispatcher, resolver *credentials.Resolver, log logging.Logger) *Controller {
	return &Controller{Dispatcher: d, Resolver: resolver, Log: log}
}

// Run executes def and returns its result. The result is always non-nil;
// the error, when non-nil, is a classified *Error equivalent to the
// result's failure fields. Definition defects, missing credential scopes,
// and unresolvable image references all fail here before any stage runs.
func (c *Controller) Run(ctx context.Context, def *config.Definition) (*RunResult, error) {
	return c.RunWithID(ctx, NewRunID(def.Name), def)
}

// RunWithID is Run with a caller-minted identifier, for callers that need
// to know the ID before the run finishes (the HTTP API hands it out in
// the accept response).
func (c *Controller) RunWithID(ctx context.Context, id string, def *config.Definition) (*RunResult, error) {
	res := &RunResult{
		ID:        id,
		Pipeline:  def.Name,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	for _, s := range def.Stages {
		res.Stages = append(res.Stages, newStageResult(s.Name, s.Kind))
	}

	redactor := credentials.NewRedactor(c.Resolver.SecretValues()...)

	fail := func(perr *Error) (*RunResult, error) {
		res.Status = StatusFailed
		res.FailedStage = perr.Stage
		res.ErrorKind = perr.Kind
		res.Error = redactor.Redact(perr.Error())
		res.FinishedAt = time.Now().UTC()
		c.Log.Error("run failed", map[string]any{
			"run": res.ID, "pipeline": def.Name, "kind": string(perr.Kind), "error": res.Error,
		})
		return res, perr
	}

	// Everything below this block is side-effect free until the first
	// stage executes, so any rejection leaves the world untouched.
	if vr := validate.Definition(def); !vr.IsValid() {
		return fail(NewError(KindConfiguration, "",
			fmt.Errorf("invalid definition: %s", strings.Join(vr.Errors, "; "))))
	}

	order, err := BuildOrder(def)
	if err != nil {
		return fail(NewError(KindConfiguration, "", err))
	}
	// Re-align pre-created results with execution order.
	ordered := make([]*StageResult, 0, len(order))
	for _, name := range order {
		ordered = append(ordered, res.StageResult(name))
	}
	res.Stages = ordered

	if err := c.Resolver.Check(RequiredScopes(def)...); err != nil {
		return fail(NewError(KindConfiguration, "", err))
	}

	tag := def.Image.Tag
	if tag == "" {
		if c.ResolveTag == nil {
			return fail(NewError(KindConfiguration, "",
				errors.New("definition pins no image tag and no tag resolver is configured")))
		}
		tag, err = c.ResolveTag(ctx, def.Image.Context)
		if err != nil {
			return fail(NewError(KindConfiguration, "", fmt.Errorf("resolving image tag: %w", err)))
		}
	}
	ref, err := container.NewRef(def.Image.Repository, tag)
	if err != nil {
		return fail(NewError(KindConfiguration, "", err))
	}

	rc, err := NewRunContext(id, def, c.Resolver, redactor, c.Log)
	if err != nil {
		return fail(NewError(KindExecution, "", err))
	}
	defer rc.Close()
	rc.SetImageRef(ref)
	res.Image = ref.String()

	c.Log.Info("run started", map[string]any{
		"run": res.ID, "pipeline": def.Name, "image": res.Image, "stages": len(order),
	})

	executor := &Executor{Log: c.Log}
	var failure *Error

	for i, name := range order {
		spec := *def.Stage(name)
		resSlot := res.Stages[i]

		if failure != nil {
			resSlot.markSkipped(fmt.Sprintf("stage %s %s", failure.Stage, skipReason(failure.Kind)))
			continue
		}

		if cerr := ctx.Err(); cerr != nil {
			resSlot.finish(StatusFailed, "", "run cancelled before stage started: "+cerr.Error(), ExitCodeUnknown)
			failure = NewError(KindCancellation, name, cerr)
			continue
		}

		stageRes, rawErr := c.runStage(ctx, executor, spec, rc)
		res.Stages[i] = stageRes
		if stageRes.Status == StatusFailed {
			failure = NewError(c.classify(ctx, rawErr), name, failureCause(stageRes, rawErr))
		}
	}

	res.Rollout = rc.Rollout()
	for _, w := range rc.Warnings() {
		c.Log.Warn("run warning", map[string]any{"run": res.ID, "warning": w})
	}

	if failure != nil {
		return fail(failure)
	}

	res.Status = StatusSucceeded
	res.FinishedAt = time.Now().UTC()
	c.Log.Info("run succeeded", map[string]any{
		"run": res.ID, "pipeline": def.Name, "image": res.Image,
	})
	return res, nil
}

// runStage resolves the stage's credential scope, executes its action, and
// guarantees the scope is released whatever path the stage exits by.
func (c *Controller) runStage(ctx context.Context, executor *Executor, spec config.StageSpec, rc *RunContext) (*StageResult, error) {
	action, err := c.Dispatcher.Action(spec)
	if err != nil {
		sr := newStageResult(spec.Name, spec.Kind)
		sr.markRunning()
		sr.finish(StatusFailed, "", err.Error(), ExitCodeUnknown)
		return sr, NewError(KindConfiguration, spec.Name, err)
	}

	if scope := RequiredScope(rc.Def, spec); scope != "" {
		handle, err := c.Resolver.Resolve(scope)
		if err != nil {
			sr := newStageResult(spec.Name, spec.Kind)
			sr.markRunning()
			sr.finish(StatusFailed, "", rc.Redactor.Redact(err.Error()), ExitCodeUnknown)
			return sr, NewError(KindConfiguration, spec.Name, err)
		}
		rc.setCredential(handle)
		defer func() {
			rc.setCredential(nil)
			handle.Release()
		}()
	}

	return executor.Execute(ctx, spec, action, rc)
}

func (c *Controller) classify(ctx context.Context, rawErr error) ErrorKind {
	if ctx.Err() != nil {
		return KindCancellation
	}
	var pe *Error
	if errors.As(rawErr, &pe) {
		return pe.Kind
	}
	return KindExecution
}

func skipReason(kind ErrorKind) string {
	if kind == KindCancellation {
		return "was cancelled"
	}
	return "failed"
}

// failureCause picks the innermost cause for the run-level error so the
// final message carries one classification prefix, not two.
func failureCause(sr *StageResult, rawErr error) error {
	var pe *Error
	if errors.As(rawErr, &pe) && pe.Err != nil {
		return pe.Err
	}
	if rawErr != nil {
		return rawErr
	}
	return errors.New(sr.Error)
}
