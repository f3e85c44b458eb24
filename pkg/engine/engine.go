// Package engine drives the manifest: for each queued instance it resolves
// a backend, materializes or reuses an environment, hands a session handle
// to the user function, and records the result.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/backend"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/interpreter"
	"github.com/taskground/taskground/pkg/manifest"
	"github.com/taskground/taskground/pkg/registry"
	"github.com/taskground/taskground/pkg/selector"
	"github.com/taskground/taskground/pkg/session"
	"github.com/taskground/taskground/pkg/writer"
)

type Engine struct {
	opts     *config.Options
	ow       *writer.Output
	runner   *exec.Runner
	backends *backend.Registrar
	resolver *interpreter.Resolver
}

func New(opts *config.Options, ow *writer.Output) *Engine {
	runner := exec.NewRunner(ow)
	return &Engine{
		opts:     opts,
		ow:       ow,
		runner:   runner,
		backends: backend.NewRegistrar(runner, opts.DownloadPython != config.DownloadNever),
		resolver: interpreter.NewResolver(opts.DownloadPython, opts.CacheDir()),
	}
}

// Backends exposes the registrar so tests and embedders can install their
// own providers.
func (e *Engine) Backends() *backend.Registrar { return e.backends }

// Plan expands and selects without running anything; the list command and
// Execute share it.
func (e *Engine) Plan(decls []*registry.Decl) (selected, universe []*registry.Instance, err error) {
	universe, err = registry.Expand(decls, e.opts.ForcePython, e.opts.ExtraPythons)
	if err != nil {
		return nil, nil, err
	}
	selected, err = selector.Select(universe, e.opts)
	if err != nil {
		return nil, nil, err
	}
	return selected, universe, nil
}

// Execute runs the full pipeline over a declaration snapshot. Setup errors
// (selection, requires graph) return before any session executes; session
// failures land in the report instead.
func (e *Engine) Execute(ctx context.Context, decls []*registry.Decl) (*api.Report, error) {
	selected, universe, err := e.Plan(decls)
	if err != nil {
		return nil, err
	}

	m := manifest.New(selected, universe)
	if err := m.ResolveRequires(); err != nil {
		return nil, err
	}

	report := &api.Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}

	stopped := false
	for i := 0; i < m.Len(); i++ {
		in := m.At(i)

		if stopped || ctx.Err() != nil {
			report.Sessions = append(report.Sessions, api.Result{
				Name:   in.Name,
				Status: api.StatusAborted,
				Args:   in.CallArgs(),
			})
			m.MarkDone(in.Name, api.StatusAborted)
			continue
		}

		res := e.runInstance(ctx, m, in)
		report.Sessions = append(report.Sessions, res)
		m.MarkDone(in.Name, res.Status)

		if res.Status == api.StatusFailed && config.IsTrue(e.opts.StopOnFirstError) {
			stopped = true
		}
		if ctx.Err() != nil {
			stopped = true
		}
	}

	report.Result = report.Overall()
	return report, nil
}

func (e *Engine) runInstance(ctx context.Context, m *manifest.Manifest, in *registry.Instance) api.Result {
	start := time.Now()
	ow := e.ow.With("session", in.Name)
	ow.Infof("Running session %s", in.Name)

	result := func(status api.Status, reason string) api.Result {
		return api.Result{
			Name:     in.Name,
			Status:   status,
			Reason:   reason,
			Duration: time.Since(start),
			Args:     in.CallArgs(),
		}
	}

	if unsat := m.UnsatisfiedRequires(in); len(unsat) > 0 {
		ow.Warnf("session %s aborted: requirement %s did not succeed", in.Name, unsat[0])
		return result(api.StatusAborted, "requirement "+unsat[0]+" did not succeed")
	}

	env, bk, err := e.prepareEnvironment(ctx, in, ow)
	if err != nil {
		switch api.KindOf(err) {
		case api.KindInterpreterMissing:
			if !e.opts.MissingInterpreterIsError() {
				ow.Warnf("skipping session %s: %s", in.Name, err)
				return result(api.StatusSkipped, "interpreter-missing")
			}
			ow.Errorf("session %s failed: %s", in.Name, err)
			return result(api.StatusFailed, "interpreter-missing")
		default:
			ow.Errorf("session %s failed: %s", in.Name, err)
			return result(api.StatusFailed, err.Error())
		}
	}

	if in.Posargs == nil {
		in.SetPosargs(e.opts.Posargs)
	}

	s := session.New(ctx, &session.Config{
		Name:          in.Name,
		Python:        in.Python,
		BackendParams: in.Decl.BackendParams,
		Env:           env,
		Backend:       bk,
		Runner:        e.runner,
		OW:            ow,
		Opts:          e.opts,
		Queuer:        m,
		Posargs:       in.Posargs,
		CallArgs:      in.CallArgs(),
		Tags:          in.Tags,
	})

	err = in.Decl.Func(s)

	switch {
	case err == nil:
		ow.Infof("Session %s was successful", in.Name)
		return result(api.StatusSuccess, "")
	case ctx.Err() != nil:
		ow.Warnf("Session %s interrupted", in.Name)
		return result(api.StatusFailed, "interrupted")
	default:
		if exit, ok := err.(*api.Exit); ok {
			if exit.Status == api.StatusSkipped {
				ow.Warnf("Session %s skipped: %s", in.Name, exit.Reason)
				return result(api.StatusSkipped, exit.Reason)
			}
			ow.Errorf("Session %s failed: %s", in.Name, exit.Reason)
			return result(api.StatusFailed, exit.Reason)
		}
		ow.Errorf("Session %s failed: %s", in.Name, err)
		res := result(api.StatusFailed, err.Error())
		res.LogExcerpt = err.Error()
		return res
	}
}
