package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/backend"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/registry"
	"github.com/taskground/taskground/pkg/writer"
)

// prepareEnvironment resolves the backend and interpreter for an instance,
// then creates or reuses its environment per the staleness rules.
func (e *Engine) prepareEnvironment(ctx context.Context, in *registry.Instance, ow *writer.Output) (*api.Environment, api.Backend, error) {
	chain := in.Decl.Backends
	if in.NoVenv {
		chain = []string{"none"}
	}
	bk, err := e.backends.Resolve(chain, e.opts.ForceBackend, e.opts.DefaultBackend)
	if err != nil {
		return nil, nil, err
	}

	// Conda-family and uv resolve (and possibly download) interpreters on
	// their own; everything else needs a concrete host executable.
	var interpPath string
	if _, self := bk.(backend.SelfProvisioning); !self {
		interpPath, err = e.resolver.Resolve(in.Python, ow)
		if err != nil {
			// A host-run session with no declared interpreter only needs
			// one if it ever shells out to it.
			if bk.ID() != "none" || in.Python != "" {
				return nil, nil, err
			}
			interpPath = ""
		}
	}

	if bk.ID() == "none" {
		env, err := bk.Create(ctx, &api.CreateInput{Interpreter: interpPath}, ow)
		return env, bk, err
	}

	location, err := filepath.Abs(filepath.Join(e.opts.EnvDir, api.SanitizeName(in.Name)))
	if err != nil {
		return nil, nil, api.Wrap(api.KindBackendUnavailable, err, "resolving env location")
	}

	digest := backend.Compute(bk.ID(), in.Python, in.Decl.BackendParams)

	reusePolicy := e.opts.Reuse
	if in.Decl.Reuse != "" {
		reusePolicy = in.Decl.Reuse
	}

	if backend.Exists(location) {
		reuse := false
		switch reusePolicy {
		case config.ReuseAlways:
			reuse = true
		case config.ReuseYes:
			reuse = backend.Fresh(location, digest)
		}
		// A backend mismatch always forces a rebuild, whatever the policy.
		if stamp, serr := backend.ReadStamp(location); serr == nil && stamp.Kind != bk.ID() {
			reuse = false
		}

		if reuse {
			binDir := bk.BinDir(location)
			interp := filepath.Join(binDir, interpreterExe())
			if _, conda := bk.(*backend.CondaBackend); conda && runtime.GOOS == "windows" {
				interp = filepath.Join(location, interpreterExe())
			}
			ow.Debugf("reusing existing environment at %s", location)
			return &api.Environment{
				Location:        location,
				Kind:            bk.ID(),
				InterpreterPath: interp,
				BinDir:          binDir,
				Reused:          true,
			}, bk, nil
		}

		if err := e.destroy(ctx, bk, location, ow); err != nil {
			return nil, nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return nil, nil, api.Wrap(api.KindBackendUnavailable, err, "creating env root")
	}

	env, err := bk.Create(ctx, &api.CreateInput{
		Location:        location,
		Interpreter:     interpPath,
		InterpreterSpec: in.Python,
		ExtraParams:     in.Decl.BackendParams,
	}, ow)
	if err != nil {
		return nil, nil, err
	}

	if err := backend.WriteStamp(location, digest); err != nil {
		ow.Warnf("could not record environment metadata at %s: %s", location, err)
	}
	return env, bk, nil
}

// destroy removes a stale environment, preferring the backend's own
// teardown command when it has one.
func (e *Engine) destroy(ctx context.Context, bk api.Backend, location string, ow *writer.Output) error {
	ow.Debugf("recreating environment at %s", location)
	if d, ok := bk.(backend.Destroyer); ok {
		_, err := e.runner.Run(ctx, &exec.Request{
			Argv:   d.DestroyCommand(location),
			Env:    exec.NewHostEnv(os.Environ()),
			Silent: true,
		})
		if err != nil {
			ow.Warnf("backend teardown of %s failed, removing directory: %s", location, err)
		}
	}
	if err := os.RemoveAll(location); err != nil {
		return api.Wrap(api.KindBackendUnavailable, err, "removing stale environment %s", location)
	}
	return nil
}

func interpreterExe() string {
	if runtime.GOOS == "windows" {
		return "python.exe"
	}
	return "python"
}
