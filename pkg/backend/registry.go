// Package backend implements the pluggable virtual-environment providers:
// virtualenv (the default isolated-venv tool), venv (the interpreter's own
// module), the conda family, uv (the fast resolver), and none
// (passthrough).
package backend

import (
	"os/exec"

	"github.com/hashicorp/go-multierror"

	"github.com/taskground/taskground/pkg/api"
	taskexec "github.com/taskground/taskground/pkg/exec"
)

// DefaultID is the backend used when neither the declaration nor the
// options name one.
const DefaultID = "virtualenv"

// Registrar holds the known backends and applies the chain-selection rules.
type Registrar struct {
	backends map[string]api.Backend
}

// NewRegistrar constructs every known backend over the given process
// runner. allowDownload reflects the download-python policy for backends
// that can fetch interpreters themselves.
func NewRegistrar(runner *taskexec.Runner, allowDownload bool) *Registrar {
	r := &Registrar{backends: make(map[string]api.Backend)}
	for _, b := range []api.Backend{
		&VenvBackend{runner: runner, isolated: true},
		&VenvBackend{runner: runner, isolated: false},
		&CondaBackend{runner: runner, tool: "conda", lookPath: exec.LookPath},
		&CondaBackend{runner: runner, tool: "mamba", lookPath: exec.LookPath},
		&CondaBackend{runner: runner, tool: "micromamba", lookPath: exec.LookPath},
		&UvBackend{runner: runner, lookPath: exec.LookPath, AllowDownload: allowDownload},
		&Passthrough{},
	} {
		r.backends[b.ID()] = b
	}
	return r
}

// Destroyer is implemented by backends that tear environments down with
// their own tool instead of a bare directory removal.
type Destroyer interface {
	DestroyCommand(location string) []string
}

// SelfProvisioning marks backends that resolve (and possibly download) the
// requested interpreter themselves, so the engine skips host resolution.
type SelfProvisioning interface {
	ProvisionsInterpreter()
}

// Register adds or replaces a backend; tests use it to inject fakes.
func (r *Registrar) Register(b api.Backend) {
	r.backends[b.ID()] = b
}

// Get returns a backend by ID.
func (r *Registrar) Get(id string) (api.Backend, error) {
	b, ok := r.backends[id]
	if !ok {
		return nil, api.Errorf(api.KindInvalidOption, "unknown backend %q", id)
	}
	return b, nil
}

// Resolve picks the backend for a declaration: the forced backend wins
// unconditionally; otherwise the first available backend in the preference
// chain; otherwise the default. Always-available backends may only appear
// last in a chain.
func (r *Registrar) Resolve(chain []string, forced, deflt string) (api.Backend, error) {
	if forced != "" {
		return r.Get(forced)
	}

	if len(chain) == 0 {
		if deflt == "" {
			deflt = DefaultID
		}
		chain = []string{deflt}
	}

	for i, id := range chain {
		b, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		if b.AlwaysAvailable() && i != len(chain)-1 {
			return nil, api.Errorf(api.KindInvalidOption,
				"backend %q is always available and may only appear last in a fallback chain", id)
		}
	}

	var merr *multierror.Error
	for _, id := range chain {
		b, _ := r.Get(id)
		if b.IsAvailable() {
			return b, nil
		}
		merr = multierror.Append(merr, api.Errorf(api.KindBackendUnavailable, "backend %q is not available", id))
	}
	return nil, api.Wrap(api.KindBackendUnavailable, merr.ErrorOrNil(),
		"no backend in chain %v is available", chain)
}
