package api

import (
	"context"

	"github.com/taskground/taskground/pkg/writer"
)

// Environment is the per-instance filesystem state produced by a backend.
type Environment struct {
	// Location is the absolute directory under the configured env root.
	// Empty for the passthrough backend.
	Location string

	// Kind is the ID of the backend that produced this environment.
	Kind string

	// InterpreterPath is the resolved interpreter executable inside (or, for
	// passthrough, outside) the environment.
	InterpreterPath string

	// BinDir is the platform-specific scripts directory.
	BinDir string

	// Reused is true when this run reused a previously created environment.
	Reused bool
}

// CreateInput carries everything a backend needs to materialize an
// environment.
type CreateInput struct {
	// Location is the target directory; it does not exist when Create is
	// called (the engine removes stale environments first).
	Location string

	// Interpreter is the resolved interpreter executable to seed the
	// environment with. For conda-family backends InterpreterSpec is used
	// instead, since conda resolves interpreters itself.
	Interpreter string

	// InterpreterSpec is the raw version spec the user declared (e.g.
	// "3.12"), for backends that resolve interpreters on their own.
	InterpreterSpec string

	// ExtraParams is the opaque parameter list from the session declaration,
	// appended verbatim to the creation command.
	ExtraParams []string
}

// Backend is the interface implemented by every virtual-environment
// provider. Backends do not run commands themselves; they return argv
// vectors executed through the command runner so that logging and policy
// stay uniform.
type Backend interface {
	// ID returns the canonical identifier of this backend.
	ID() string

	// IsAvailable reports whether the backend's creation tool is usable on
	// this host.
	IsAvailable() bool

	// AlwaysAvailable reports whether this backend counts as
	// always-available for chain-position validation: such backends may only
	// appear last in a preference chain.
	AlwaysAvailable() bool

	// Create materializes a new environment at in.Location.
	Create(ctx context.Context, in *CreateInput, ow *writer.Output) (*Environment, error)

	// BinDir computes the scripts directory for an environment rooted at
	// location, without requiring the environment to exist.
	BinDir(location string) string

	// EnvOverlay returns process-environment keys the backend wants injected
	// into every command run inside env. A PATH key is prepended to the
	// inherited PATH rather than replacing it.
	EnvOverlay(env *Environment) map[string]string

	// InstallCommand returns the argv for the backend's install primitive.
	InstallCommand(env *Environment, args []string) ([]string, error)
}

// CondaInstaller is implemented by conda-family backends only.
type CondaInstaller interface {
	CondaInstallCommand(env *Environment, args []string, channels []string) ([]string, error)
}
