package backend

import (
	"context"
	"os"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/writer"
)

// Passthrough runs sessions on the host with no environment at all.
type Passthrough struct{}

func (b *Passthrough) ID() string            { return "none" }
func (b *Passthrough) IsAvailable() bool     { return true }
func (b *Passthrough) AlwaysAvailable() bool { return true }

func (b *Passthrough) Create(ctx context.Context, in *api.CreateInput, ow *writer.Output) (*api.Environment, error) {
	return &api.Environment{
		Kind:            "none",
		InterpreterPath: in.Interpreter,
	}, nil
}

func (b *Passthrough) BinDir(string) string { return "" }

func (b *Passthrough) EnvOverlay(*api.Environment) map[string]string { return nil }

// InstallCommand installs into the host interpreter. Session.Install gates
// this behind the explicit external marker and a deprecation warning.
func (b *Passthrough) InstallCommand(env *api.Environment, args []string) ([]string, error) {
	if env.InterpreterPath == "" {
		return nil, api.Errorf(api.KindUnsupportedOperation,
			"cannot install packages without an interpreter")
	}
	return append([]string{env.InterpreterPath, "-m", "pip", "install"}, args...), nil
}

func hostEnviron() []string { return os.Environ() }
