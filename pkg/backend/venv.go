package backend

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/taskground/taskground/pkg/api"
	taskexec "github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/writer"
)

// VenvBackend covers both venv flavors: the external virtualenv tool
// (isolated=true, the default backend) and the interpreter's own venv
// module.
type VenvBackend struct {
	runner   *taskexec.Runner
	isolated bool
}

func (b *VenvBackend) ID() string {
	if b.isolated {
		return "virtualenv"
	}
	return "venv"
}

// IsAvailable is unconditionally true for both flavors: the chain rules
// classify them as always-available, and a missing virtualenv tool surfaces
// at creation time.
func (b *VenvBackend) IsAvailable() bool { return true }

func (b *VenvBackend) AlwaysAvailable() bool { return true }

func (b *VenvBackend) Create(ctx context.Context, in *api.CreateInput, ow *writer.Output) (*api.Environment, error) {
	var argv []string
	if b.isolated {
		argv = append([]string{"virtualenv", "-p", in.Interpreter}, in.ExtraParams...)
		argv = append(argv, in.Location)
	} else {
		if strings.HasPrefix(in.InterpreterSpec, "2") {
			return nil, api.Errorf(api.KindBackendUnavailable,
				"the venv backend requires a 3.x interpreter, got %q", in.InterpreterSpec)
		}
		argv = append([]string{in.Interpreter, "-m", "venv"}, in.ExtraParams...)
		argv = append(argv, in.Location)
	}

	_, err := b.runner.Run(ctx, &taskexec.Request{
		Argv:   argv,
		Env:    taskexec.NewHostEnv(hostEnviron()),
		Silent: true,
	})
	if err != nil {
		return nil, api.Wrap(api.KindBackendUnavailable, err, "creating %s environment at %s", b.ID(), in.Location)
	}

	binDir := b.BinDir(in.Location)
	return &api.Environment{
		Location:        in.Location,
		Kind:            b.ID(),
		InterpreterPath: filepath.Join(binDir, pythonExe()),
		BinDir:          binDir,
	}, nil
}

func (b *VenvBackend) BinDir(location string) string {
	return filepath.Join(location, scriptsDirName())
}

func (b *VenvBackend) EnvOverlay(env *api.Environment) map[string]string {
	return map[string]string{
		"VIRTUAL_ENV": env.Location,
		"PATH":        env.BinDir,
	}
}

func (b *VenvBackend) InstallCommand(env *api.Environment, args []string) ([]string, error) {
	return append([]string{env.InterpreterPath, "-m", "pip", "install"}, args...), nil
}

func scriptsDirName() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}

func pythonExe() string {
	if runtime.GOOS == "windows" {
		return "python.exe"
	}
	return "python"
}
