package backend

import (
	"context"
	"path/filepath"

	"github.com/taskground/taskground/pkg/api"
	taskexec "github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/writer"
)

// UvBackend creates environments with the uv resolver. uv can download the
// requested interpreter itself, so creation takes the raw spec; the engine
// gates that on the download-python policy.
type UvBackend struct {
	runner   *taskexec.Runner
	lookPath func(string) (string, error)

	// AllowDownload reflects the download-python policy; when false, uv is
	// told to use only installed interpreters.
	AllowDownload bool
}

func (b *UvBackend) ID() string { return "uv" }

func (b *UvBackend) IsAvailable() bool {
	_, err := b.lookPath("uv")
	return err == nil
}

func (b *UvBackend) AlwaysAvailable() bool { return false }

func (b *UvBackend) Create(ctx context.Context, in *api.CreateInput, ow *writer.Output) (*api.Environment, error) {
	python := in.Interpreter
	if python == "" {
		python = in.InterpreterSpec
	}

	argv := []string{"uv", "venv"}
	if python != "" {
		argv = append(argv, "--python", python)
	}
	if !b.AllowDownload {
		argv = append(argv, "--no-python-downloads")
	}
	argv = append(argv, in.ExtraParams...)
	argv = append(argv, in.Location)

	_, err := b.runner.Run(ctx, &taskexec.Request{
		Argv:   argv,
		Env:    taskexec.NewHostEnv(hostEnviron()),
		Silent: true,
	})
	if err != nil {
		return nil, api.Wrap(api.KindBackendUnavailable, err, "creating uv environment at %s", in.Location)
	}

	binDir := b.BinDir(in.Location)
	return &api.Environment{
		Location:        in.Location,
		Kind:            "uv",
		InterpreterPath: filepath.Join(binDir, pythonExe()),
		BinDir:          binDir,
	}, nil
}

func (b *UvBackend) BinDir(location string) string {
	return filepath.Join(location, scriptsDirName())
}

func (b *UvBackend) EnvOverlay(env *api.Environment) map[string]string {
	return map[string]string{
		"VIRTUAL_ENV": env.Location,
		"PATH":        env.BinDir,
	}
}

// ProvisionsInterpreter marks uv as resolving interpreters itself.
func (b *UvBackend) ProvisionsInterpreter() {}

// InstallCommand uses uv's pip-compatible installer. uv environments have
// no pip of their own unless the user seeds one through the backend params,
// so the primitive goes through the resolver.
func (b *UvBackend) InstallCommand(env *api.Environment, args []string) ([]string, error) {
	return append([]string{"uv", "pip", "install", "--python", env.InterpreterPath}, args...), nil
}
