package backend

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/taskground/taskground/pkg/api"
	taskexec "github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/writer"
)

// CondaBackend drives the conda family of tools: conda, mamba, and
// micromamba share a command surface and differ only in the executable.
type CondaBackend struct {
	runner   *taskexec.Runner
	tool     string
	lookPath func(string) (string, error)
}

func (b *CondaBackend) ID() string { return b.tool }

func (b *CondaBackend) IsAvailable() bool {
	_, err := b.lookPath(b.tool)
	return err == nil
}

func (b *CondaBackend) AlwaysAvailable() bool { return false }

func (b *CondaBackend) Create(ctx context.Context, in *api.CreateInput, ow *writer.Output) (*api.Environment, error) {
	spec := in.InterpreterSpec
	if spec == "" {
		spec = "3"
	}
	argv := append([]string{b.tool, "create", "--yes", "--prefix", in.Location}, in.ExtraParams...)
	argv = append(argv, "python="+spec)

	_, err := b.runner.Run(ctx, &taskexec.Request{
		Argv:   argv,
		Env:    taskexec.NewHostEnv(hostEnviron()),
		Silent: true,
	})
	if err != nil {
		return nil, api.Wrap(api.KindBackendUnavailable, err, "creating %s environment at %s", b.tool, in.Location)
	}

	binDir := b.BinDir(in.Location)
	interp := filepath.Join(binDir, pythonExe())
	if runtime.GOOS == "windows" {
		interp = filepath.Join(in.Location, pythonExe())
	}
	return &api.Environment{
		Location:        in.Location,
		Kind:            b.tool,
		InterpreterPath: interp,
		BinDir:          binDir,
	}, nil
}

// DestroyCommand tears a conda prefix down with the tool itself rather than
// a bare directory removal.
func (b *CondaBackend) DestroyCommand(location string) []string {
	return []string{b.tool, "remove", "--yes", "--prefix", location, "--all"}
}

func (b *CondaBackend) BinDir(location string) string {
	if runtime.GOOS == "windows" {
		// Conda on Windows puts python.exe at the prefix root and scripts
		// under Scripts.
		return filepath.Join(location, "Scripts")
	}
	return filepath.Join(location, "bin")
}

func (b *CondaBackend) EnvOverlay(env *api.Environment) map[string]string {
	return map[string]string{
		"CONDA_PREFIX":      env.Location,
		"CONDA_DEFAULT_ENV": env.Location,
		"PATH":              env.BinDir,
	}
}

// InstallCommand is the pip primitive; conda environments install pip
// packages without dependency resolution so conda stays authoritative.
func (b *CondaBackend) InstallCommand(env *api.Environment, args []string) ([]string, error) {
	return append([]string{env.InterpreterPath, "-m", "pip", "install", "--no-deps"}, args...), nil
}

// CondaInstallCommand is the conda-native install primitive.
func (b *CondaBackend) CondaInstallCommand(env *api.Environment, args []string, channels []string) ([]string, error) {
	argv := []string{b.tool, "install", "--yes", "--prefix", env.Location}
	for _, ch := range channels {
		argv = append(argv, "--channel", ch)
	}
	return append(argv, args...), nil
}

// ProvisionsInterpreter marks conda as resolving interpreters itself.
func (b *CondaBackend) ProvisionsInterpreter() {}

var _ api.CondaInstaller = (*CondaBackend)(nil)
