package backend

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskground/taskground/pkg/api"
	taskexec "github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/writer"
)

func found(name string) (string, error)   { return "/usr/bin/" + name, nil }
func missing(name string) (string, error) { return "", errors.New("not found") }

func testRegistrar(lookPath func(string) (string, error)) *Registrar {
	runner := taskexec.NewRunner(writer.Discard())
	r := &Registrar{backends: map[string]api.Backend{}}
	for _, b := range []api.Backend{
		&VenvBackend{runner: runner, isolated: true},
		&VenvBackend{runner: runner, isolated: false},
		&CondaBackend{runner: runner, tool: "conda", lookPath: lookPath},
		&CondaBackend{runner: runner, tool: "mamba", lookPath: lookPath},
		&CondaBackend{runner: runner, tool: "micromamba", lookPath: lookPath},
		&UvBackend{runner: runner, lookPath: lookPath},
		&Passthrough{},
	} {
		r.backends[b.ID()] = b
	}
	return r
}

func TestDigestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := Compute("virtualenv", "3.12", []string{"--system-site-packages"})

	require.NoError(t, WriteStamp(dir, d))
	got, err := ReadStamp(dir)
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.True(t, Fresh(dir, d))
}

func TestDigestStaleOnChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteStamp(dir, Compute("virtualenv", "3.12", nil)))

	assert.False(t, Fresh(dir, Compute("virtualenv", "3.13", nil)))
	assert.False(t, Fresh(dir, Compute("uv", "3.12", nil)))
	assert.False(t, Fresh(dir, Compute("virtualenv", "3.12", []string{"-p"})))
	assert.False(t, Fresh(filepath.Join(dir, "missing"), Compute("virtualenv", "3.12", nil)))
}

func TestResolveChainFirstAvailableWins(t *testing.T) {
	r := testRegistrar(found)
	b, err := r.Resolve([]string{"uv", "virtualenv"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "uv", b.ID())
}

func TestResolveChainFallsBack(t *testing.T) {
	r := testRegistrar(missing)
	b, err := r.Resolve([]string{"uv", "venv"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "venv", b.ID())
}

func TestResolveAlwaysAvailableOnlyLast(t *testing.T) {
	r := testRegistrar(found)
	_, err := r.Resolve([]string{"virtualenv", "uv"}, "", "")
	require.Error(t, err)
	assert.Equal(t, api.KindInvalidOption, api.KindOf(err))
}

func TestResolveForcedWins(t *testing.T) {
	r := testRegistrar(missing)
	b, err := r.Resolve([]string{"virtualenv"}, "uv", "")
	require.NoError(t, err)
	assert.Equal(t, "uv", b.ID())
}

func TestResolveDefault(t *testing.T) {
	r := testRegistrar(found)
	b, err := r.Resolve(nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultID, b.ID())
}

func TestResolveChainExhausted(t *testing.T) {
	r := testRegistrar(missing)
	_, err := r.Resolve([]string{"conda", "uv"}, "", "")
	require.Error(t, err)
	assert.Equal(t, api.KindBackendUnavailable, api.KindOf(err))
}

func TestResolveUnknownBackend(t *testing.T) {
	r := testRegistrar(found)
	_, err := r.Resolve([]string{"docker"}, "", "")
	require.Error(t, err)
}

func TestInstallCommands(t *testing.T) {
	env := &api.Environment{
		Location:        "/envs/tests",
		Kind:            "conda",
		InterpreterPath: "/envs/tests/bin/python",
		BinDir:          "/envs/tests/bin",
	}

	conda := &CondaBackend{tool: "conda"}
	argv, err := conda.InstallCommand(env, []string{"pytest"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/envs/tests/bin/python", "-m", "pip", "install", "--no-deps", "pytest"}, argv)

	argv, err = conda.CondaInstallCommand(env, []string{"numpy"}, []string{"conda-forge"})
	require.NoError(t, err)
	assert.Equal(t, []string{"conda", "install", "--yes", "--prefix", "/envs/tests",
		"--channel", "conda-forge", "numpy"}, argv)

	uv := &UvBackend{}
	argv, err = uv.InstallCommand(env, []string{"pytest"})
	require.NoError(t, err)
	assert.Equal(t, []string{"uv", "pip", "install", "--python", "/envs/tests/bin/python", "pytest"}, argv)

	venv := &VenvBackend{isolated: true}
	argv, err = venv.InstallCommand(env, []string{"pytest"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/envs/tests/bin/python", "-m", "pip", "install", "pytest"}, argv)
}

func TestCondaDestroyCommand(t *testing.T) {
	conda := &CondaBackend{tool: "micromamba"}
	assert.Equal(t,
		[]string{"micromamba", "remove", "--yes", "--prefix", "/envs/x", "--all"},
		conda.DestroyCommand("/envs/x"))
}

func TestPassthroughEnvironment(t *testing.T) {
	p := &Passthrough{}
	env, err := p.Create(nil, &api.CreateInput{Interpreter: "/usr/bin/python3"}, writer.Discard())
	require.NoError(t, err)
	assert.Empty(t, env.Location)
	assert.Equal(t, "none", env.Kind)
	assert.Empty(t, p.BinDir("/anything"))
	assert.Nil(t, p.EnvOverlay(env))
}
