package session

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/writer"
)

type recordingQueuer struct {
	targets []string
	posargs [][]string
}

func (q *recordingQueuer) Notify(target string, posargs []string) error {
	q.targets = append(q.targets, target)
	q.posargs = append(q.posargs, posargs)
	return nil
}

func testSession(t *testing.T, mutate func(cfg *Config)) (*Session, *recordingQueuer) {
	t.Helper()
	q := &recordingQueuer{}
	opts, err := config.Merge(&config.Options{
		EnvDir:      t.TempDir(),
		InvokedFrom: mustGetwd(t),
	})
	require.NoError(t, err)

	cfg := &Config{
		Name:    "t",
		Env:     &api.Environment{Kind: "none"},
		Runner:  exec.NewRunner(writer.Discard()),
		OW:      writer.Discard(),
		Opts:    opts,
		Queuer:  q,
		Posargs: []string{"p1"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(context.Background(), cfg), q
}

func mustGetwd(t *testing.T) string {
	wd, err := os.Getwd()
	require.NoError(t, err)
	return wd
}

func TestSkipAndErrorExits(t *testing.T) {
	s, _ := testSession(t, nil)

	err := s.Skip("later")
	exit, ok := err.(*api.Exit)
	require.True(t, ok)
	assert.Equal(t, api.StatusSkipped, exit.Status)
	assert.Equal(t, "later", exit.Reason)

	err = s.Error("broken %d", 7)
	exit, ok = err.(*api.Exit)
	require.True(t, ok)
	assert.Equal(t, api.StatusFailed, exit.Status)
	assert.Equal(t, "broken 7", exit.Reason)
}

func TestNotifyForwards(t *testing.T) {
	s, q := testSession(t, nil)

	require.NoError(t, s.Notify("b", "x", "y"))
	assert.Equal(t, []string{"b"}, q.targets)
	assert.Equal(t, [][]string{{"x", "y"}}, q.posargs)
}

func TestChdirScopedRestore(t *testing.T) {
	s, _ := testSession(t, nil)
	sub := t.TempDir()

	before := s.workDir
	restore, err := s.Chdir(sub)
	require.NoError(t, err)
	assert.Equal(t, sub, s.workDir)

	restore()
	assert.Equal(t, before, s.workDir)
}

func TestChdirRejectsMissingDir(t *testing.T) {
	s, _ := testSession(t, nil)
	_, err := s.Chdir(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestCreateTmpExportsTMPDIR(t *testing.T) {
	envLoc := t.TempDir()
	s, _ := testSession(t, func(cfg *Config) {
		cfg.Env = &api.Environment{Kind: "virtualenv", Location: envLoc}
	})

	dir, err := s.CreateTmp()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(envLoc, "tmp"), dir)

	v, ok := s.env.Get("TMPDIR")
	assert.True(t, ok)
	assert.Equal(t, dir, v)
}

func TestInstallOnPassthroughNeedsExternalMarker(t *testing.T) {
	s, _ := testSession(t, nil)

	err := s.Install([]string{"pytest"})
	require.Error(t, err)
	assert.Equal(t, api.KindUnsupportedOperation, api.KindOf(err))
}

func TestCondaInstallOnNonConda(t *testing.T) {
	s, _ := testSession(t, nil)

	err := s.CondaInstall([]string{"numpy"}, nil)
	require.Error(t, err)
	assert.Equal(t, api.KindUnsupportedOperation, api.KindOf(err))
}

func TestSetEnvVisibleToCommands(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on POSIX shell utilities")
	}
	s, _ := testSession(t, nil)
	s.SetEnv("TASKGROUND_TEST_MARKER", "42")

	// sh -c exits 0 only when the variable round-trips into the child.
	err := s.Run([]string{"sh", "-c", `[ "$TASKGROUND_TEST_MARKER" = 42 ]`}, Silent())
	require.NoError(t, err)
}

func TestUnsetEnvHidesVariable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on POSIX shell utilities")
	}
	t.Setenv("TASKGROUND_TEST_HIDDEN", "1")
	s, _ := testSession(t, nil)
	s.UnsetEnv("TASKGROUND_TEST_HIDDEN")

	err := s.Run([]string{"sh", "-c", `[ -z "$TASKGROUND_TEST_HIDDEN" ]`}, Silent())
	require.NoError(t, err)
}

func TestRunInstallSkippedOnReuse(t *testing.T) {
	s, _ := testSession(t, func(cfg *Config) {
		cfg.Env = &api.Environment{Kind: "virtualenv", Reused: true}
		cfg.Opts.NoInstall = config.Bool(true)
	})

	// The command does not exist; skipping is the only way this passes.
	err := s.RunInstall([]string{"definitely-not-a-real-tool-xyz"})
	require.NoError(t, err)
}
