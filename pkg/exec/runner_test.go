package exec

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/writer"
)

func testEnv() *Env {
	return NewHostEnv(os.Environ())
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on POSIX shell utilities")
	}
}

func TestRunSuccess(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())

	out, err := r.Run(context.Background(), &Request{
		Argv:   []string{"echo", "ok"},
		Env:    testEnv(),
		Silent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "ok\n", out.Output)
}

func TestRunNonzeroExit(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())

	out, err := r.Run(context.Background(), &Request{
		Argv:   []string{"sh", "-c", "exit 3"},
		Env:    testEnv(),
		Silent: true,
	})
	require.Error(t, err)
	assert.Equal(t, api.KindCommandFailed, api.KindOf(err))
	assert.Equal(t, 3, out.ExitCode)
}

func TestRunSuccessCodes(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())

	_, err := r.Run(context.Background(), &Request{
		Argv:         []string{"sh", "-c", "exit 3"},
		Env:          testEnv(),
		Silent:       true,
		SuccessCodes: []int{0, 3},
	})
	require.NoError(t, err)
}

func TestRunMissingExecutable(t *testing.T) {
	r := NewRunner(writer.Discard())

	_, err := r.Run(context.Background(), &Request{
		Argv: []string{"definitely-not-a-real-tool-xyz"},
		Env:  testEnv(),
	})
	require.Error(t, err)
	assert.Equal(t, api.KindInterpreterMissing, api.KindOf(err))
}

func TestRunExternalStrict(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())

	binDir := t.TempDir()
	_, err := r.Run(context.Background(), &Request{
		Argv:           []string{"echo", "hi"},
		Env:            testEnv(),
		BinDir:         binDir,
		ExternalPolicy: config.ExternalStrict,
	})
	require.Error(t, err)
	assert.Equal(t, api.KindExternalUse, api.KindOf(err))
}

func TestRunExternalAllowedPerCall(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())

	_, err := r.Run(context.Background(), &Request{
		Argv:           []string{"echo", "hi"},
		Env:            testEnv(),
		BinDir:         t.TempDir(),
		ExternalPolicy: config.ExternalStrict,
		ExternalOK:     true,
		Silent:         true,
	})
	require.NoError(t, err)
}

func TestRunBinDirWins(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())

	binDir := t.TempDir()
	tool := filepath.Join(binDir, "mytool")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\necho from-env\n"), 0o755))

	out, err := r.Run(context.Background(), &Request{
		Argv:           []string{"mytool"},
		Env:            testEnv(),
		BinDir:         binDir,
		ExternalPolicy: config.ExternalStrict,
		Silent:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env\n", out.Output)
}

func TestRunTimeout(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())
	r.Grace = 100 * time.Millisecond

	_, err := r.Run(context.Background(), &Request{
		Argv:    []string{"sleep", "30"},
		Env:     testEnv(),
		Silent:  true,
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, api.KindCommandFailed, api.KindOf(err))
	assert.Contains(t, err.Error(), "timed out")
}

func TestRunInterrupt(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner(writer.Discard())
	r.Grace = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, &Request{
		Argv:   []string{"sleep", "30"},
		Env:    testEnv(),
		Silent: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestEmptyArgv(t *testing.T) {
	r := NewRunner(writer.Discard())
	_, err := r.Run(context.Background(), &Request{Argv: nil, Env: testEnv()})
	require.Error(t, err)
}
