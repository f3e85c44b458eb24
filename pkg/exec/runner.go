package exec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/writer"

	"golang.org/x/sync/errgroup"
)

// DefaultGrace is the pause between escalation steps when terminating a
// child: SIGINT, then SIGTERM, then SIGKILL.
const DefaultGrace = 3 * time.Second

// Request describes one external command.
type Request struct {
	Argv []string
	Dir  string
	Env  *Env

	// BinDir is the environment scripts directory searched before PATH.
	// Empty for host-run sessions, which disables the external-use check.
	BinDir string

	Stdin io.Reader

	// Silent buffers output instead of streaming it; the buffer is dumped
	// at warning level when the command fails.
	Silent bool

	// SuccessCodes lists acceptable exit codes; nil means {0}.
	SuccessCodes []int

	// Timeout bounds the command's wall clock; zero means unbounded.
	Timeout time.Duration

	// ExternalPolicy governs commands resolving outside BinDir; ExternalOK
	// is the per-call escape hatch.
	ExternalPolicy config.ExternalPolicy
	ExternalOK     bool
}

// Outcome is the result of a completed command.
type Outcome struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Runner executes external commands with a controlled environment. The
// driver blocks nowhere else.
type Runner struct {
	OW    *writer.Output
	Grace time.Duration
}

func NewRunner(ow *writer.Output) *Runner {
	return &Runner{OW: ow, Grace: DefaultGrace}
}

// Run executes one command per the request contract and classifies the
// exit. Policy violations return before the subprocess is launched.
func (r *Runner) Run(ctx context.Context, req *Request) (*Outcome, error) {
	if len(req.Argv) == 0 {
		return nil, api.Errorf(api.KindCommandFailed, "empty command")
	}

	resolved, external, err := resolveExecutable(req.Argv[0], req.BinDir, req.Env.Paths())
	if err != nil {
		return nil, err
	}

	if external && req.BinDir != "" && !req.ExternalOK {
		switch req.ExternalPolicy {
		case config.ExternalStrict:
			return nil, api.Errorf(api.KindExternalUse,
				"command %s resolved outside the environment at %s; pass external=true to allow", req.Argv[0], resolved)
		case config.ExternalWarn:
			r.OW.Warnf("command %s resolved outside the environment at %s", req.Argv[0], resolved)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := osexec.Command(resolved, req.Argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = req.Env.Environ()
	cmd.Stdin = req.Stdin

	var buf bytes.Buffer
	var sink io.Writer
	if req.Silent {
		sink = &buf
	} else {
		sink = r.OW.StdoutWriter()
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, api.Wrap(api.KindCommandFailed, err, "opening stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, api.Wrap(api.KindCommandFailed, err, "opening stderr pipe")
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, api.Wrap(api.KindCommandFailed, err, "starting %s", resolved)
	}

	var pump errgroup.Group
	pump.Go(func() error { _, err := io.Copy(sink, stdout); return err })
	pump.Go(func() error { _, err := io.Copy(sink, stderr); return err })

	waitCh := make(chan error, 1)
	go func() {
		_ = pump.Wait()
		waitCh <- cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		r.terminate(cmd)
		waitErr = <-waitCh
		// Prefer the context's cause over whatever exit the child reported.
		outcome := &Outcome{ExitCode: exitCode(waitErr), Output: buf.String(), Duration: time.Since(start)}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.dumpOnFailure(req, &buf)
			return outcome, api.Errorf(api.KindCommandFailed,
				"command %s timed out after %s", req.Argv[0], req.Timeout)
		}
		r.dumpOnFailure(req, &buf)
		return outcome, api.Errorf(api.KindCommandFailed, "command %s interrupted", req.Argv[0])
	}

	outcome := &Outcome{
		ExitCode: exitCode(waitErr),
		Output:   buf.String(),
		Duration: time.Since(start),
	}

	if waitErr == nil || accepted(outcome.ExitCode, req.SuccessCodes) {
		return outcome, nil
	}

	var xerr *osexec.ExitError
	if errors.As(waitErr, &xerr) {
		r.dumpOnFailure(req, &buf)
		return outcome, api.Errorf(api.KindCommandFailed,
			"command %s failed with exit code %d", req.Argv[0], outcome.ExitCode)
	}
	return outcome, api.Wrap(api.KindCommandFailed, waitErr, "command %s failed", req.Argv[0])
}

// terminate walks the escalation ladder: SIGINT, grace, SIGTERM, grace,
// SIGKILL.
func (r *Runner) terminate(cmd *osexec.Cmd) {
	if cmd.Process == nil {
		return
	}
	grace := r.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	_ = cmd.Process.Signal(os.Interrupt)
	if waitExited(cmd, grace) {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	if waitExited(cmd, grace) {
		return
	}
	_ = cmd.Process.Kill()
}

func waitExited(cmd *osexec.Cmd, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cmd.ProcessState != nil {
			return true
		}
		// Signal 0 probes for existence without delivering anything.
		if err := cmd.Process.Signal(syscall.Signal(0)); err != nil {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}

func (r *Runner) dumpOnFailure(req *Request, buf *bytes.Buffer) {
	if req.Silent && buf.Len() > 0 {
		r.OW.Warnf("output of failed command %s:\n%s", req.Argv[0], buf.String())
	}
}

func accepted(code int, successCodes []int) bool {
	if successCodes == nil {
		return code == 0
	}
	for _, c := range successCodes {
		if c == code {
			return true
		}
	}
	return false
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var xerr *osexec.ExitError
	if errors.As(err, &xerr) {
		return xerr.ExitCode()
	}
	return -1
}

// resolveExecutable locates the command. Path-like names are used as-is;
// bare names search the environment bin dir first, then the inherited PATH.
// external reports whether resolution landed outside the bin dir.
func resolveExecutable(name, binDir string, paths []string) (resolved string, external bool, err error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "./") || strings.HasPrefix(name, `.\`) {
		abs, aerr := filepath.Abs(name)
		if aerr != nil {
			return "", false, api.Wrap(api.KindInterpreterMissing, aerr, "resolving %s", name)
		}
		if !isExecutable(abs) {
			return "", false, api.Errorf(api.KindInterpreterMissing, "executable %s not found", name)
		}
		return abs, binDir == "" || filepath.Dir(abs) != filepath.Clean(binDir), nil
	}

	search := paths
	if binDir != "" {
		search = append([]string{binDir}, paths...)
	}
	for _, dir := range search {
		if dir == "" {
			continue
		}
		cand := filepath.Join(dir, name)
		if isExecutable(cand) {
			return cand, binDir == "" || filepath.Clean(dir) != filepath.Clean(binDir), nil
		}
	}
	return "", false, api.Errorf(api.KindInterpreterMissing, "executable %s not found", name)
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	return fi.Mode()&0o111 != 0
}
