// Package session exposes the per-run façade handed to user functions.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/exec"
	"github.com/taskground/taskground/pkg/script"
	"github.com/taskground/taskground/pkg/writer"
)

// Func is the signature of a user session function.
type Func func(*Session) error

// Queuer enqueues another session after the current one; the manifest
// implements it.
type Queuer interface {
	Notify(target string, posargs []string) error
}

// Config carries everything the engine knows about one instance at the
// moment it builds the handle.
type Config struct {
	Name          string
	Python        string
	BackendParams []string
	Env           *api.Environment
	Backend       api.Backend
	Runner        *exec.Runner
	OW            *writer.Output
	Opts          *config.Options
	Queuer        Queuer
	Posargs       []string
	CallArgs      map[string]string
	Tags          []string
}

// Session is the handle passed to user functions. It must not leak state
// between instances: posargs are a per-instance copy, and environment
// mutations affect only subsequent commands of the same instance.
type Session struct {
	ctx context.Context
	cfg *Config

	workDir string
	env     *exec.Env
}

// New builds a handle over an already-created environment.
func New(ctx context.Context, cfg *Config) *Session {
	env := exec.NewHostEnv(os.Environ())
	if cfg.Backend != nil {
		env.Apply(cfg.Backend.EnvOverlay(cfg.Env))
	}
	return &Session{
		ctx:     ctx,
		cfg:     cfg,
		workDir: cfg.Opts.InvokedFrom,
		env:     env,
	}
}

// Properties.

func (s *Session) Name() string          { return s.cfg.Name }
func (s *Session) Python() string        { return s.cfg.Python }
func (s *Session) VenvBackend() string   { return s.cfg.Env.Kind }
func (s *Session) EnvDir() string        { return s.cfg.Env.Location }
func (s *Session) Posargs() []string     { return s.cfg.Posargs }
func (s *Session) InvokedFrom() string   { return s.cfg.Opts.InvokedFrom }
func (s *Session) Interactive() bool     { return s.cfg.Opts.Interactive() }
func (s *Session) CallArg(k string) string { return s.cfg.CallArgs[k] }

// SetEnv exports a variable to every subsequent command in this session.
func (s *Session) SetEnv(key, value string) { s.env.Set(key, value) }

// UnsetEnv removes a variable for every subsequent command.
func (s *Session) UnsetEnv(key string) { s.env.Apply(map[string]string{key: exec.Unset}) }

// Logging.

func (s *Session) Log(format string, args ...interface{})   { s.cfg.OW.Infof(format, args...) }
func (s *Session) Warn(format string, args ...interface{})  { s.cfg.OW.Warnf(format, args...) }
func (s *Session) Debug(format string, args ...interface{}) { s.cfg.OW.Debugf(format, args...) }

// Skip terminates the session with a skipped result.
func (s *Session) Skip(format string, args ...interface{}) error {
	return &api.Exit{Status: api.StatusSkipped, Reason: sprintf(format, args...)}
}

// Error terminates the session with a failed result.
func (s *Session) Error(format string, args ...interface{}) error {
	return &api.Exit{Status: api.StatusFailed, Reason: sprintf(format, args...)}
}

// Notify enqueues target after the current session. Queued or completed
// targets are a no-op.
func (s *Session) Notify(target string, posargs ...string) error {
	return s.cfg.Queuer.Notify(target, posargs)
}

// Chdir changes the working directory for subsequent commands, returning a
// restore function for scoped use.
func (s *Session) Chdir(dir string) (restore func(), err error) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.workDir, dir)
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, api.Errorf(api.KindCommandFailed, "chdir: %s is not a directory", dir)
	}
	prev := s.workDir
	s.workDir = dir
	return func() { s.workDir = prev }, nil
}

// CreateTmp creates (or returns) the session's scoped temp dir inside the
// environment and exports it as TMPDIR.
func (s *Session) CreateTmp() (string, error) {
	base := s.cfg.Env.Location
	if base == "" {
		base = filepath.Join(s.cfg.Opts.EnvDir, api.SanitizeName(s.cfg.Name))
	}
	dir := filepath.Join(base, "tmp")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", api.Wrap(api.KindCommandFailed, err, "creating tmp dir")
	}
	s.env.Set("TMPDIR", dir)
	return dir, nil
}

// Run executes a command inside the environment. It is suppressed entirely
// in install-only mode.
func (s *Session) Run(argv []string, opts ...RunOption) error {
	if config.IsTrue(s.cfg.Opts.InstallOnly) {
		s.cfg.OW.Infof("skipping %v (install-only run)", argv)
		return nil
	}
	return s.run(argv, newRunSettings(opts))
}

// RunInstall is the install-phase variant of Run: it executes even in
// install-only mode but is skipped when the environment is reused with
// --no-install.
func (s *Session) RunInstall(argv []string, opts ...RunOption) error {
	if s.skipInstall() {
		s.cfg.OW.Debugf("skipping %v (environment reused, no-install)", argv)
		return nil
	}
	return s.run(argv, newRunSettings(opts))
}

// Install delegates to the backend's install primitive.
func (s *Session) Install(pkgs []string, opts ...RunOption) error {
	if len(pkgs) == 0 {
		return api.Errorf(api.KindCommandFailed, "install called with no packages")
	}
	if s.cfg.Env.Kind == "none" {
		if !contains(s.cfg.BackendParams, "external") {
			return api.Errorf(api.KindUnsupportedOperation,
				"session %s has no environment to install into; declare the external backend param to target the host interpreter", s.cfg.Name)
		}
		s.cfg.OW.Warnf("installing into the host interpreter is deprecated; session %s runs without an environment", s.cfg.Name)
	}
	if s.skipInstall() {
		s.cfg.OW.Debugf("skipping installation of %v (environment reused, no-install)", pkgs)
		return nil
	}

	argv, err := s.cfg.Backend.InstallCommand(s.cfg.Env, pkgs)
	if err != nil {
		return err
	}
	st := newRunSettings(opts)
	if st.silent == nil {
		st.silent = config.Bool(!config.IsTrue(s.cfg.Opts.Verbose))
	}
	st.external = true
	return s.run(argv, st)
}

// CondaInstall installs with the conda-native primitive; it fails on
// non-conda backends. Omitting channels draws from defaults, which is
// usually not what CI wants, so it warns.
func (s *Session) CondaInstall(pkgs []string, channels []string, opts ...RunOption) error {
	ci, ok := s.cfg.Backend.(api.CondaInstaller)
	if !ok {
		return api.Errorf(api.KindUnsupportedOperation,
			"conda_install requires a conda-family backend, session %s uses %s", s.cfg.Name, s.cfg.Env.Kind)
	}
	if len(channels) == 0 {
		s.cfg.OW.Warnf("conda_install without channels draws from the default channel only")
	}
	if s.skipInstall() {
		s.cfg.OW.Debugf("skipping conda installation of %v (environment reused, no-install)", pkgs)
		return nil
	}

	argv, err := ci.CondaInstallCommand(s.cfg.Env, pkgs, channels)
	if err != nil {
		return err
	}
	st := newRunSettings(opts)
	if st.silent == nil {
		st.silent = config.Bool(!config.IsTrue(s.cfg.Opts.Verbose))
	}
	st.external = true
	return s.run(argv, st)
}

// RunScript parses the script's inline metadata block, installs the
// declared dependencies, and executes the script with the session
// interpreter.
func (s *Session) RunScript(path string, opts ...RunOption) error {
	md, err := script.ParseFile(path)
	if err != nil {
		return err
	}
	if md.RequiresPython != "" && s.cfg.Python != "" {
		if v, verr := goversion.NewVersion(s.cfg.Python); verr == nil {
			if c, cerr := goversion.NewConstraint(md.RequiresPython); cerr == nil && !c.Check(v) {
				s.cfg.OW.Warnf("script %s requires python %s, session runs %s", path, md.RequiresPython, s.cfg.Python)
			}
		}
	}
	if len(md.Dependencies) > 0 {
		if err := s.Install(md.Dependencies); err != nil {
			return err
		}
	}
	return s.Run([]string{s.cfg.Env.InterpreterPath, path}, opts...)
}

func (s *Session) skipInstall() bool {
	return s.cfg.Env.Reused && config.IsTrue(s.cfg.Opts.NoInstall)
}

func (s *Session) run(argv []string, st *runSettings) error {
	env := s.env.Clone()
	if !st.includeOuterEnv {
		env = exec.Empty()
		if s.cfg.Backend != nil {
			env.Apply(s.cfg.Backend.EnvOverlay(s.cfg.Env))
		}
	}
	env.Apply(st.env)

	_, err := s.cfg.Runner.Run(s.ctx, &exec.Request{
		Argv:           argv,
		Dir:            s.workDir,
		Env:            env,
		BinDir:         s.cfg.Env.BinDir,
		Stdin:          st.stdin,
		Silent:         st.silent != nil && *st.silent,
		SuccessCodes:   st.successCodes,
		Timeout:        st.timeout,
		ExternalPolicy: s.cfg.Opts.ExternalRunPolicy(),
		ExternalOK:     st.external,
	})
	return err
}

// RunOption tweaks one command invocation.
type RunOption func(*runSettings)

type runSettings struct {
	env             map[string]string
	silent          *bool
	successCodes    []int
	external        bool
	includeOuterEnv bool
	timeout         time.Duration
	stdin           io.Reader
}

func newRunSettings(opts []RunOption) *runSettings {
	st := &runSettings{includeOuterEnv: true}
	for _, o := range opts {
		o(st)
	}
	return st
}

// WithEnv overlays variables for this command only. A value of exec.Unset
// removes the key.
func WithEnv(env map[string]string) RunOption {
	return func(st *runSettings) { st.env = env }
}

// Silent buffers the command's output, dumping it only on failure.
func Silent() RunOption {
	return func(st *runSettings) { st.silent = config.Bool(true) }
}

// SuccessCodes accepts additional exit codes as success.
func SuccessCodes(codes ...int) RunOption {
	return func(st *runSettings) { st.successCodes = codes }
}

// External allows the command to resolve outside the environment bin dir.
func External() RunOption {
	return func(st *runSettings) { st.external = true }
}

// ExcludeOuterEnv starts the command from an empty environment instead of
// the filtered host one.
func ExcludeOuterEnv() RunOption {
	return func(st *runSettings) { st.includeOuterEnv = false }
}

// WithTimeout bounds the command's wall clock.
func WithTimeout(d time.Duration) RunOption {
	return func(st *runSettings) { st.timeout = d }
}

// WithStdin wires the command's standard input.
func WithStdin(r io.Reader) RunOption {
	return func(st *runSettings) { st.stdin = r }
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
