// Package cmd wires the CLI surface onto the engine.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli"

	"github.com/taskground/taskground/pkg/config"
)

// Commands are the subcommands beyond the default run action.
var Commands = []cli.Command{
	HistoryCommand,
	VersionCommand,
}

// Flags is the full flag surface of the default action.
var Flags = []cli.Flag{
	cli.StringSliceFlag{Name: "session, s, e", Usage: "select sessions by name or pattern (repeatable; patterns include parametric tails)"},
	cli.StringSliceFlag{Name: "python, p", Usage: "select sessions by interpreter version"},
	cli.StringFlag{Name: "keywords, k", Usage: "boolean expression over name substrings and tags"},
	cli.StringSliceFlag{Name: "tag, t", Usage: "select sessions carrying any of these tags"},
	cli.BoolFlag{Name: "list, l", Usage: "list the selected sessions instead of running them"},
	cli.BoolFlag{Name: "json", Usage: "with --list, emit machine-readable output"},
	cli.StringFlag{Name: "config, f", Usage: "path to the configuration file"},
	cli.StringFlag{Name: "envdir", Usage: "root directory for ephemeral environments"},
	cli.StringFlag{Name: "reuse-venv", Usage: "environment reuse policy: yes, no, never, always"},
	cli.BoolFlag{Name: "r", Usage: "shorthand for --reuse-venv yes"},
	cli.BoolFlag{Name: "R", Usage: "shorthand for --reuse-venv yes --no-install"},
	cli.BoolFlag{Name: "no-install", Usage: "skip install primitives in reused environments"},
	cli.StringFlag{Name: "default-venv-backend, db", Usage: "backend when a session declares none"},
	cli.StringFlag{Name: "force-venv-backend, fb", Usage: "override every session's backend preference"},
	cli.BoolFlag{Name: "no-venv", Usage: "run every session on the host, with no environment"},
	cli.BoolFlag{Name: "error-on-missing-interpreters", Usage: "fail instead of skipping sessions whose interpreter is absent"},
	cli.BoolFlag{Name: "no-error-on-missing-interpreters", Usage: "skip sessions whose interpreter is absent"},
	cli.BoolFlag{Name: "error-on-external-run", Usage: "fail commands that resolve outside the environment"},
	cli.BoolFlag{Name: "no-error-on-external-run", Usage: "only warn about commands outside the environment"},
	cli.GenericFlag{Name: "download-python", Value: &EnumValue{Allowed: []string{"auto", "always", "never"}}, Usage: "interpreter auto-download policy"},
	cli.StringFlag{Name: "report", Usage: "write a JSON status report to this path"},
	cli.BoolFlag{Name: "install-only", Usage: "run install primitives, skip run commands"},
	cli.BoolFlag{Name: "non-interactive", Usage: "treat stdin as non-interactive regardless of tty"},
	cli.BoolFlag{Name: "forcecolor", Usage: "force color output"},
	cli.BoolFlag{Name: "nocolor", Usage: "disable color output"},
	cli.BoolFlag{Name: "verbose", Usage: "show all command output, not just failures"},
	cli.BoolFlag{Name: "add-timestamp", Usage: "decorate log lines with timestamps"},
	cli.BoolFlag{Name: "stop-on-first-error", Usage: "abort remaining sessions after the first failure"},
	cli.BoolFlag{Name: "no-stop-on-first-error", Usage: "keep running after failures"},
	cli.StringSliceFlag{Name: "extra-python, extra-pythons", Usage: "append interpreters to every session's axis"},
	cli.StringFlag{Name: "force-python, P", Usage: "replace every session's interpreter axis"},
	cli.StringFlag{Name: "script-mode", Usage: "evaluator dependency policy: reuse, fresh, none"},
	cli.StringFlag{Name: "script-venv-backend", Usage: "backend for the evaluator's own dependencies"},
}

// EnumValue is a generic flag constrained to a fixed value set.
type EnumValue struct {
	Allowed  []string
	selected string
}

func (e *EnumValue) Set(value string) error {
	for _, a := range e.Allowed {
		if a == value {
			e.selected = value
			return nil
		}
	}
	return fmt.Errorf("allowed values are %s", strings.Join(e.Allowed, ", "))
}

func (e *EnumValue) String() string { return e.selected }

// ProcessContext returns a context canceled on SIGINT/SIGTERM, driving the
// command runner's escalation ladder.
func ProcessContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// cliOptions translates the parsed flags into the highest-precedence
// options layer. Tri-state fields are only populated when the user touched
// the flag, so lower layers can still win.
func cliOptions(c *cli.Context) *config.Options {
	o := &config.Options{
		ConfigFile:     c.String("config"),
		EnvDir:         c.String("envdir"),
		Sessions:       c.StringSlice("session"),
		Pythons:        c.StringSlice("python"),
		Keywords:       c.String("keywords"),
		Tags:           c.StringSlice("tag"),
		DefaultBackend: c.String("default-venv-backend"),
		ForceBackend:   c.String("force-venv-backend"),
		Reuse:          config.ReusePolicy(c.String("reuse-venv")),
		DownloadPython: config.DownloadPolicy(c.Generic("download-python").(*EnumValue).String()),
		ReportPath:     c.String("report"),
		ScriptMode:     config.ScriptMode(c.String("script-mode")),
		ScriptVenvBackend: c.String("script-venv-backend"),
		ExtraPythons:   c.StringSlice("extra-python"),
		ForcePython:    c.String("force-python"),
		Posargs:        posargs(),
	}

	o.SessionsSet = c.IsSet("session")

	if c.Bool("r") || c.Bool("R") {
		o.Reuse = config.ReuseYes
	}
	if c.Bool("R") || c.Bool("no-install") {
		o.NoInstall = config.Bool(true)
	}
	if c.Bool("no-venv") {
		o.ForceBackend = "none"
	}

	setTristate := func(dst **bool, on, off string) {
		if c.Bool(on) {
			*dst = config.Bool(true)
		} else if c.Bool(off) {
			*dst = config.Bool(false)
		}
	}
	setTristate(&o.StopOnFirstError, "stop-on-first-error", "no-stop-on-first-error")
	setTristate(&o.ErrorOnMissingInterpreter, "error-on-missing-interpreters", "no-error-on-missing-interpreters")
	setTristate(&o.ErrorOnExternalRun, "error-on-external-run", "no-error-on-external-run")

	for flag, dst := range map[string]**bool{
		"verbose":         &o.Verbose,
		"non-interactive": &o.NonInteractive,
		"install-only":    &o.InstallOnly,
		"nocolor":         &o.NoColor,
		"forcecolor":      &o.ForceColor,
		"add-timestamp":   &o.AddTimestamp,
	} {
		if c.Bool(flag) {
			*dst = config.Bool(true)
		}
	}

	return o
}

// posargs returns the trailing arguments after the "--" terminator.
func posargs() []string {
	for i, a := range os.Args {
		if a == "--" {
			return append([]string(nil), os.Args[i+1:]...)
		}
	}
	return nil
}
