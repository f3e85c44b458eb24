package cmd

import (
	"os"

	"github.com/urfave/cli"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/engine"
	"github.com/taskground/taskground/pkg/history"
	"github.com/taskground/taskground/pkg/host"
	"github.com/taskground/taskground/pkg/logging"
	"github.com/taskground/taskground/pkg/registry"
	"github.com/taskground/taskground/pkg/reporter"
	"github.com/taskground/taskground/pkg/writer"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunAction is the default action: load the configuration, select
// sessions, and either list or run them.
func RunAction(c *cli.Context) error {
	opts, file, err := setup(c)
	if err != nil {
		return exitFor(err)
	}

	reg := registry.New()
	if err := file.Register(reg); err != nil {
		return exitFor(err)
	}
	decls := reg.Snapshot()

	ow := writer.New(os.Stdout)
	eng := engine.New(opts, ow)
	rep := reporter.New(os.Stdout, useColor(opts))

	// An explicitly empty selection lists and runs nothing.
	listOnly := c.Bool("list") || (opts.SessionsSet && len(opts.Sessions) == 0)
	if listOnly {
		selected, _, err := eng.Plan(decls)
		if err != nil {
			return exitFor(err)
		}
		return rep.PrintList(selected, c.Bool("json"))
	}

	ctx, cancel := ProcessContext()
	defer cancel()

	report, err := eng.Execute(ctx, decls)
	if err != nil {
		return exitFor(err)
	}

	rep.PrintSummary(report)

	if opts.ReportPath != "" {
		if err := reporter.WriteJSON(opts.ReportPath, report); err != nil {
			return exitFor(err)
		}
	}
	recordHistory(opts, report)

	if report.Result != api.StatusSuccess {
		return cli.NewExitError("", 1)
	}
	return nil
}

// setup merges the three option layers and loads the configuration file.
func setup(c *cli.Context) (*config.Options, *host.File, error) {
	cliLayer := cliOptions(c)
	configureLogging(cliLayer)

	envLayer, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	path, err := host.Locate(cliLayer.ConfigFile, mustGetwd())
	if err != nil {
		return nil, nil, err
	}
	file, err := host.Load(path)
	if err != nil {
		return nil, nil, err
	}

	opts, err := config.Merge(cliLayer, envLayer, &file.Options)
	if err != nil {
		return nil, nil, err
	}
	opts.ConfigFile = path

	logging.S().Debugw("resolved options",
		"config", opts.ConfigFile,
		"envdir", opts.EnvDir,
		"sessions", opts.Sessions,
		"pythons", opts.Pythons,
		"reuse", opts.Reuse,
		"default_backend", opts.DefaultBackend,
		"force_backend", opts.ForceBackend,
		"download_python", opts.DownloadPython,
	)
	return opts, file, nil
}

func configureLogging(o *config.Options) {
	// The LOG_LEVEL environment variable takes precedence over --verbose.
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(level)); err == nil {
			logging.SetLevel(l)
		}
	} else if config.IsTrue(o.Verbose) {
		logging.SetLevel(zap.DebugLevel)
	}
	if config.IsTrue(o.AddTimestamp) {
		logging.SetTimestamps(true)
	}
	if config.IsTrue(o.NoColor) {
		logging.SetColor(false)
	}
}

func useColor(o *config.Options) bool {
	if config.IsTrue(o.NoColor) {
		return false
	}
	if config.IsTrue(o.ForceColor) {
		return true
	}
	return o.Interactive()
}

// recordHistory archives the report in the shared cache; failures only
// warn, a broken history store must not fail the run.
func recordHistory(opts *config.Options, report *api.Report) {
	store, err := history.Open(historyPath(opts))
	if err != nil {
		logging.S().Warnw("could not open history store", "err", err)
		return
	}
	defer store.Close()
	if _, err := store.Record(report); err != nil {
		logging.S().Warnw("could not record run history", "err", err)
	}
}

// exitFor maps error kinds to the exit-code contract: 3 for configuration
// problems, 2 for option problems, 1 otherwise.
func exitFor(err error) error {
	if err == nil {
		return nil
	}
	switch api.KindOf(err) {
	case api.KindConfigLoad, api.KindVersionMismatch:
		return cli.NewExitError(err.Error(), 3)
	case api.KindInvalidOption:
		return cli.NewExitError(err.Error(), 2)
	default:
		return cli.NewExitError(err.Error(), 1)
	}
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
