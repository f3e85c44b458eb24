package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/taskground/taskground/cmd"
)

func main() {
	app := cli.NewApp()
	app.Name = "taskground"
	app.Usage = "run isolated, per-task command pipelines against interpreter runtimes"
	app.Action = cmd.RunAction
	app.Commands = cmd.Commands
	app.Flags = cmd.Flags
	// Disable the built-in -v flag (version), to avoid collisions with the
	// verbosity flags; `taskground version` covers it.
	app.HideVersion = true

	app.OnUsageError = func(c *cli.Context, err error, isSubcommand bool) error {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		if ec, ok := err.(cli.ExitCoder); ok {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(ec.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
