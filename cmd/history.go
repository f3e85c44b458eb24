package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/history"
)

// HistoryCommand lists recent invocations recorded in the shared cache.
var HistoryCommand = cli.Command{
	Name:   "history",
	Usage:  "show recent runs and their per-session outcomes",
	Action: historyAction,
	Flags: []cli.Flag{
		cli.IntFlag{Name: "n", Usage: "number of runs to show", Value: 10},
		cli.StringFlag{Name: "envdir", Usage: "root directory for ephemeral environments"},
	},
}

func historyAction(c *cli.Context) error {
	envLayer, err := config.FromEnv()
	if err != nil {
		return exitFor(err)
	}
	opts, err := config.Merge(&config.Options{EnvDir: c.String("envdir")}, envLayer)
	if err != nil {
		return exitFor(err)
	}

	store, err := history.Open(historyPath(opts))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("opening history store: %s", err), 1)
	}
	defer store.Close()

	records, err := store.Recent(c.Int("n"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if len(records) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %s  %s\n", rec.Recorded.Format("2006-01-02 15:04:05"), rec.ID, rec.Report.Result)
		for _, s := range rec.Report.Sessions {
			fmt.Printf("  * %s: %s\n", s.Name, s.Status)
		}
	}
	return nil
}

func historyPath(opts *config.Options) string {
	return filepath.Join(opts.CacheDir(), "history")
}
