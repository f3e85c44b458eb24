package cmd

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/taskground/taskground/pkg/api"
)

// VersionCommand prints the driver version.
var VersionCommand = cli.Command{
	Name:  "version",
	Usage: "print the driver version",
	Action: func(c *cli.Context) error {
		fmt.Println("taskground", api.Version)
		return nil
	},
}
