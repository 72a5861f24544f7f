package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "microchand",
		Usage:   "micropayment channel node",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file",
				EnvVars: []string{"MICROCHAN_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			cmdInit,
			cmdStart,
			cmdKeygen,
			cmdKeyaddr,
			cmdSignPayment,
			cmdVersion,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

var cmdVersion = &cli.Command{
	Name:  "version",
	Usage: "print the version",
	Action: func(c *cli.Context) error {
		fmt.Fprintln(c.App.Writer, Version)
		return nil
	},
}
