// Package main provides the flowengine command: the workflow automation
// engine server plus operational subcommands.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	root := &cli.Command{
		Name:                  "flowengine",
		Usage:                 "Trigger-driven workflow automation engine",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			serveCommand(),
			sweepCommand(),
			validateCommand(),
		},
	}

	err := root.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
