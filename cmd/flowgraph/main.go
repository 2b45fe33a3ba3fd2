// Package main provides the flowgraph command-line interface for running,
// validating, and scheduling workflow definitions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/flowgraph/flowgraph/pkg/log"
)

func main() {
	cmd := &cli.Command{
		Name:                  "flowgraph",
		Usage:                 "Run and manage graph workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			scheduleCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.WithModule("cli").Error("command failed", "error", err)
		os.Exit(1)
	}
}
