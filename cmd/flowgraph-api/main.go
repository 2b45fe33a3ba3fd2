package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/flowgraph/flowgraph/pkg/cmd"
	"github.com/flowgraph/flowgraph/pkg/log"
	"github.com/flowgraph/flowgraph/pkg/otelhelper"
	"github.com/flowgraph/flowgraph/pkg/runner"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
)

const defaultPort = 8080

const serviceName = "flowgraph-api"

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Serve the workflow management and execution API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Definition store URL (postgres:// or a directory path)",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for run history (empty disables history)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Flowgraph API")

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			history := cmd.NewHistoryStore(ctx, logger, command.String("redis-url"))

			eventBus := cmd.NewEventBus(command.String("event-bus"), serviceName, logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			sched := scheduler.New(cmd.NewRegistry(logger, nil), logger)

			runnerOpts := []runner.Option{runner.WithEventPublisher(eventBus)}

			if history != nil {
				runnerOpts = append(runnerOpts, runner.WithHistoryStore(history))
			}

			if os.Getenv("OTEL_ENABLED") == "true" {
				tracer, err := otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					return err
				}

				runnerOpts = append(runnerOpts, runner.WithTracer(tracer))
			}

			run := runner.New(store.DefinitionRepository(), sched, logger, runnerOpts...)

			api := NewAPI(logger, store, history, run, sched)

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
