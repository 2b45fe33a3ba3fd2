package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"

	"github.com/flowgraph/flowgraph/pkg/cmd"
	"github.com/flowgraph/flowgraph/pkg/log"
	"github.com/flowgraph/flowgraph/pkg/runner"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
)

func scheduleCommand() *cli.Command {
	flags := append(definitionFlags(),
		&cli.StringFlag{
			Name:     "cron",
			Usage:    "Cron expression, e.g. \"*/5 * * * *\"",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "params",
			Aliases: []string{"p"},
			Usage:   "Runtime parameters as a JSON object",
			Value:   "{}",
		},
	)

	return &cli.Command{
		Name:    "schedule",
		Aliases: []string{"s"},
		Usage:   "Run a workflow repeatedly on a cron schedule",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("schedule")

			var params map[string]any
			if err := json.Unmarshal([]byte(command.String("params")), &params); err != nil {
				return fmt.Errorf("parse params: %w", err)
			}

			def, err := loadDefinition(ctx, command)
			if err != nil {
				return err
			}

			sched := scheduler.New(cmd.NewRegistry(logger, nil), logger)
			if err := sched.Validate(def); err != nil {
				return err
			}

			run := runner.New(nil, sched, logger)

			c := cron.New()

			_, err = c.AddFunc(command.String("cron"), func() {
				exec, err := run.StartDefinition(ctx, def, params)
				if err != nil {
					logger.Error("failed to start scheduled run", "error", err)

					return
				}

				for range exec.Items() {
				}

				status, runErr := exec.Result()
				if runErr != nil {
					logger.Error("scheduled run failed",
						"instance_id", exec.InstanceID, "error", runErr)

					return
				}

				logger.Info("scheduled run finished",
					"instance_id", exec.InstanceID, "status", status)
			})
			if err != nil {
				return fmt.Errorf("parse cron expression: %w", err)
			}

			logger.Info("schedule started",
				"definition", def.Name, "cron", command.String("cron"))

			c.Start()

			<-ctx.Done()

			stopCtx := c.Stop()
			<-stopCtx.Done()

			return nil
		},
	}
}
