package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/flowgraph/flowgraph/pkg/cmd"
	"github.com/flowgraph/flowgraph/pkg/log"
	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/runner"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
)

var errRunFailed = errors.New("workflow run failed")

func definitionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Path to a workflow definition JSON file",
		},
		&cli.StringFlag{
			Name:    "id",
			Usage:   "Definition ID to load from the store",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Definition store URL (postgres:// or a directory path)",
			Value:   "./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
	}
}

func runCommand() *cli.Command {
	flags := append(definitionFlags(),
		&cli.StringFlag{
			Name:    "params",
			Aliases: []string{"p"},
			Usage:   "Runtime parameters as a JSON object",
			Value:   "{}",
		},
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Branch failure policy (fail_fast, best_effort)",
			Value: string(scheduler.PolicyFailFast),
		},
	)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Execute a workflow and stream progress to stdout",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("run")

			var params map[string]any
			if err := json.Unmarshal([]byte(command.String("params")), &params); err != nil {
				return fmt.Errorf("parse params: %w", err)
			}

			def, err := loadDefinition(ctx, command)
			if err != nil {
				return err
			}

			reg := cmd.NewRegistry(logger, nil)
			sched := scheduler.New(reg, logger,
				scheduler.WithPolicy(scheduler.Policy(command.String("policy"))))

			run := runner.New(nil, sched, logger)

			exec, err := run.StartDefinition(ctx, def, params)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			for item := range exec.Items() {
				if err := encoder.Encode(item); err != nil {
					return fmt.Errorf("write progress: %w", err)
				}
			}

			status, runErr := exec.Result()

			logger.Info("run finished", "status", status)

			if runErr != nil {
				return fmt.Errorf("%w: %w", errRunFailed, runErr)
			}

			return nil
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a workflow definition's graph",
		Flags:   definitionFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("validate")

			def, err := loadDefinition(ctx, command)
			if err != nil {
				return err
			}

			sched := scheduler.New(cmd.NewRegistry(logger, nil), logger)
			if err := sched.Validate(def); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "definition %q is valid\n", def.Name)

			return nil
		},
	}
}

// loadDefinition reads the definition from --file when given, otherwise from
// the store at --database-url by --id.
func loadDefinition(ctx context.Context, command *cli.Command) (*models.WorkflowDefinition, error) {
	if path := command.String("file"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read definition file: %w", err)
		}

		var def models.WorkflowDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parse definition file: %w", err)
		}

		return &def, nil
	}

	id := command.String("id")
	if id == "" {
		return nil, errors.New("either --file or --id is required")
	}

	logger := log.WithModule("store")
	store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.Error("failed to close persistence", "error", err)
		}
	}()

	return store.DefinitionRepository().DefinitionByID(ctx, id)
}
