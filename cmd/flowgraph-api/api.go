// Package main provides the flowgraph API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/runner"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
	"github.com/flowgraph/flowgraph/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	history     persistence.HistoryStore
	runner      *runner.Runner
	scheduler   *scheduler.Scheduler
	validate    *validator.Validate
}

func NewAPI(
	log *slog.Logger,
	store persistence.Persistence,
	history persistence.HistoryStore,
	run *runner.Runner,
	sched *scheduler.Scheduler,
) *API {
	return &API{
		logger:      log,
		persistence: store,
		history:     history,
		runner:      run,
		scheduler:   sched,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.persistence.DefinitionRepository(),
		a.history,
		a.runner,
		a.scheduler,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowgraph API")
	})

	v1 := app.Group("/api/v1")

	w := v1.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)
	w.Post("/:id/executions", handlers.ExecuteWorkflow)
	w.Get("/:id/executions", handlers.GetExecutions)

	v1.Get("/executions/:instanceId", handlers.GetExecution)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
