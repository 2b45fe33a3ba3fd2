package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func historyDisabled(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType("history_disabled").
		WithDetail("run history store is not configured")

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}

// handleRepositoryError maps storage and engine errors onto problem responses.
func handleRepositoryError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, persistence.ErrDefinitionNotFound):
		return notFound(c, "workflow definition not found")

	case errors.Is(err, persistence.ErrSnapshotNotFound):
		return notFound(c, "run snapshot not found")

	case errors.Is(err, persistence.ErrNotPublished):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("not_published").
			WithDetail("workflow definition is not published")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case scheduler.IsConfigurationError(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_graph").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	default:
		return internalError(c, err)
	}
}
