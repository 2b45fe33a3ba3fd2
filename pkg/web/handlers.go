// Package web provides the HTTP surface: definition management, execution
// streaming, and run history.
package web

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/runner"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
)

type APIHandlers struct {
	repo      persistence.DefinitionRepository
	history   persistence.HistoryStore
	runner    *runner.Runner
	scheduler *scheduler.Scheduler
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	repo persistence.DefinitionRepository,
	history persistence.HistoryStore,
	run *runner.Runner,
	sched *scheduler.Scheduler,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		repo:      repo,
		history:   history,
		runner:    run,
		scheduler: sched,
		validator: validate,
		logger:    logger,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	defs, err := h.repo.Definitions(c.Context())
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   defs,
		"total_count": len(defs),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	def, err := h.repo.DefinitionByID(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def := &models.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Version:     1,
		Status:      models.DefinitionStatusDraft,
		Graph:       req.Graph,
		Subgraphs:   req.Subgraphs,
	}

	if err := h.repo.SaveDefinition(c.Context(), def); err != nil {
		return handleRepositoryError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def, err := h.repo.DefinitionByID(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	if req.Name != nil {
		def.Name = *req.Name
	}

	if req.Description != nil {
		def.Description = *req.Description
	}

	if req.Owner != nil {
		def.Owner = *req.Owner
	}

	// Graph edits bump the version and demote the definition back to draft so
	// a changed graph cannot run without re-publishing.
	if req.Graph != nil || req.Subgraphs != nil {
		if req.Graph != nil {
			def.Graph = req.Graph
		}

		if req.Subgraphs != nil {
			def.Subgraphs = req.Subgraphs
		}

		def.Version++
		def.Status = models.DefinitionStatusDraft
		def.PublishedAt = nil
	}

	if err := h.repo.SaveDefinition(c.Context(), def); err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	if err := h.repo.DeleteDefinition(c.Context(), id); err != nil {
		return handleRepositoryError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PublishWorkflow validates the graph and marks the definition executable.
func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	def, err := h.repo.DefinitionByID(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	if err := h.scheduler.Validate(def); err != nil {
		return handleRepositoryError(c, err)
	}

	now := time.Now().UTC()
	def.Status = models.DefinitionStatusPublished
	def.PublishedAt = &now

	if err := h.repo.SaveDefinition(c.Context(), def); err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(def)
}

// ValidateWorkflow runs graph validation without changing the definition.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	def, err := h.repo.DefinitionByID(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	if err := h.scheduler.Validate(def); err != nil {
		return c.JSON(fiber.Map{"valid": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{"valid": true})
}

// executionLine is one NDJSON line of the execution stream. Progress lines
// carry an item; the final line carries the terminal status.
type executionLine struct {
	InstanceID string                 `json:"instance_id"`
	Item       *models.ProcessingItem `json:"item,omitempty"`
	Status     models.RunStatus       `json:"status,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// ExecuteWorkflow starts a run and streams pipeline transitions as NDJSON,
// one line per transition plus a terminal status line. A client disconnect
// cancels the run.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	// The run outlives the handler; the stream writer below runs after the
	// handler returns, so the run context cannot hang off the request.
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)

	if req.TimeoutSeconds > 0 {
		budget := time.Duration(req.TimeoutSeconds * float64(time.Second))
		runCtx, cancel = context.WithTimeout(context.Background(), budget)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}

	exec, err := h.runner.Start(runCtx, id, req.Parameters)
	if err != nil {
		cancel()

		return handleRepositoryError(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		encoder := json.NewEncoder(w)

		// On write failure the loop keeps draining so the emitter's pump can
		// finish; the cancelled run winds down on its own.
		streamBroken := false

		for item := range exec.Items() {
			if streamBroken {
				continue
			}

			line := executionLine{InstanceID: exec.InstanceID, Item: &item}

			if err := encoder.Encode(line); err != nil {
				cancel()

				streamBroken = true

				continue
			}

			if err := w.Flush(); err != nil {
				cancel()

				streamBroken = true
			}
		}

		status, runErr := exec.Result()

		line := executionLine{InstanceID: exec.InstanceID, Status: status}
		if runErr != nil {
			line.Error = runErr.Error()
		}

		if err := encoder.Encode(line); err == nil {
			_ = w.Flush()
		}
	})
}

// GetExecutions lists the recorded runs of a definition, newest first.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	if h.history == nil {
		return historyDisabled(c)
	}

	snaps, err := h.history.SnapshotsByDefinition(c.Context(), id)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  snaps,
		"total_count": len(snaps),
	})
}

// GetExecution returns one run snapshot by instance ID.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	instanceID := c.Params("instanceId")
	if instanceID == "" {
		return badRequest(c, "instance ID is required")
	}

	if h.history == nil {
		return historyDisabled(c)
	}

	snap, err := h.history.SnapshotByInstanceID(c.Context(), instanceID)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(snap)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
