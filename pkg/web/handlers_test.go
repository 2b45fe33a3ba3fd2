package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/pkg/collab"
	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/persistence/file"
	"github.com/flowgraph/flowgraph/pkg/registry"
	"github.com/flowgraph/flowgraph/pkg/runner"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
	"github.com/flowgraph/flowgraph/pkg/testutil"
	"github.com/flowgraph/flowgraph/pkg/web"
)

type memoryHistory struct {
	mu    sync.Mutex
	snaps map[string]*models.RunSnapshot
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{snaps: make(map[string]*models.RunSnapshot)}
}

func (h *memoryHistory) SaveSnapshot(_ context.Context, snap *models.RunSnapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snaps[snap.InstanceID] = snap

	return nil
}

func (h *memoryHistory) SnapshotByInstanceID(_ context.Context, instanceID string) (*models.RunSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, ok := h.snaps[instanceID]
	if !ok {
		return nil, persistence.ErrSnapshotNotFound
	}

	return snap, nil
}

func (h *memoryHistory) SnapshotsByDefinition(_ context.Context, definitionID string) ([]*models.RunSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*models.RunSnapshot, 0)

	for _, snap := range h.snaps {
		if snap.DefinitionID == definitionID {
			out = append(out, snap)
		}
	}

	return out, nil
}

func setupTestApp(t *testing.T) (*fiber.App, persistence.DefinitionRepository) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := file.NewPersistence(t.TempDir()).DefinitionRepository()
	history := newMemoryHistory()

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults(registry.Collaborators{
		AI:     &collab.EchoCompletion{},
		Wiki:   collab.NewStaticWiki(),
		Plugin: collab.NewFuncInvoker(),
	})

	sched := scheduler.New(reg, logger)
	run := runner.New(repo, sched, logger, runner.WithHistoryStore(history))

	handlers := web.NewAPIHandlers(repo, history, run, sched,
		validator.New(validator.WithRequiredStructEnabled()), logger)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/publish", handlers.PublishWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)
	w.Post("/:id/executions", handlers.ExecuteWorkflow)
	w.Get("/:id/executions", handlers.GetExecutions)

	app.Get("/executions/:instanceId", handlers.GetExecution)
	app.Get("/health", handlers.HealthCheck)

	return app, repo
}

func jsonRequest(method, target string, payload any) *http.Request {
	var body *bytes.Buffer
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestCreateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	payload := web.CreateWorkflowRequest{
		Name: "Echo Flow",
		Graph: &models.Graph{
			Nodes: []*models.NodeDesign{
				testutil.CreateTestNode("start", models.NodeTypeStart),
				testutil.CreateTestNode("end", models.NodeTypeEnd),
			},
			Connections: []*models.Connection{testutil.Connect("start", "end")},
		},
	}

	resp, err := app.Test(jsonRequest(http.MethodPost, "/workflows", payload))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var def models.WorkflowDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&def))
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, "Echo Flow", def.Name)
	assert.Equal(t, models.DefinitionStatusDraft, def.Status)
}

func TestCreateWorkflow_MissingName(t *testing.T) {
	app, _ := setupTestApp(t)

	payload := web.CreateWorkflowRequest{
		Graph: &models.Graph{},
	}

	resp, err := app.Test(jsonRequest(http.MethodPost, "/workflows", payload))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishWorkflow(t *testing.T) {
	app, repo := setupTestApp(t)

	def := testutil.CreateTestDefinition(testutil.WithStatus(models.DefinitionStatusDraft))
	require.NoError(t, repo.SaveDefinition(context.Background(), def))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/workflows/"+def.ID+"/publish", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var published models.WorkflowDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&published))
	assert.Equal(t, models.DefinitionStatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)
}

func TestPublishWorkflow_InvalidGraph(t *testing.T) {
	app, repo := setupTestApp(t)

	// No end node.
	def := testutil.CreateTestDefinition(
		testutil.WithStatus(models.DefinitionStatusDraft),
		testutil.WithGraph(
			[]*models.NodeDesign{testutil.CreateTestNode("start", models.NodeTypeStart)},
			nil,
		))
	require.NoError(t, repo.SaveDefinition(context.Background(), def))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/workflows/"+def.ID+"/publish", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExecuteWorkflow_RejectsDraft(t *testing.T) {
	app, repo := setupTestApp(t)

	def := testutil.CreateTestDefinition(testutil.WithStatus(models.DefinitionStatusDraft))
	require.NoError(t, repo.SaveDefinition(context.Background(), def))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/workflows/"+def.ID+"/executions", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestExecuteWorkflow_StreamsProgress(t *testing.T) {
	app, repo := setupTestApp(t)

	def := testutil.CreateTestDefinition()
	require.NoError(t, repo.SaveDefinition(context.Background(), def))

	payload := web.ExecuteWorkflowRequest{Parameters: map[string]any{"text": "hi"}}

	resp, err := app.Test(
		jsonRequest(http.MethodPost, "/workflows/"+def.ID+"/executions", payload),
		fiber.TestConfig{Timeout: 10 * time.Second},
	)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")

	// Two transitions per node plus the terminal status line.
	require.Len(t, lines, 5)

	var last struct {
		InstanceID string           `json:"instance_id"`
		Status     models.RunStatus `json:"status"`
	}

	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, models.RunStatusCompleted, last.Status)
	assert.NotEmpty(t, last.InstanceID)

	// The snapshot is saved before the stream completes.
	snapResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+last.InstanceID, nil))
	require.NoError(t, err)

	defer snapResp.Body.Close()

	assert.Equal(t, http.StatusOK, snapResp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
