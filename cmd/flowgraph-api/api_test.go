package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/pkg/cmd"
	"github.com/flowgraph/flowgraph/pkg/persistence/file"
	"github.com/flowgraph/flowgraph/pkg/runner"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
)

func setupTestApp(tempDir string) *fiber.App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(tempDir)
	sched := scheduler.New(cmd.NewRegistry(logger, nil), logger)
	run := runner.New(store.DefinitionRepository(), sched, logger)

	api := NewAPI(logger, store, nil, run, sched)

	return api.App()
}

func TestAPI_Root(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Flowgraph API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_ListWorkflowsEmpty(t *testing.T) {
	app := setupTestApp(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	req.Header.Set("Accept", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
