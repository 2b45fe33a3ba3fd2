package postgres_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/persistence/postgres"
	"github.com/flowgraph/flowgraph/pkg/testutil"
)

// setupTestDB connects to the database named by FLOWGRAPH_POSTGRES_URL. Tests
// are skipped when the variable is unset so the suite stays runnable without
// a database.
func setupTestDB(t *testing.T) (*postgres.Persistence, context.Context) {
	t.Helper()

	databaseURL := os.Getenv("FLOWGRAPH_POSTGRES_URL")
	if databaseURL == "" {
		t.Skip("FLOWGRAPH_POSTGRES_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgres.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = p.Close(ctx)
	})

	return p, ctx
}

func TestDefinitionLifecycle(t *testing.T) {
	p, ctx := setupTestDB(t)
	repo := p.DefinitionRepository()

	def := testutil.CreateTestDefinition()
	require.NoError(t, repo.SaveDefinition(ctx, def))

	loaded, err := repo.DefinitionByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, def.Name, loaded.Name)
	assert.Equal(t, models.DefinitionStatusPublished, loaded.Status)
	assert.Len(t, loaded.Graph.Nodes, 2)

	def.Name = "Renamed Workflow"
	def.Version = 2
	require.NoError(t, repo.SaveDefinition(ctx, def))

	loaded, err = repo.DefinitionByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Workflow", loaded.Name)
	assert.Equal(t, 2, loaded.Version)

	require.NoError(t, repo.DeleteDefinition(ctx, def.ID))

	_, err = repo.DefinitionByID(ctx, def.ID)
	assert.True(t, errors.Is(err, persistence.ErrDefinitionNotFound))
}

func TestHealthCheck(t *testing.T) {
	p, ctx := setupTestDB(t)
	assert.NoError(t, p.HealthCheck(ctx))
}
