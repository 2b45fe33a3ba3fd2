// Package postgres provides the PostgreSQL definition store. The graph and
// its sub-graphs serialize to JSONB columns; definition metadata stays
// relational for listing and filtering.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/persistence/sqlbase"
)

type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
	repo   *DefinitionRepository
}

// NewPersistence connects, migrates, and returns the store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,
		repo:   NewDefinitionRepository(database, logger),
	}, nil
}

func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.repo
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db == nil {
		return nil
	}

	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close database connection: %w", err)
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				version INTEGER NOT NULL DEFAULT 1,
				status VARCHAR(32) NOT NULL DEFAULT 'draft',
				graph JSONB NOT NULL,
				subgraphs JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				published_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_definitions_status
				ON workflow_definitions(status) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_workflow_definitions_owner
				ON workflow_definitions(owner) WHERE deleted_at IS NULL;
		`,
	}
}
