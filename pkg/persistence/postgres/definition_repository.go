package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/persistence"
)

// DefinitionRepository handles definition-related database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

const definitionColumns = `
	id
  , name
  , description
  , version
  , status
  , graph
  , subgraphs
  , owner
  , created_at
  , updated_at
  , published_at
`

func (r *DefinitionRepository) Definitions(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	defs := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}

		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}

	return defs, nil
}

func (r *DefinitionRepository) DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE id = $1 AND deleted_at IS NULL
	`

	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.DefinitionError{Op: "get", DefinitionID: id, Err: persistence.ErrDefinitionNotFound}
		}

		return nil, &persistence.DefinitionError{Op: "get", DefinitionID: id, Err: err}
	}

	return def, nil
}

func (r *DefinitionRepository) SaveDefinition(ctx context.Context, def *models.WorkflowDefinition) error {
	now := time.Now().UTC()

	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}

	def.UpdatedAt = now

	if def.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate definition ID: %w", err)
		}

		def.ID = id.String()
	}

	graphJSON, err := json.Marshal(def.Graph)
	if err != nil {
		return &persistence.DefinitionError{Op: "save", DefinitionID: def.ID, Err: err}
	}

	subgraphsJSON, err := json.Marshal(def.Subgraphs)
	if err != nil {
		return &persistence.DefinitionError{Op: "save", DefinitionID: def.ID, Err: err}
	}

	query := `
		INSERT INTO workflow_definitions (
			id, name, description, version, status, graph, subgraphs,
			owner, created_at, updated_at, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			status = EXCLUDED.status,
			graph = EXCLUDED.graph,
			subgraphs = EXCLUDED.subgraphs,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		def.ID, def.Name, def.Description, def.Version, def.Status,
		graphJSON, subgraphsJSON, def.Owner,
		def.CreatedAt, def.UpdatedAt, def.PublishedAt,
	)
	if err != nil {
		return &persistence.DefinitionError{Op: "save", DefinitionID: def.ID, Err: err}
	}

	return nil
}

// DeleteDefinition soft deletes by setting deleted_at.
func (r *DefinitionRepository) DeleteDefinition(ctx context.Context, id string) error {
	query := `
		UPDATE workflow_definitions
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return &persistence.DefinitionError{Op: "delete", DefinitionID: id, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &persistence.DefinitionError{Op: "delete", DefinitionID: id, Err: err}
	}

	if affected == 0 {
		return &persistence.DefinitionError{Op: "delete", DefinitionID: id, Err: persistence.ErrDefinitionNotFound}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		def           models.WorkflowDefinition
		description   sql.NullString
		owner         sql.NullString
		graphJSON     []byte
		subgraphsJSON []byte
		publishedAt   sql.NullTime
	)

	err := row.Scan(
		&def.ID, &def.Name, &description, &def.Version, &def.Status,
		&graphJSON, &subgraphsJSON, &owner,
		&def.CreatedAt, &def.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}

	def.Description = description.String
	def.Owner = owner.String

	if publishedAt.Valid {
		def.PublishedAt = &publishedAt.Time
	}

	if err := json.Unmarshal(graphJSON, &def.Graph); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}

	if len(subgraphsJSON) > 0 {
		if err := json.Unmarshal(subgraphsJSON, &def.Subgraphs); err != nil {
			return nil, fmt.Errorf("unmarshal subgraphs: %w", err)
		}
	}

	return &def, nil
}
