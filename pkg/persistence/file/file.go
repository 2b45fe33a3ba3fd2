// Package file provides the file-system backed definition store, one JSON
// document per definition. Suitable for local development and tests.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/persistence"
)

type Persistence struct {
	root string
	repo *DefinitionRepository
}

// NewPersistence creates a file-backed persistence rooted at the given
// directory. A "file://" prefix is tolerated.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root: cleanRoot,
		repo: NewDefinitionRepository(cleanRoot),
	}
}

func (p *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.repo
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// DefinitionRepository stores each definition as
// <root>/definitions/<id>.json. A mutex serializes writers; reads go
// straight to the file system.
type DefinitionRepository struct {
	root string
	mu   sync.Mutex
}

func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (r *DefinitionRepository) dir() string {
	return filepath.Join(r.root, "definitions")
}

func (r *DefinitionRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

func (r *DefinitionRepository) Definitions(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	files, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("list definition files: %w", err)
	}

	defs := make([]*models.WorkflowDefinition, 0, len(files))

	for _, file := range files {
		id := strings.TrimSuffix(file, ".json")

		def, err := r.DefinitionByID(ctx, id)
		if err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}

	sort.Slice(defs, func(a, b int) bool {
		return defs[a].CreatedAt.After(defs[b].CreatedAt)
	})

	return defs, nil
}

func (r *DefinitionRepository) DefinitionByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &persistence.DefinitionError{Op: "get", DefinitionID: id, Err: persistence.ErrDefinitionNotFound}
		}

		return nil, &persistence.DefinitionError{Op: "get", DefinitionID: id, Err: err}
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, &persistence.DefinitionError{Op: "get", DefinitionID: id, Err: err}
	}

	return &def, nil
}

func (r *DefinitionRepository) SaveDefinition(_ context.Context, def *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return &persistence.DefinitionError{Op: "save", DefinitionID: def.ID, Err: err}
	}

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return &persistence.DefinitionError{Op: "save", DefinitionID: def.ID, Err: err}
	}

	if err := os.WriteFile(r.path(def.ID), data, 0o600); err != nil {
		return &persistence.DefinitionError{Op: "save", DefinitionID: def.ID, Err: err}
	}

	return nil
}

func (r *DefinitionRepository) DeleteDefinition(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &persistence.DefinitionError{Op: "delete", DefinitionID: id, Err: persistence.ErrDefinitionNotFound}
		}

		return &persistence.DefinitionError{Op: "delete", DefinitionID: id, Err: err}
	}

	return nil
}
