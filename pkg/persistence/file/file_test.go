package file

import (
	"context"
	"errors"
	"testing"

	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/testutil"
)

func TestSaveAndLoadDefinition(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.DefinitionRepository()
	ctx := context.Background()

	def := testutil.CreateTestDefinition()

	if err := repo.SaveDefinition(ctx, def); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := repo.DefinitionByID(ctx, def.ID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.ID != def.ID || loaded.Name != def.Name {
		t.Errorf("loaded definition differs: %+v", loaded)
	}

	if len(loaded.Graph.Nodes) != len(def.Graph.Nodes) {
		t.Errorf("graph not round-tripped: %d nodes", len(loaded.Graph.Nodes))
	}
}

func TestSaveDefinition_AssignsID(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.DefinitionRepository()
	ctx := context.Background()

	def := testutil.CreateTestDefinition()
	def.ID = ""

	if err := repo.SaveDefinition(ctx, def); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if def.ID == "" {
		t.Fatal("expected save to assign an ID")
	}

	loaded, err := repo.DefinitionByID(ctx, def.ID)
	if err != nil {
		t.Fatalf("load by assigned ID failed: %v", err)
	}

	if loaded.ID != def.ID {
		t.Errorf("stored ID %s differs from assigned %s", loaded.ID, def.ID)
	}
}

func TestDefinitionByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.DefinitionRepository().DefinitionByID(context.Background(), "missing")
	if !errors.Is(err, persistence.ErrDefinitionNotFound) {
		t.Fatalf("expected ErrDefinitionNotFound, got %v", err)
	}
}

func TestDeleteDefinition(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.DefinitionRepository()
	ctx := context.Background()

	def := testutil.CreateTestDefinition()
	if err := repo.SaveDefinition(ctx, def); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := repo.DeleteDefinition(ctx, def.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := repo.DefinitionByID(ctx, def.ID); !errors.Is(err, persistence.ErrDefinitionNotFound) {
		t.Fatalf("expected ErrDefinitionNotFound after delete, got %v", err)
	}

	if err := repo.DeleteDefinition(ctx, def.ID); !errors.Is(err, persistence.ErrDefinitionNotFound) {
		t.Fatalf("expected ErrDefinitionNotFound on second delete, got %v", err)
	}
}

func TestDefinitions_ListsAll(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.DefinitionRepository()
	ctx := context.Background()

	for range 3 {
		if err := repo.SaveDefinition(ctx, testutil.CreateTestDefinition()); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	defs, err := repo.Definitions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(defs) != 3 {
		t.Errorf("expected 3 definitions, got %d", len(defs))
	}
}
