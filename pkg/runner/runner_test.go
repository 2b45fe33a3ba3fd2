package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/flowgraph/pkg/collab"
	"github.com/flowgraph/flowgraph/pkg/eventbus"
	"github.com/flowgraph/flowgraph/pkg/events"
	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/registry"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
	"github.com/flowgraph/flowgraph/pkg/testutil"
)

type memoryRepo struct {
	mu   sync.RWMutex
	defs map[string]*models.WorkflowDefinition
}

func newMemoryRepo(defs ...*models.WorkflowDefinition) *memoryRepo {
	r := &memoryRepo{defs: make(map[string]*models.WorkflowDefinition)}
	for _, d := range defs {
		r.defs[d.ID] = d
	}

	return r
}

func (r *memoryRepo) Definitions(_ context.Context) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.WorkflowDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}

	return out, nil
}

func (r *memoryRepo) DefinitionByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.defs[id]
	if !ok {
		return nil, persistence.ErrDefinitionNotFound
	}

	return d, nil
}

func (r *memoryRepo) SaveDefinition(_ context.Context, def *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defs[def.ID] = def

	return nil
}

func (r *memoryRepo) DeleteDefinition(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.defs, id)

	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetType())
	}

	return out
}

type recordingHistory struct {
	mu    sync.Mutex
	snaps []*models.RunSnapshot
}

func (h *recordingHistory) SaveSnapshot(_ context.Context, snap *models.RunSnapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snaps = append(h.snaps, snap)

	return nil
}

func (h *recordingHistory) SnapshotByInstanceID(_ context.Context, _ string) (*models.RunSnapshot, error) {
	return nil, persistence.ErrSnapshotNotFound
}

func (h *recordingHistory) SnapshotsByDefinition(_ context.Context, _ string) ([]*models.RunSnapshot, error) {
	return nil, nil
}

func newTestRunner(t *testing.T, repo persistence.DefinitionRepository, opts ...Option) *Runner {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaults(registry.Collaborators{
		AI:     &collab.EchoCompletion{},
		Wiki:   collab.NewStaticWiki(),
		Plugin: collab.NewFuncInvoker(),
	})

	return New(repo, scheduler.New(reg, logger), logger, opts...)
}

func drain(t *testing.T, exec *Execution) []models.ProcessingItem {
	t.Helper()

	items := make([]models.ProcessingItem, 0)
	timeout := time.After(5 * time.Second)

	for {
		select {
		case item, ok := <-exec.Items():
			if !ok {
				return items
			}

			items = append(items, item)
		case <-timeout:
			t.Fatal("timed out draining execution items")
		}
	}
}

func TestStart_RunsToCompletion(t *testing.T) {
	def := testutil.CreateTestDefinition()
	publisher := &recordingPublisher{}
	history := &recordingHistory{}

	r := newTestRunner(t, newMemoryRepo(def),
		WithEventPublisher(publisher),
		WithHistoryStore(history))

	exec, err := r.Start(context.Background(), def.ID, map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, exec.InstanceID)

	items := drain(t, exec)

	status, runErr := exec.Result()
	require.NoError(t, runErr)
	assert.Equal(t, models.RunStatusCompleted, status)

	// One running and one completed item per node.
	assert.Len(t, items, 4)

	assert.Equal(t, []events.EventType{
		events.RunStartedEvent,
		events.NodeFinishedEvent,
		events.NodeFinishedEvent,
		events.RunCompletedEvent,
	}, publisher.types())

	require.Len(t, history.snaps, 1)
	assert.Equal(t, exec.InstanceID, history.snaps[0].InstanceID)
	assert.Equal(t, models.RunStatusCompleted, history.snaps[0].Status)
}

func TestStart_RejectsDraftDefinition(t *testing.T) {
	def := testutil.CreateTestDefinition(testutil.WithStatus(models.DefinitionStatusDraft))

	r := newTestRunner(t, newMemoryRepo(def))

	_, err := r.Start(context.Background(), def.ID, nil)
	assert.True(t, errors.Is(err, persistence.ErrNotPublished))
}

func TestStart_UnknownDefinition(t *testing.T) {
	r := newTestRunner(t, newMemoryRepo())

	_, err := r.Start(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, persistence.ErrDefinitionNotFound))
}

func TestStart_FailedRunPublishesFailureEvent(t *testing.T) {
	def := testutil.CreateTestDefinition(testutil.WithGraph(
		[]*models.NodeDesign{
			testutil.CreateTestNode("start", models.NodeTypeStart),
			testutil.CreateTestNode("js", models.NodeTypeJavaScript,
				testutil.WithConfig(map[string]any{"script": "throw new Error('boom')"})),
			testutil.CreateTestNode("end", models.NodeTypeEnd),
		},
		[]*models.Connection{
			testutil.Connect("start", "js"),
			testutil.Connect("js", "end"),
		},
	))

	publisher := &recordingPublisher{}
	history := &recordingHistory{}

	r := newTestRunner(t, newMemoryRepo(def),
		WithEventPublisher(publisher),
		WithHistoryStore(history))

	exec, err := r.Start(context.Background(), def.ID, nil)
	require.NoError(t, err)

	drain(t, exec)

	status, runErr := exec.Result()
	require.Error(t, runErr)
	assert.Equal(t, models.RunStatusFailed, status)

	assert.Equal(t, []events.EventType{
		events.RunStartedEvent,
		events.NodeFinishedEvent,
		events.NodeFailedEvent,
		events.RunFailedEvent,
	}, publisher.types())

	require.Len(t, history.snaps, 1)
	assert.Equal(t, models.RunStatusFailed, history.snaps[0].Status)
}
