// Package runner coordinates a full workflow execution: it loads the
// published definition, streams scheduler progress through an emitter, and
// publishes lifecycle events plus a terminal history snapshot.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowgraph/flowgraph/pkg/emitter"
	"github.com/flowgraph/flowgraph/pkg/eventbus"
	"github.com/flowgraph/flowgraph/pkg/events"
	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/otelhelper"
	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/scheduler"
)

// Runner starts workflow executions. The event publisher and history store
// are optional; a nil value disables that concern, which is how the CLI runs
// workflows straight from a file.
type Runner struct {
	repo      persistence.DefinitionRepository
	scheduler *scheduler.Scheduler
	publisher eventbus.EventPublisher
	history   persistence.HistoryStore
	tracer    trace.Tracer
	logger    *slog.Logger
}

type Option func(*Runner)

// WithEventPublisher enables lifecycle event publishing.
func WithEventPublisher(p eventbus.EventPublisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithHistoryStore enables terminal run snapshots.
func WithHistoryStore(h persistence.HistoryStore) Option {
	return func(r *Runner) {
		r.history = h
	}
}

// WithTracer enables a span per run.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

func New(repo persistence.DefinitionRepository, sched *scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		repo:      repo,
		scheduler: sched,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Execution is one in-flight workflow run. Items streams progress while the
// run executes; Result blocks until the run reaches a terminal state.
type Execution struct {
	InstanceID   string
	DefinitionID string

	emitter *emitter.Emitter

	done   chan struct{}
	once   sync.Once
	status models.RunStatus
	err    error
}

// Items streams pipeline transitions in emission order. The channel closes
// once the run finishes and every queued item has been delivered.
func (e *Execution) Items() <-chan models.ProcessingItem {
	return e.emitter.Items()
}

// Result blocks until the run is terminal and returns its status. The error
// is the run's failure cause, nil for completed runs.
func (e *Execution) Result() (models.RunStatus, error) {
	<-e.done

	return e.status, e.err
}

func (e *Execution) finish(status models.RunStatus, err error) {
	e.once.Do(func() {
		e.status = status
		e.err = err
		close(e.done)
	})
}

// Start launches one execution of a published definition. The returned
// Execution streams progress immediately; the run itself proceeds on a
// background goroutine bound to ctx.
func (r *Runner) Start(ctx context.Context, definitionID string, params map[string]any) (*Execution, error) {
	def, err := r.repo.DefinitionByID(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	if def.Status != models.DefinitionStatusPublished {
		return nil, fmt.Errorf("definition %s: %w", definitionID, persistence.ErrNotPublished)
	}

	return r.StartDefinition(ctx, def, params)
}

// StartDefinition launches an execution of an already loaded definition,
// bypassing the repository. Used by the CLI for file-based runs.
func (r *Runner) StartDefinition(ctx context.Context, def *models.WorkflowDefinition, params map[string]any) (*Execution, error) {
	instanceID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate instance ID: %w", err)
	}

	exec := &Execution{
		InstanceID:   instanceID.String(),
		DefinitionID: def.ID,
		emitter:      emitter.New(),
		done:         make(chan struct{}),
	}

	rc := models.NewRunContext(exec.InstanceID, def.ID, nil, params)
	startedAt := time.Now().UTC()

	r.publishEvent(ctx, def.ID, events.RunStarted{
		BaseEvent:         r.baseEvent(events.RunStartedEvent, def.ID, exec.InstanceID),
		RuntimeParameters: params,
	})

	runCtx := ctx

	var span trace.Span
	if r.tracer != nil {
		runCtx, span = otelhelper.StartSpan(ctx, r.tracer, "workflow.run",
			attribute.String(otelhelper.DefinitionIDKey, def.ID),
			attribute.String(otelhelper.DefinitionNameKey, def.Name),
			attribute.String(otelhelper.InstanceIDKey, exec.InstanceID),
		)
	}

	var sink scheduler.Sink = exec.emitter
	if r.publisher != nil {
		sink = &teeSink{runner: r, exec: exec}
	}

	go func() {
		defer exec.emitter.Close()

		status, runErr := r.scheduler.Run(runCtx, def, rc, sink)
		duration := time.Since(startedAt)

		if span != nil {
			if runErr != nil {
				otelhelper.SetError(span, runErr)
			}

			span.End()
		}

		r.publishTerminalEvent(def.ID, exec.InstanceID, status, runErr, len(rc.Pipelines()), duration)
		r.saveSnapshot(rc, status, runErr)

		exec.finish(status, runErr)
	}()

	return exec, nil
}

// teeSink forwards every progress item to the emitter and additionally
// publishes terminal node transitions as lifecycle events.
type teeSink struct {
	runner *Runner
	exec   *Execution

	mu      sync.Mutex
	started map[string]time.Time
}

func (t *teeSink) Emit(item models.ProcessingItem) {
	t.exec.emitter.Emit(item)

	// Synthetic items carry no node key; the run-level failure event covers
	// them.
	if item.NodeKey == "" {
		return
	}

	t.mu.Lock()

	if t.started == nil {
		t.started = make(map[string]time.Time)
	}

	var durationMs int64

	if item.State == models.PipelineStateRunning {
		t.started[item.NodeKey] = item.ExecutedTime
	} else if startedAt, ok := t.started[item.NodeKey]; ok {
		durationMs = item.ExecutedTime.Sub(startedAt).Milliseconds()
		delete(t.started, item.NodeKey)
	}

	t.mu.Unlock()

	r := t.runner

	switch item.State {
	case models.PipelineStateCompleted:
		r.publishEvent(context.Background(), t.exec.DefinitionID, events.NodeFinished{
			BaseEvent:  r.baseEvent(events.NodeFinishedEvent, t.exec.DefinitionID, t.exec.InstanceID),
			NodeKey:    item.NodeKey,
			NodeType:   item.NodeType,
			Output:     item.Output,
			DurationMs: durationMs,
		})
	case models.PipelineStateFailed:
		r.publishEvent(context.Background(), t.exec.DefinitionID, events.NodeFailed{
			BaseEvent:    r.baseEvent(events.NodeFailedEvent, t.exec.DefinitionID, t.exec.InstanceID),
			NodeKey:      item.NodeKey,
			NodeType:     item.NodeType,
			ErrorMessage: item.ErrorMessage,
			DurationMs:   durationMs,
		})
	}
}

func (r *Runner) publishTerminalEvent(definitionID, instanceID string, status models.RunStatus, runErr error, pipelineCount int, duration time.Duration) {
	var event eventbus.Event

	switch status {
	case models.RunStatusCompleted:
		event = events.RunCompleted{
			BaseEvent:     r.baseEvent(events.RunCompletedEvent, definitionID, instanceID),
			PipelineCount: pipelineCount,
			Duration:      duration,
		}
	case models.RunStatusCancelled:
		event = events.RunCancelled{
			BaseEvent: r.baseEvent(events.RunCancelledEvent, definitionID, instanceID),
			Duration:  duration,
		}
	default:
		message := "run failed"
		if runErr != nil {
			message = runErr.Error()
		}

		event = events.RunFailed{
			BaseEvent: r.baseEvent(events.RunFailedEvent, definitionID, instanceID),
			Error:     message,
			Duration:  duration,
		}
	}

	// Terminal events outlive the run's own context.
	r.publishEvent(context.Background(), definitionID, event)
}

func (r *Runner) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.Error("failed to publish run event",
			"event_type", event.GetType(), "error", err)
	}
}

func (r *Runner) saveSnapshot(rc *models.RunContext, status models.RunStatus, runErr error) {
	if r.history == nil {
		return
	}

	snap := models.NewRunSnapshot(rc, status, runErr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.history.SaveSnapshot(ctx, snap); err != nil {
		r.logger.Error("failed to save run snapshot",
			"instance_id", rc.InstanceID, "error", err)
	}
}

func (r *Runner) baseEvent(eventType events.EventType, definitionID, instanceID string) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		DefinitionID: definitionID,
		InstanceID:   instanceID,
	}
}
