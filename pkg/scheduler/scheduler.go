// Package scheduler walks a workflow graph from its start node, dispatching
// node executors in dependency order and streaming pipeline transitions to a
// progress sink. Fork branches and foreach iterations run as independent
// goroutines joined by structural barriers.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/flowgraph/flowgraph/pkg/expression"
	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/nodes/foreach"
	"github.com/flowgraph/flowgraph/pkg/protocol"
	"github.com/flowgraph/flowgraph/pkg/registry"
)

// Policy selects how a node failure propagates across sibling branches.
type Policy string

const (
	// PolicyFailFast stops dispatching new work in sibling branches on the
	// first node failure. Default.
	PolicyFailFast Policy = "fail_fast"

	// PolicyBestEffort lets sibling branches settle before the run fails.
	PolicyBestEffort Policy = "best_effort"
)

// Sink receives one item per observable pipeline transition. The emitter
// package provides the production implementation.
type Sink interface {
	Emit(item models.ProcessingItem)
}

type Scheduler struct {
	registry *registry.Registry
	logger   *slog.Logger
	policy   Policy
}

type Option func(*Scheduler)

func WithPolicy(p Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

func New(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry: reg,
		logger:   logger,
		policy:   PolicyFailFast,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type runEnv struct {
	def     *models.WorkflowDefinition
	sink    Sink
	rootCtx context.Context
}

// Run executes one workflow instance to a terminal state. Every pipeline
// transition is emitted to the sink before Run returns; the caller owns
// closing the sink. A node failure surfaces through that node's failed item
// plus the returned error; definition defects and internal failures
// additionally emit a synthetic terminal error item.
func (s *Scheduler) Run(ctx context.Context, def *models.WorkflowDefinition, rc *models.RunContext, sink Sink) (models.RunStatus, error) {
	logger := s.logger.With(
		"definition_id", def.ID,
		"instance_id", rc.InstanceID,
	)
	logger.Info("starting workflow run")

	if err := s.Validate(def); err != nil {
		logger.Error("definition rejected", "error", err)
		sink.Emit(syntheticErrorItem(err))

		return models.RunStatusFailed, err
	}

	start, _ := def.Graph.StartNode()
	env := &runEnv{def: def, sink: sink, rootCtx: ctx}

	_, err := s.runPath(ctx, env, def.Graph, rc, start.NodeKey, false)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("run cancelled")

			return models.RunStatusCancelled, ErrCancelled
		}

		logger.Error("run failed", "error", err)

		if IsConfigurationError(err) || errors.Is(err, models.ErrDuplicatePipeline) {
			sink.Emit(syntheticErrorItem(err))
		}

		return models.RunStatusFailed, err
	}

	logger.Info("run completed", "pipelines", len(rc.Pipelines()))

	return models.RunStatusCompleted, nil
}

// runPath executes nodes sequentially starting at key until the path ends,
// fails, or (when haltAtJoin is set) reaches a node with more than one
// incoming edge. Fork branch goroutines run with haltAtJoin so the barrier in
// runBranches can continue past the join exactly once.
func (s *Scheduler) runPath(ctx context.Context, env *runEnv, graph *models.Graph, rc *models.RunContext, key string, haltAtJoin bool) (string, error) {
	skipJoinCheck := false

	for key != "" {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}

		design, ok := graph.NodeByKey(key)
		if !ok {
			return "", configErrorf("node '%s' not found", key)
		}

		if !skipJoinCheck && len(graph.Incoming(key)) > 1 {
			if haltAtJoin {
				return key, nil
			}

			if rc.Executed(rc.DerivedKey(key)) {
				return "", nil
			}
		}

		skipJoinCheck = false

		if design.Type == models.NodeTypeForEach {
			if err := s.runForEach(ctx, env, rc, design); err != nil {
				return "", err
			}

			key = singleSuccessor(graph, design)

			continue
		}

		_, result, err := s.executeNode(ctx, env, design, rc, false)
		if err != nil {
			return "", err
		}

		switch design.Type {
		case models.NodeTypeEnd:
			return "", nil
		case models.NodeTypeCondition:
			conn, ok := graph.OutgoingByLabel(design.NodeKey, result.NextOverride[0])
			if !ok {
				return "", configErrorf("condition '%s' has no connection labeled '%s'", design.NodeKey, result.NextOverride[0])
			}

			key = conn.TargetNodeKey
		case models.NodeTypeFork:
			branches := result.NextOverride
			if len(branches) == 0 {
				branches = successors(graph, design)
			}

			joinKey, err := s.runBranches(ctx, env, graph, rc, branches)
			if err != nil {
				return "", err
			}

			key = joinKey
			skipJoinCheck = true
		default:
			next := successors(graph, design)

			switch len(next) {
			case 0:
				return "", nil
			case 1:
				key = next[0]
			default:
				joinKey, err := s.runBranches(ctx, env, graph, rc, next)
				if err != nil {
					return "", err
				}

				key = joinKey
				skipJoinCheck = true
			}
		}
	}

	return "", nil
}

// executeNode drives one pipeline through its transitions: create pending,
// resolve inputs, run the executor under its timeout, record the terminal
// state, emitting an item at each observable step. With deferCompletion the
// successful terminal transition is left to the caller (foreach aggregates
// iteration results before completing its own pipeline).
func (s *Scheduler) executeNode(ctx context.Context, env *runEnv, design *models.NodeDesign, rc *models.RunContext, deferCompletion bool) (*models.NodePipeline, *protocol.Result, error) {
	key := rc.DerivedKey(design.NodeKey)
	pipeline := models.NewNodePipeline(key, design.Type)

	if err := rc.AddPipeline(pipeline); err != nil {
		return nil, nil, err
	}

	rc.MarkExecuted(key)

	input, err := expression.ResolveInputs(design.InputDesigns, rc)
	if err != nil {
		_ = pipeline.MarkFailed(err)
		env.sink.Emit(models.NewProcessingItem(pipeline))

		return pipeline, nil, err
	}

	if err := pipeline.MarkRunning(input); err != nil {
		return pipeline, nil, err
	}

	env.sink.Emit(models.NewProcessingItem(pipeline))

	executor, err := s.registry.Executor(design.Type)
	if err != nil {
		wrapped := configErrorf("node '%s': %v", key, err)
		_ = pipeline.MarkFailed(wrapped)
		env.sink.Emit(models.NewProcessingItem(pipeline))

		return pipeline, nil, wrapped
	}

	timeout, err := s.registry.TimeoutFor(design)
	if err != nil {
		timeout = executor.Timeout()
	}

	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, execErr := executor.Execute(nodeCtx, design, input, rc)
	if execErr != nil {
		kind := ErrorKindUpstream
		if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			kind = ErrorKindTimeout
		}

		wrapped := &ExecutorError{NodeKey: key, Kind: kind, Err: execErr}
		_ = pipeline.MarkFailed(wrapped)
		env.sink.Emit(models.NewProcessingItem(pipeline))

		return pipeline, nil, wrapped
	}

	if deferCompletion {
		return pipeline, result, nil
	}

	if err := pipeline.MarkCompleted(result.Output); err != nil {
		return pipeline, nil, err
	}

	env.sink.Emit(models.NewProcessingItem(pipeline))

	return pipeline, result, nil
}

// runBranches dispatches one goroutine per branch head and waits for all of
// them to settle. Branches stop at the first node with several incoming
// edges; that node is the structural join the caller continues from. Under
// fail-fast, the first branch failure cancels the siblings' dispatch.
func (s *Scheduler) runBranches(ctx context.Context, env *runEnv, graph *models.Graph, rc *models.RunContext, branches []string) (string, error) {
	branchCtx := ctx

	var cancel context.CancelFunc

	if s.policy == PolicyFailFast {
		branchCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		joinKeys = make(map[string]struct{})
	)

	for _, head := range branches {
		wg.Add(1)

		go func(head string) {
			defer wg.Done()

			joinKey, err := s.runPath(branchCtx, env, graph, rc, head, true)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// Local cancellation is fail-fast fallout from a sibling,
				// not a branch failure in its own right.
				if errors.Is(err, ErrCancelled) && env.rootCtx.Err() == nil {
					return
				}

				if firstErr == nil {
					firstErr = err

					if cancel != nil {
						cancel()
					}
				}

				return
			}

			if joinKey != "" {
				joinKeys[joinKey] = struct{}{}
			}
		}(head)
	}

	wg.Wait()

	if env.rootCtx.Err() != nil {
		return "", ErrCancelled
	}

	if firstErr != nil {
		return "", firstErr
	}

	if len(joinKeys) > 1 {
		return "", configErrorf("branches converge at %d distinct join nodes", len(joinKeys))
	}

	for key := range joinKeys {
		return key, nil
	}

	return "", nil
}

// runForEach executes the foreach node and then its body sub-graph once per
// array element, each iteration as its own goroutine with a derived key
// scope. The foreach pipeline completes only after every iteration settles,
// carrying the aggregated results.
func (s *Scheduler) runForEach(ctx context.Context, env *runEnv, rc *models.RunContext, design *models.NodeDesign) error {
	pipeline, result, err := s.executeNode(ctx, env, design, rc, true)
	if err != nil {
		if errors.Is(err, foreach.ErrNotArray) {
			return configErrorf("%v", err)
		}

		return err
	}

	items, _ := result.Output["items"].([]any)
	body, _ := env.def.Body(design.NodeKey)
	entry, _ := bodyEntry(body)
	tail, _ := bodyTail(body)
	halt := foreach.HaltOnError(design)

	iterCtx, cancelIters := context.WithCancel(ctx)
	defer cancelIters()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		iterErrs  []map[string]any
		iterFirst error
	)

	results := make([]any, len(items))

	for i, item := range items {
		wg.Add(1)

		go func(i int, item any) {
			defer wg.Done()

			irc := rc.ForIteration(i, item)

			_, runErr := s.runPath(iterCtx, env, body, irc, entry, false)
			if runErr != nil {
				mu.Lock()
				defer mu.Unlock()

				if errors.Is(runErr, ErrCancelled) && env.rootCtx.Err() == nil {
					return
				}

				iterErrs = append(iterErrs, map[string]any{
					"index": i,
					"error": runErr.Error(),
				})

				if iterFirst == nil {
					iterFirst = runErr
				}

				if halt {
					cancelIters()
				}

				return
			}

			if p, ok := irc.Pipeline(tail); ok {
				mu.Lock()
				results[i] = p.Output
				mu.Unlock()
			}
		}(i, item)
	}

	wg.Wait()

	if env.rootCtx.Err() != nil {
		_ = pipeline.MarkFailed(ErrCancelled)
		env.sink.Emit(models.NewProcessingItem(pipeline))

		return ErrCancelled
	}

	if halt && iterFirst != nil {
		_ = pipeline.MarkFailed(iterFirst)
		env.sink.Emit(models.NewProcessingItem(pipeline))

		return iterFirst
	}

	sort.Slice(iterErrs, func(a, b int) bool {
		return iterErrs[a]["index"].(int) < iterErrs[b]["index"].(int)
	})

	output := map[string]any{
		"results": results,
		"count":   len(items),
	}
	if len(iterErrs) > 0 {
		output["errors"] = iterErrs
	}

	if err := pipeline.MarkCompleted(output); err != nil {
		return err
	}

	env.sink.Emit(models.NewProcessingItem(pipeline))

	return nil
}

func successors(g *models.Graph, design *models.NodeDesign) []string {
	if len(design.NextNodeKeys) > 0 {
		return design.NextNodeKeys
	}

	var out []string
	for _, c := range g.Outgoing(design.NodeKey) {
		out = append(out, c.TargetNodeKey)
	}

	return out
}

func singleSuccessor(g *models.Graph, design *models.NodeDesign) string {
	next := successors(g, design)
	if len(next) == 0 {
		return ""
	}

	return next[0]
}

// syntheticErrorItem is the final stream event for a terminal scheduler
// failure that no single node's pipeline can carry.
func syntheticErrorItem(err error) models.ProcessingItem {
	return models.ProcessingItem{
		NodeKey:      "",
		State:        models.PipelineStateFailed,
		ErrorMessage: err.Error(),
		ExecutedTime: time.Now().UTC(),
	}
}
