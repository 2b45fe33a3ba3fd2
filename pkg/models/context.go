package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrDuplicatePipeline indicates two writes to the same pipeline key. Branch
// and iteration keys are namespaced before dispatch, so this always points at
// a scheduler bug or an invalid graph.
var ErrDuplicatePipeline = errors.New("pipeline key already written")

// runState is the mutable state shared by a run and all of its branch and
// iteration scopes. The pipeline map is append-only; each concurrent branch
// writes a disjoint key, so the mutex only guards map structure.
type runState struct {
	mu        sync.RWMutex
	executed  map[string]struct{}
	pipelines map[string]*NodePipeline
	order     []string
}

// RunContext holds the state scoped to a single workflow execution. System
// variables and runtime parameters are populated once at run start and are
// read-only thereafter. Iteration scopes created with ForIteration share the
// same underlying state and add a loop namespace plus a derived-key suffix.
type RunContext struct {
	InstanceID        string
	DefinitionID      string
	SystemVariables   map[string]any
	RuntimeParameters map[string]any

	state  *runState
	loop   map[string]any
	suffix string
}

// NewRunContext constructs the context for one execution.
func NewRunContext(instanceID, definitionID string, systemVars, params map[string]any) *RunContext {
	if systemVars == nil {
		systemVars = make(map[string]any)
	}

	if params == nil {
		params = make(map[string]any)
	}

	if _, ok := systemVars["timestamp"]; !ok {
		systemVars["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	return &RunContext{
		InstanceID:        instanceID,
		DefinitionID:      definitionID,
		SystemVariables:   systemVars,
		RuntimeParameters: params,
		state: &runState{
			executed:  make(map[string]struct{}),
			pipelines: make(map[string]*NodePipeline),
		},
	}
}

// ForIteration returns a view of the context scoped to one foreach iteration.
// Node keys created and resolved through the returned context are suffixed
// with "#<index>" so each iteration's records stay distinct. The suffix
// appends to the parent scope's suffix, so a foreach nested inside another
// body derives "key#outer#inner" and iterations never collide across outer
// iterations.
func (rc *RunContext) ForIteration(index int, item any) *RunContext {
	return &RunContext{
		InstanceID:        rc.InstanceID,
		DefinitionID:      rc.DefinitionID,
		SystemVariables:   rc.SystemVariables,
		RuntimeParameters: rc.RuntimeParameters,
		state:             rc.state,
		loop: map[string]any{
			"item":  item,
			"index": index,
		},
		suffix: rc.suffix + "#" + strconv.Itoa(index),
	}
}

// LoopScope returns the current iteration's loop variables, nil outside a
// foreach body.
func (rc *RunContext) LoopScope() map[string]any {
	return rc.loop
}

// DerivedKey maps a design node key to the pipeline key for this scope.
func (rc *RunContext) DerivedKey(nodeKey string) string {
	return nodeKey + rc.suffix
}

// AddPipeline appends a pipeline record. The key must not have been written
// before on this scope's derivation.
func (rc *RunContext) AddPipeline(p *NodePipeline) error {
	rc.state.mu.Lock()
	defer rc.state.mu.Unlock()

	if _, exists := rc.state.pipelines[p.NodeKey]; exists {
		return fmt.Errorf("add pipeline %s: %w", p.NodeKey, ErrDuplicatePipeline)
	}

	rc.state.pipelines[p.NodeKey] = p
	rc.state.order = append(rc.state.order, p.NodeKey)

	return nil
}

// Pipeline looks up a pipeline record by design node key. Inside an iteration
// scope the longest matching suffix chain wins, then each enclosing scope in
// turn, falling back to the bare key so body nodes can still reference nodes
// executed before the loop.
func (rc *RunContext) Pipeline(nodeKey string) (*NodePipeline, bool) {
	rc.state.mu.RLock()
	defer rc.state.mu.RUnlock()

	for suffix := rc.suffix; suffix != ""; suffix = suffix[:strings.LastIndex(suffix, "#")] {
		if p, ok := rc.state.pipelines[nodeKey+suffix]; ok {
			return p, true
		}
	}

	p, ok := rc.state.pipelines[nodeKey]

	return p, ok
}

// MarkExecuted records that a node key has been dispatched.
func (rc *RunContext) MarkExecuted(nodeKey string) {
	rc.state.mu.Lock()
	defer rc.state.mu.Unlock()

	rc.state.executed[nodeKey] = struct{}{}
}

// Executed reports whether a node key has been dispatched. Used as the
// re-entry guard for join nodes reachable from several branches.
func (rc *RunContext) Executed(nodeKey string) bool {
	rc.state.mu.RLock()
	defer rc.state.mu.RUnlock()

	_, ok := rc.state.executed[nodeKey]

	return ok
}

// Pipelines returns all pipeline records in insertion order.
func (rc *RunContext) Pipelines() []*NodePipeline {
	rc.state.mu.RLock()
	defer rc.state.mu.RUnlock()

	out := make([]*NodePipeline, 0, len(rc.state.order))
	for _, key := range rc.state.order {
		out = append(out, rc.state.pipelines[key])
	}

	return out
}
