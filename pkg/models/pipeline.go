package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PipelineState defines the possible states of a node pipeline.
type PipelineState string

const (
	PipelineStatePending   PipelineState = "pending"
	PipelineStateRunning   PipelineState = "running"
	PipelineStateCompleted PipelineState = "completed"
	PipelineStateFailed    PipelineState = "failed"
)

var (
	// ErrPipelineTerminal indicates a state transition on an already terminal pipeline.
	ErrPipelineTerminal = errors.New("pipeline already terminal")

	// ErrPipelineNotRunning indicates a terminal transition on a pipeline that never ran.
	ErrPipelineNotRunning = errors.New("pipeline is not running")
)

// NodePipeline is the execution record of one node instance for one run.
// Input and output carry a dual representation: the parsed map for in-process
// access and raw JSON for persistence and wire serialization.
// Owned exclusively by the RunContext that created it; immutable once terminal.
type NodePipeline struct {
	NodeKey      string          `json:"node_key"`
	NodeType     NodeType        `json:"node_type"`
	State        PipelineState   `json:"state"`
	Input        map[string]any  `json:"input,omitempty"`
	InputJSON    json.RawMessage `json:"input_json,omitempty"`
	Output       map[string]any  `json:"output,omitempty"`
	OutputJSON   json.RawMessage `json:"output_json,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at,omitzero"`
	FinishedAt   time.Time       `json:"finished_at,omitzero"`
}

// NewNodePipeline creates a pending pipeline record for the given node key.
// The key may be a derived one (e.g. "loop#2") for foreach iterations.
func NewNodePipeline(nodeKey string, nodeType NodeType) *NodePipeline {
	return &NodePipeline{
		NodeKey:  nodeKey,
		NodeType: nodeType,
		State:    PipelineStatePending,
	}
}

// MarkRunning transitions the pipeline to running with the resolved input.
func (p *NodePipeline) MarkRunning(input map[string]any) error {
	if p.Terminal() {
		return fmt.Errorf("mark running %s: %w", p.NodeKey, ErrPipelineTerminal)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal input for %s: %w", p.NodeKey, err)
	}

	p.Input = input
	p.InputJSON = raw
	p.State = PipelineStateRunning
	p.StartedAt = time.Now().UTC()

	return nil
}

// MarkCompleted transitions the pipeline to completed with the produced output.
func (p *NodePipeline) MarkCompleted(output map[string]any) error {
	if p.Terminal() {
		return fmt.Errorf("mark completed %s: %w", p.NodeKey, ErrPipelineTerminal)
	}

	if p.State != PipelineStateRunning {
		return fmt.Errorf("mark completed %s: %w", p.NodeKey, ErrPipelineNotRunning)
	}

	raw, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal output for %s: %w", p.NodeKey, err)
	}

	p.Output = output
	p.OutputJSON = raw
	p.State = PipelineStateCompleted
	p.FinishedAt = time.Now().UTC()

	return nil
}

// MarkFailed transitions the pipeline to failed with the causing error.
// Failure is legal from pending (input resolution failures) and from running.
func (p *NodePipeline) MarkFailed(cause error) error {
	if p.Terminal() {
		return fmt.Errorf("mark failed %s: %w", p.NodeKey, ErrPipelineTerminal)
	}

	p.ErrorMessage = cause.Error()
	p.State = PipelineStateFailed
	p.FinishedAt = time.Now().UTC()

	return nil
}

// Terminal reports whether the pipeline reached a final state.
func (p *NodePipeline) Terminal() bool {
	return p.State == PipelineStateCompleted || p.State == PipelineStateFailed
}
