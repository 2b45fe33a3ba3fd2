package models

import "time"

// RunStatus represents the state machine of a whole execution.
type RunStatus string

const (
	RunStatusNotStarted RunStatus = "not_started"
	RunStatusRunning    RunStatus = "running"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// ProcessingItem is the externally streamed snapshot of a pipeline transition.
// It is a copy, not a live reference; one item is emitted per observable state
// transition.
type ProcessingItem struct {
	NodeType     NodeType       `json:"node_type"`
	NodeKey      string         `json:"node_key"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	State        PipelineState  `json:"state"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ExecutedTime time.Time      `json:"executed_time"`
}

// NewProcessingItem snapshots a pipeline record into its wire projection.
func NewProcessingItem(p *NodePipeline) ProcessingItem {
	executed := p.FinishedAt
	if executed.IsZero() {
		executed = p.StartedAt
	}

	return ProcessingItem{
		NodeType:     p.NodeType,
		NodeKey:      p.NodeKey,
		Input:        p.Input,
		Output:       p.Output,
		State:        p.State,
		ErrorMessage: p.ErrorMessage,
		ExecutedTime: executed,
	}
}

// RunSnapshot is the execution-history projection of a finished run.
type RunSnapshot struct {
	InstanceID   string           `json:"instance_id"`
	DefinitionID string           `json:"definition_id"`
	Status       RunStatus        `json:"status"`
	Error        string           `json:"error,omitempty"`
	Pipelines    []ProcessingItem `json:"pipelines"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// NewRunSnapshot captures the terminal state of a run for the history store.
func NewRunSnapshot(rc *RunContext, status RunStatus, runErr error) *RunSnapshot {
	pipelines := rc.Pipelines()

	snap := &RunSnapshot{
		InstanceID:   rc.InstanceID,
		DefinitionID: rc.DefinitionID,
		Status:       status,
		Pipelines:    make([]ProcessingItem, 0, len(pipelines)),
		FinishedAt:   time.Now().UTC(),
	}

	if runErr != nil {
		snap.Error = runErr.Error()
	}

	for _, p := range pipelines {
		snap.Pipelines = append(snap.Pipelines, NewProcessingItem(p))
	}

	return snap
}
