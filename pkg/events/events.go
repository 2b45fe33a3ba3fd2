// Package events defines the lifecycle notifications published around a
// workflow run. Consumers outside the engine (audit, billing, UI refresh)
// subscribe through the event bus.
package events

import (
	"time"

	"github.com/flowgraph/flowgraph/pkg/models"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "flowgraph.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"

	NodeFinishedEvent EventType = "node.finished"
	NodeFailedEvent   EventType = "node.failed"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	DefinitionID string         `json:"definition_id"`
	InstanceID   string         `json:"instance_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	RuntimeParameters map[string]any `json:"runtime_parameters,omitempty"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	PipelineCount int           `json:"pipeline_count"`
	Duration      time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type NodeFinished struct {
	BaseEvent

	NodeKey    string          `json:"node_key"`
	NodeType   models.NodeType `json:"node_type"`
	Output     map[string]any  `json:"output,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

func (e NodeFinished) GetType() EventType {
	return NodeFinishedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeKey      string          `json:"node_key"`
	NodeType     models.NodeType `json:"node_type"`
	ErrorMessage string          `json:"error_message"`
	DurationMs   int64           `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}
