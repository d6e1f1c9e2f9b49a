// Package events defines event types and structures for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/mindweld/forgeflow/pkg/models"
)

type EventType string

// Topic carries every execution lifecycle event.
const Topic = "forgeflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	StepCompletedEvent      EventType = "execution.step.completed"
	StepFailedEvent         EventType = "execution.step.failed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	WorkflowType models.WorkflowType `json:"workflow_type"`
	UserID       string              `json:"user_id"`
	Steps        []models.StepName   `json:"steps"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// StepCompleted doubles as the progress notification: Progress is the
// percentage over attempted steps after this completion.
type StepCompleted struct {
	BaseEvent

	Node     models.StepName `json:"node"`
	Progress float64         `json:"progress"`
	Result   map[string]any  `json:"result,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	Node  models.StepName `json:"node"`
	Error string          `json:"error"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	DurationMs    int64   `json:"duration_ms"`
	StepsExecuted int     `json:"steps_executed"`
	TotalCost     float64 `json:"total_cost"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Node       models.StepName `json:"node"`
	Error      string          `json:"error"`
	RetryCount int             `json:"retry_count"`
	CanRetry   bool            `json:"can_retry"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}
