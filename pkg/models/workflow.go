// Package models defines the core domain models for AI-assisted pipeline execution.
package models

// WorkflowType identifies the kind of pipeline a run executes.
type WorkflowType string

const (
	WorkflowTypeResearch        WorkflowType = "research"
	WorkflowTypeArchitect       WorkflowType = "architect"
	WorkflowTypeImplement       WorkflowType = "implement"
	WorkflowTypeDebug           WorkflowType = "debug"
	WorkflowTypeFullDevelopment WorkflowType = "full_development"
	WorkflowTypeCustom          WorkflowType = "custom" // Caller supplies the step list
)

// StepName identifies one unit of work in a pipeline.
type StepName string

// Built-in step names.
const (
	StepResearch        StepName = "research"
	StepArchitect       StepName = "architect"
	StepImplement       StepName = "implement"
	StepDebug           StepName = "debug"
	StepMemoryIngestion StepName = "memory_ingestion"
)

// ExecutionStatus defines the lifecycle states of an execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusPaused    ExecutionStatus = "paused"
)

// IsTerminal reports whether no further node transitions are allowed.
// Failed is not terminal: a failed execution may be reopened for retry.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusCancelled
}
