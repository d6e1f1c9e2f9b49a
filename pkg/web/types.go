// Package web provides HTTP request and response types for the execution API.
package web

import "github.com/mindweld/forgeflow/pkg/models"

// ExecuteWorkflowRequest represents the request body for submitting a
// pipeline execution.
type ExecuteWorkflowRequest struct {
	WorkflowType   string            `json:"workflow_type"        validate:"required"`
	InitialRequest string            `json:"initial_request"      validate:"required,min=1"`
	UserID         string            `json:"user_id"              validate:"required"`
	ProjectID      string            `json:"project_id,omitempty"`
	Parameters     map[string]any    `json:"parameters,omitempty"`
	Context        map[string]any    `json:"context,omitempty"`
	Steps          []models.StepName `json:"steps,omitempty"      validate:"required_if=WorkflowType custom,dive,required"`
}

// CancelExecutionRequest represents the optional request body for a
// cancellation. The reason is recorded on the execution's metadata.
type CancelExecutionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ExecutionAcceptedResponse is returned when an execution has been accepted
// for asynchronous processing.
type ExecutionAcceptedResponse struct {
	ExecutionID  string                 `json:"execution_id"`
	WorkflowID   string                 `json:"workflow_id"`
	WorkflowType models.WorkflowType    `json:"workflow_type"`
	Status       models.ExecutionStatus `json:"status"`
}
