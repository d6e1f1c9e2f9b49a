// Package web provides HTTP handlers and REST API endpoints for execution management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/orchestrator"
	"github.com/mindweld/forgeflow/pkg/planner"
	"github.com/mindweld/forgeflow/pkg/registry"
)

type APIHandlers struct {
	orchestrator *orchestrator.Orchestrator
	validator    *validator.Validate
	registry     *registry.Registry
}

func NewAPIHandlers(
	orc *orchestrator.Orchestrator,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		orchestrator: orc,
		validator:    validator,
		registry:     registry,
	}
}

// ExecuteWorkflow accepts a pipeline run and drives it asynchronously. The
// response carries the execution ID for status polling.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflowType := models.WorkflowType(req.WorkflowType)

	for _, step := range req.Steps {
		if !h.registry.HasStep(step) {
			return badRequest(c, "Unknown step: "+string(step))
		}
	}

	if err := h.validateStepParameters(workflowType, req); err != nil {
		return badRequest(c, err.Error())
	}

	state := h.orchestrator.ExecuteAsync(c.Context(), orchestrator.ExecuteRequest{
		WorkflowType:   workflowType,
		InitialRequest: req.InitialRequest,
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		Parameters:     req.Parameters,
		Context:        req.Context,
		Steps:          req.Steps,
	})

	return c.Status(fiber.StatusAccepted).JSON(ExecutionAcceptedResponse{
		ExecutionID:  state.ExecutionID,
		WorkflowID:   state.WorkflowID,
		WorkflowType: state.WorkflowType,
		Status:       state.Status,
	})
}

// validateStepParameters checks the supplied parameters against the schema
// of every step the run will drive.
func (h *APIHandlers) validateStepParameters(workflowType models.WorkflowType, req ExecuteWorkflowRequest) error {
	steps := req.Steps
	if workflowType != models.WorkflowTypeCustom {
		steps = planner.Plan(workflowType)
	}

	for _, step := range steps {
		if err := h.registry.ValidateParameters(step, req.Parameters); err != nil {
			return err
		}
	}

	return nil
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	executions := h.orchestrator.ListActiveExecutions(userID)

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	state, err := h.orchestrator.GetExecutionStatus(id)
	if err != nil {
		return handleOrchestratorError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req CancelExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if !h.orchestrator.CancelExecution(c.Context(), id, req.Reason) {
		return notFound(c, "Execution not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RetryExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	state, err := h.orchestrator.RetryExecution(c.Context(), id)
	if err != nil {
		return handleOrchestratorError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	steps := h.registry.AvailableSteps()

	status := "healthy"
	message := "Forgeflow API is healthy"
	httpStatus := http.StatusOK

	if len(steps) == 0 {
		status = "unhealthy"
		message = "No step executors registered"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry": fiber.Map{
				"registered_steps": len(steps),
			},
		},
		"timestamp": time.Now().UTC(),
	})
}
