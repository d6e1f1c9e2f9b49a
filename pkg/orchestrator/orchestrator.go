// Package orchestrator drives pipeline executions over their execution state.
//
// One orchestrator instance owns the registry of in-flight executions. Steps
// within a single execution run strictly in order; distinct executions run
// concurrently and independently. Step errors never escape Execute: callers
// observe failure through the returned state's status and error ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mindweld/forgeflow/pkg/eventbus"
	"github.com/mindweld/forgeflow/pkg/events"
	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/otelhelper"
	"github.com/mindweld/forgeflow/pkg/planner"
	"github.com/mindweld/forgeflow/pkg/protocol"
	"github.com/mindweld/forgeflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	// ErrExecutionNotFound is returned for unknown or already-evicted execution IDs.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrRetryExhausted is returned when a failed execution has no retry budget left.
	ErrRetryExhausted = errors.New("execution retry budget exhausted")
)

// ExecuteRequest describes one pipeline run.
type ExecuteRequest struct {
	WorkflowType   models.WorkflowType
	InitialRequest string
	UserID         string
	ProjectID      string
	Parameters     map[string]any
	Context        map[string]any

	// Steps is the explicit sequence for custom workflows. Ignored for the
	// built-in workflow types, which plan their own sequences.
	Steps []models.StepName
}

type Orchestrator struct {
	logger    *slog.Logger
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	tracer    trace.Tracer

	mu        sync.RWMutex
	active    map[string]*models.ExecutionState
	sequences map[string][]models.StepName
}

// NewOrchestrator builds the single orchestrator instance for the process.
// The publisher may be nil; events are then dropped. The tracer may be nil;
// spans are then no-ops.
func NewOrchestrator(logger *slog.Logger, stepRegistry *registry.Registry, publisher eventbus.EventPublisher, tracer trace.Tracer) (*Orchestrator, error) {
	if stepRegistry == nil {
		return nil, errors.New("orchestrator requires a step registry")
	}

	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("orchestrator")
	}

	return &Orchestrator{
		logger:    logger.With("module", "orchestrator"),
		registry:  stepRegistry,
		publisher: publisher,
		tracer:    tracer,
		active:    make(map[string]*models.ExecutionState),
		sequences: make(map[string][]models.StepName),
	}, nil
}

// Execute runs a pipeline to its terminal status and returns the final
// state. The execution is registered under its execution ID for the whole
// run, so status queries and cancellation work while steps are in flight.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*models.ExecutionState, error) {
	state, sequence := o.prepare(req)
	o.run(ctx, state, sequence)

	return state.Snapshot(), nil
}

// ExecuteAsync registers the execution and drives it on a background
// goroutine, detached from the caller's context. The returned snapshot
// carries the execution ID for later status queries.
func (o *Orchestrator) ExecuteAsync(ctx context.Context, req ExecuteRequest) *models.ExecutionState {
	state, sequence := o.prepare(req)

	go o.run(context.WithoutCancel(ctx), state, sequence)

	return state.Snapshot()
}

// prepare creates the execution state, plans its sequence and registers it.
func (o *Orchestrator) prepare(req ExecuteRequest) (*models.ExecutionState, []models.StepName) {
	state := models.NewExecutionState(req.WorkflowType, req.InitialRequest, req.UserID, req.ProjectID, req.Parameters, req.Context)

	sequence := planner.Plan(req.WorkflowType)
	if req.WorkflowType == models.WorkflowTypeCustom {
		sequence = req.Steps
	}

	o.mu.Lock()
	o.active[state.ExecutionID] = state
	o.sequences[state.ExecutionID] = sequence
	o.mu.Unlock()

	return state, sequence
}

func (o *Orchestrator) run(ctx context.Context, state *models.ExecutionState, sequence []models.StepName) {
	logger := o.logger.With(
		"execution_id", state.ExecutionID,
		"workflow_type", state.WorkflowType,
		"user_id", state.UserID,
	)
	logger.InfoContext(ctx, "Starting execution", "steps", len(sequence))

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, state.ExecutionID),
		attribute.String(otelhelper.WorkflowTypeKey, string(state.WorkflowType)),
		attribute.String(otelhelper.UserIDKey, state.UserID),
	)
	defer span.End()

	state.Start()
	o.publish(ctx, state.ExecutionID, events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, state.ExecutionID),
		WorkflowType: state.WorkflowType,
		UserID:       state.UserID,
		Steps:        sequence,
	})

	o.runSequence(ctx, logger, state, sequence)
	o.finalize(ctx, logger, span, state)
}

// RetryExecution reopens a failed execution and resumes it from its first
// incomplete step. Completed step results are preserved.
func (o *Orchestrator) RetryExecution(ctx context.Context, executionID string) (*models.ExecutionState, error) {
	o.mu.RLock()
	state, ok := o.active[executionID]
	sequence := o.sequences[executionID]
	o.mu.RUnlock()

	if !ok {
		return nil, ErrExecutionNotFound
	}

	if !state.BeginRetry() {
		return nil, ErrRetryExhausted
	}

	logger := o.logger.With("execution_id", executionID, "retry_count", state.RetryCount)
	logger.InfoContext(ctx, "Retrying execution")

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "execution.retry",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	o.runSequence(ctx, logger, state, state.PendingSteps(sequence))
	o.finalize(ctx, logger, span, state)

	return state.Snapshot(), nil
}

// GetExecutionStatus returns a snapshot of a registered execution.
func (o *Orchestrator) GetExecutionStatus(executionID string) (*models.ExecutionState, error) {
	o.mu.RLock()
	state, ok := o.active[executionID]
	o.mu.RUnlock()

	if !ok {
		return nil, ErrExecutionNotFound
	}

	return state.Snapshot(), nil
}

// CancelExecution cancels a registered execution and evicts it. It reports
// false for unknown or already-evicted IDs. A step already in flight is not
// interrupted; its result is discarded when it lands.
func (o *Orchestrator) CancelExecution(ctx context.Context, executionID, reason string) bool {
	o.mu.Lock()
	state, ok := o.active[executionID]
	if ok {
		delete(o.active, executionID)
		delete(o.sequences, executionID)
	}
	o.mu.Unlock()

	if !ok {
		return false
	}

	state.Cancel(reason)
	o.logger.InfoContext(ctx, "Cancelled execution", "execution_id", executionID, "reason", reason)

	o.publish(ctx, executionID, events.ExecutionCancelled{
		BaseEvent: events.NewBaseEvent(events.ExecutionCancelledEvent, executionID),
		Reason:    reason,
	})

	return true
}

// ListActiveExecutions returns snapshots of the registered executions owned
// by the given user.
func (o *Orchestrator) ListActiveExecutions(userID string) []*models.ExecutionState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	executions := make([]*models.ExecutionState, 0)

	for _, state := range o.active {
		if state.UserID == userID {
			executions = append(executions, state.Snapshot())
		}
	}

	return executions
}

// runSequence drives the steps strictly in order, stopping at the first
// failure or as soon as the execution turns terminal underneath us.
func (o *Orchestrator) runSequence(ctx context.Context, logger *slog.Logger, state *models.ExecutionState, sequence []models.StepName) {
	for _, name := range sequence {
		executor, err := o.registry.CreateStep(ctx, name, state.Parameters)
		if err != nil {
			var notRegistered *registry.ErrStepNotRegistered
			if errors.As(err, &notRegistered) {
				// Unknown step names are skipped, not fatal.
				logger.WarnContext(ctx, "No executor registered for step, skipping", "step", name)

				continue
			}

			o.failStep(ctx, logger, state, name, fmt.Errorf("create step executor: %w", err))

			return
		}

		if !state.MarkNodeStarted(name) {
			logger.InfoContext(ctx, "Execution no longer running, stopping sequence", "step", name)

			return
		}

		stepCtx, stepSpan := otelhelper.StartSpan(ctx, o.tracer, "step."+string(name),
			attribute.String(otelhelper.ExecutionIDKey, state.ExecutionID),
			attribute.String(otelhelper.StepNameKey, string(name)),
		)

		result, err := executor.Run(stepCtx, protocol.StepInput{
			InitialRequest: state.InitialRequest,
			Parameters:     state.Parameters,
			Context:        state.Context,
			State:          state,
		})
		if err != nil {
			otelhelper.SetError(stepSpan, err)
			stepSpan.End()
			o.failStep(ctx, logger, state, name, err)

			return
		}

		stepSpan.End()

		if !state.MarkNodeCompleted(name, result) {
			// The execution was cancelled while the step was in flight; the
			// late result is discarded.
			logger.InfoContext(ctx, "Discarding step result for terminal execution", "step", name)

			return
		}

		progress := state.Progress()
		logger.InfoContext(ctx, "Step completed", "step", name, "progress", progress)

		o.publish(ctx, state.ExecutionID, events.StepCompleted{
			BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, state.ExecutionID),
			Node:      name,
			Progress:  progress,
			Result:    result,
		})
	}
}

func (o *Orchestrator) failStep(ctx context.Context, logger *slog.Logger, state *models.ExecutionState, name models.StepName, stepErr error) {
	if !state.MarkNodeFailed(name, stepErr) {
		logger.InfoContext(ctx, "Discarding step failure for terminal execution", "step", name)

		return
	}

	logger.ErrorContext(ctx, "Step failed", "step", name, "error", stepErr)

	o.publish(ctx, state.ExecutionID, events.StepFailed{
		BaseEvent: events.NewBaseEvent(events.StepFailedEvent, state.ExecutionID),
		Node:      name,
		Error:     stepErr.Error(),
	})
}

// finalize applies the terminal verdict after a sequence ends and evicts the
// execution once nothing more can happen to it. Failed executions stay
// registered while retry budget remains.
func (o *Orchestrator) finalize(ctx context.Context, logger *slog.Logger, span trace.Span, state *models.ExecutionState) {
	switch state.CurrentStatus() {
	case models.ExecutionStatusCancelled:
		// Cancellation already evicted the record and published its event.
		return

	case models.ExecutionStatusFailed:
		snapshot := state.Snapshot()

		var failedNode models.StepName
		if len(snapshot.FailedNodes) > 0 {
			failedNode = snapshot.FailedNodes[len(snapshot.FailedNodes)-1]
		}

		var lastError string
		if len(snapshot.Errors) > 0 {
			lastError = snapshot.Errors[len(snapshot.Errors)-1].Error
		}

		canRetry := state.CanRetry()

		otelhelper.SetError(span, errors.New(lastError))
		o.publish(ctx, state.ExecutionID, events.ExecutionFailed{
			BaseEvent:  events.NewBaseEvent(events.ExecutionFailedEvent, state.ExecutionID),
			Node:       failedNode,
			Error:      lastError,
			RetryCount: snapshot.RetryCount,
			CanRetry:   canRetry,
		})

		if !canRetry {
			o.evict(state.ExecutionID)
		}

		logger.InfoContext(ctx, "Execution failed", "failed_node", failedNode, "can_retry", canRetry)

	default:
		state.Finish(models.ExecutionStatusCompleted)
		o.evict(state.ExecutionID)

		snapshot := state.Snapshot()

		var durationMs int64
		if snapshot.StartedAt != nil && snapshot.CompletedAt != nil {
			durationMs = snapshot.CompletedAt.Sub(*snapshot.StartedAt).Milliseconds()
		}

		o.publish(ctx, state.ExecutionID, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, state.ExecutionID),
			DurationMs:    durationMs,
			StepsExecuted: len(snapshot.CompletedNodes),
			TotalCost:     snapshot.TotalCost,
		})

		logger.InfoContext(ctx, "Execution completed",
			"steps_executed", len(snapshot.CompletedNodes),
			"total_cost", snapshot.TotalCost,
			"duration", time.Duration(durationMs)*time.Millisecond,
		)
	}
}

func (o *Orchestrator) evict(executionID string) {
	o.mu.Lock()
	delete(o.active, executionID)
	delete(o.sequences, executionID)
	o.mu.Unlock()
}

// publish is fire and forget: observer failures never affect orchestration.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
