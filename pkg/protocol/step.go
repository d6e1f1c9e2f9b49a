// Package protocol defines the interfaces and contracts for pluggable pipeline steps.
package protocol

import (
	"context"

	"github.com/mindweld/forgeflow/pkg/models"
)

// StepInput carries everything a step executor needs for one unit of work.
// Steps read the execution state (earlier results, request text) and record
// accounting through it, but node transitions stay with the orchestrator.
type StepInput struct {
	InitialRequest string
	Parameters     map[string]any
	Context        map[string]any
	State          *models.ExecutionState
}

// StepExecutor performs one unit of pipeline work, typically a single round
// trip to the AI completion provider. Any error is surfaced unwrapped to the
// orchestrator; executors never swallow failures.
type StepExecutor interface {
	// Name returns the step name this executor handles
	Name() models.StepName

	// Run executes the step and returns its structured result
	Run(ctx context.Context, input StepInput) (map[string]any, error)
}

// StepFactory creates step executor instances and provides metadata about
// the step type.
type StepFactory interface {
	// Create creates a new step executor with the given configuration
	Create(ctx context.Context, config map[string]any) (StepExecutor, error)

	// ID returns the step name this factory produces executors for
	ID() string

	// Name returns the human-readable name for this step type
	Name() string

	// Description returns a description of what this step does
	Description() string

	// Schema returns the JSON schema for this step's recognized parameters
	Schema() map[string]any
}
