// Package registry provides step factory registration and lookup for the orchestrator.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// ErrStepNotRegistered is returned by CreateStep for unknown step names. The
// orchestrator treats it as a soft failure: the step is skipped with a
// warning rather than failing the run.
type ErrStepNotRegistered struct {
	Step models.StepName
}

func (e *ErrStepNotRegistered) Error() string {
	return fmt.Sprintf("step type '%s' not registered", e.Step)
}

type Registry struct {
	logger        *slog.Logger
	stepFactories map[string]protocol.StepFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		stepFactories: make(map[string]protocol.StepFactory),
	}
}

// RegisterStep registers a step factory under its ID, replacing any previous
// registration.
func (r *Registry) RegisterStep(factory protocol.StepFactory) {
	r.stepFactories[factory.ID()] = factory
}

// CreateStep creates an executor for the named step.
func (r *Registry) CreateStep(ctx context.Context, name models.StepName, config map[string]any) (protocol.StepExecutor, error) {
	factory, ok := r.stepFactories[string(name)]
	if !ok {
		return nil, &ErrStepNotRegistered{Step: name}
	}

	return factory.Create(ctx, config)
}

// HasStep reports whether a factory is registered for the step name.
func (r *Registry) HasStep(name models.StepName) bool {
	_, ok := r.stepFactories[string(name)]

	return ok
}

// AvailableSteps lists the registered step names.
func (r *Registry) AvailableSteps() []models.StepName {
	steps := make([]models.StepName, 0, len(r.stepFactories))
	for id := range r.stepFactories {
		steps = append(steps, models.StepName(id))
	}

	return steps
}

// ValidateParameters checks the supplied parameters against the step's JSON
// schema. Unknown steps validate trivially; the lookup miss is reported at
// execution time instead.
func (r *Registry) ValidateParameters(name models.StepName, parameters map[string]any) error {
	factory, ok := r.stepFactories[string(name)]
	if !ok {
		return nil
	}

	// A nil map serializes to JSON null, which no object schema accepts;
	// absent parameters mean "no parameters", not an invalid document.
	if parameters == nil {
		parameters = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(factory.Schema())
	dataLoader := gojsonschema.NewGoLoader(parameters)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("validate parameters for step %s: %w", name, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("invalid parameters for step %s: %s", name, strings.Join(details, "; "))
	}

	return nil
}
