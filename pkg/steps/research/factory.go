// Package research provides the research step factory for registry integration.
package research

import (
	"context"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/protocol"
)

// Factory creates research Step instances.
type Factory struct {
	client ai.Client
}

func NewFactory(client ai.Client) *Factory {
	return &Factory{client: client}
}

// Create creates a new research step executor.
func (f *Factory) Create(ctx context.Context, config map[string]any) (protocol.StepExecutor, error) {
	return NewStep(f.client, config)
}

// ID returns the factory ID.
func (f *Factory) ID() string {
	return "research"
}

// Name returns the factory name.
func (f *Factory) Name() string {
	return "Research"
}

// Description returns the factory description.
func (f *Factory) Description() string {
	return "Investigates the initial request and produces a findings summary used by downstream steps"
}

// Schema returns the JSON schema for research step parameters.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model": map[string]any{
				"type":        "string",
				"description": "Completion model used for this step",
				"default":     DefaultModel,
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Upper bound on findings to include in the summary",
				"default":     DefaultMaxResults,
				"minimum":     1,
			},
		},
	}
}
