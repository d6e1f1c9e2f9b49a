package architect

import (
	"context"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/protocol"
)

// Factory creates architect Step instances.
type Factory struct {
	client ai.Client
}

func NewFactory(client ai.Client) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Create(ctx context.Context, config map[string]any) (protocol.StepExecutor, error) {
	return NewStep(f.client, config)
}

func (f *Factory) ID() string {
	return "architect"
}

func (f *Factory) Name() string {
	return "Architect"
}

func (f *Factory) Description() string {
	return "Designs a component-level architecture from the request and research findings"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model": map[string]any{
				"type":        "string",
				"description": "Completion model used for this step",
				"default":     DefaultModel,
			},
		},
	}
}
