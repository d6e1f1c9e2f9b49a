package memoryingest

import (
	"context"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/memory"
	"github.com/mindweld/forgeflow/pkg/protocol"
)

// Factory creates memory-ingestion Step instances.
type Factory struct {
	client   ai.Client
	ingestor memory.Ingestor
}

func NewFactory(client ai.Client, ingestor memory.Ingestor) *Factory {
	return &Factory{client: client, ingestor: ingestor}
}

func (f *Factory) Create(ctx context.Context, config map[string]any) (protocol.StepExecutor, error) {
	return NewStep(f.client, f.ingestor, config)
}

func (f *Factory) ID() string {
	return "memory_ingestion"
}

func (f *Factory) Name() string {
	return "Memory Ingestion"
}

func (f *Factory) Description() string {
	return "Summarizes the run and persists the summary to the memory service, publishing a receipt artifact"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model": map[string]any{
				"type":        "string",
				"description": "Completion model used for the summary",
				"default":     DefaultModel,
			},
		},
	}
}
