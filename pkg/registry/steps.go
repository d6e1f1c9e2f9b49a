package registry

import (
	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/memory"
	"github.com/mindweld/forgeflow/pkg/steps/architect"
	"github.com/mindweld/forgeflow/pkg/steps/debug"
	"github.com/mindweld/forgeflow/pkg/steps/implement"
	"github.com/mindweld/forgeflow/pkg/steps/memoryingest"
	"github.com/mindweld/forgeflow/pkg/steps/research"
)

// RegisterDefaultSteps registers the built-in step factories against the
// given collaborators.
func (r *Registry) RegisterDefaultSteps(client ai.Client, ingestor memory.Ingestor) {
	r.RegisterStep(research.NewFactory(client))
	r.RegisterStep(architect.NewFactory(client))
	r.RegisterStep(implement.NewFactory(client))
	r.RegisterStep(debug.NewFactory(client))
	r.RegisterStep(memoryingest.NewFactory(client, ingestor))
}
