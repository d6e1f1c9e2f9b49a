// Package planner maps workflow types to their default step sequences.
package planner

import (
	"slices"

	"github.com/mindweld/forgeflow/pkg/models"
)

var defaultSequences = map[models.WorkflowType][]models.StepName{
	models.WorkflowTypeResearch: {
		models.StepResearch,
		models.StepMemoryIngestion,
	},
	models.WorkflowTypeArchitect: {
		models.StepResearch,
		models.StepArchitect,
		models.StepMemoryIngestion,
	},
	models.WorkflowTypeImplement: {
		models.StepResearch,
		models.StepArchitect,
		models.StepImplement,
		models.StepMemoryIngestion,
	},
	models.WorkflowTypeDebug: {
		models.StepDebug,
		models.StepMemoryIngestion,
	},
	models.WorkflowTypeFullDevelopment: {
		models.StepResearch,
		models.StepArchitect,
		models.StepImplement,
		models.StepDebug,
		models.StepMemoryIngestion,
	},
}

// Plan returns the ordered step sequence for a workflow type. Custom
// workflows plan to an empty sequence; the caller supplies their steps
// explicitly. An unrecognized type falls back to the research sequence, a
// deliberately permissive default.
func Plan(workflowType models.WorkflowType) []models.StepName {
	if workflowType == models.WorkflowTypeCustom {
		return nil
	}

	sequence, ok := defaultSequences[workflowType]
	if !ok {
		sequence = defaultSequences[models.WorkflowTypeResearch]
	}

	return slices.Clone(sequence)
}
