package planner

import (
	"testing"

	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestPlan_DefaultSequences(t *testing.T) {
	tests := []struct {
		workflowType models.WorkflowType
		want         []models.StepName
	}{
		{models.WorkflowTypeResearch, []models.StepName{models.StepResearch, models.StepMemoryIngestion}},
		{models.WorkflowTypeArchitect, []models.StepName{models.StepResearch, models.StepArchitect, models.StepMemoryIngestion}},
		{models.WorkflowTypeImplement, []models.StepName{models.StepResearch, models.StepArchitect, models.StepImplement, models.StepMemoryIngestion}},
		{models.WorkflowTypeDebug, []models.StepName{models.StepDebug, models.StepMemoryIngestion}},
		{models.WorkflowTypeFullDevelopment, []models.StepName{models.StepResearch, models.StepArchitect, models.StepImplement, models.StepDebug, models.StepMemoryIngestion}},
	}

	for _, tt := range tests {
		t.Run(string(tt.workflowType), func(t *testing.T) {
			assert.Equal(t, tt.want, Plan(tt.workflowType))
		})
	}
}

func TestPlan_CustomIsEmpty(t *testing.T) {
	assert.Empty(t, Plan(models.WorkflowTypeCustom))
}

func TestPlan_UnknownTypeFallsBackToResearch(t *testing.T) {
	assert.Equal(t, Plan(models.WorkflowTypeResearch), Plan(models.WorkflowType("time_travel")))
}

func TestPlan_ReturnsACopy(t *testing.T) {
	sequence := Plan(models.WorkflowTypeResearch)
	sequence[0] = models.StepDebug

	assert.Equal(t, models.StepResearch, Plan(models.WorkflowTypeResearch)[0])
}
