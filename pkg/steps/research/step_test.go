package research

import (
	"context"
	"errors"
	"testing"

	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/protocol"
	"github.com/mindweld/forgeflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResearchStep_Run(t *testing.T) {
	client := testutil.NewStubAIClient("1. Token bucket scales best.\n2. Sliding window is simpler.")

	step, err := NewStep(client, map[string]any{"model": "claude-haiku-3"})
	require.NoError(t, err)

	state := models.NewExecutionState(models.WorkflowTypeResearch, "compare rate limiting strategies", "user-1", "", nil, nil)

	result, err := step.Run(context.Background(), protocol.StepInput{
		InitialRequest: state.InitialRequest,
		Parameters:     map[string]any{"max_results": 3},
		Context:        map[string]any{"stack": "go + redis"},
		State:          state,
	})
	require.NoError(t, err)

	assert.Contains(t, result["research_results"], "Token bucket")
	assert.Equal(t, 3, result["max_results"])

	// Prompt carries the request, the context, and the result bound.
	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], "compare rate limiting strategies")
	assert.Contains(t, client.Prompts[0], "go + redis")
	assert.Contains(t, client.Prompts[0], "3 key findings")

	require.Len(t, state.AICalls, 1)
	assert.Equal(t, "claude-haiku-3", state.AICalls[0].Model)
}

func TestResearchStep_Run_ProviderError(t *testing.T) {
	client := testutil.NewFailingAIClient(errors.New("rate limited"))

	step, err := NewStep(client, nil)
	require.NoError(t, err)

	state := models.NewExecutionState(models.WorkflowTypeResearch, "anything", "user-1", "", nil, nil)

	_, err = step.Run(context.Background(), protocol.StepInput{
		InitialRequest: state.InitialRequest,
		State:          state,
	})
	require.Error(t, err)

	// No completion means nothing on the cost ledger.
	assert.Empty(t, state.AICalls)
}
