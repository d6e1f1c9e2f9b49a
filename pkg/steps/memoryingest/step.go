// Package memoryingest provides the memory-ingestion step executor. It
// summarizes what the pipeline produced, hands the summary to the external
// memory collaborator, and publishes an artifact describing what was stored.
package memoryingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/memory"
	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/protocol"
)

const DefaultModel = "claude-haiku-3"

// ArtifactKey is where the ingestion receipt lands in state.Artifacts.
const ArtifactKey = "memory/ingestion"

// Step condenses the run's results into a memory entry.
type Step struct {
	model    string
	client   ai.Client
	ingestor memory.Ingestor
	logger   *slog.Logger
}

func NewStep(client ai.Client, ingestor memory.Ingestor, config map[string]any) (*Step, error) {
	if client == nil {
		return nil, fmt.Errorf("memory ingestion step requires an AI client")
	}

	if ingestor == nil {
		return nil, fmt.Errorf("memory ingestion step requires an ingestor")
	}

	model := DefaultModel
	if m, ok := config["model"].(string); ok && m != "" {
		model = m
	}

	return &Step{
		model:    model,
		client:   client,
		ingestor: ingestor,
		logger:   slog.Default().With("module", "step_memory_ingestion"),
	}, nil
}

// Name returns the step name.
func (s *Step) Name() models.StepName {
	return models.StepMemoryIngestion
}

// Run executes the memory-ingestion step.
func (s *Step) Run(ctx context.Context, input protocol.StepInput) (map[string]any, error) {
	prompt := s.buildPrompt(input)

	completion, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:  s.model,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("memory summary completion failed: %w", err)
	}

	input.State.RecordAICall(models.AICall{
		Model:        s.model,
		Operation:    string(models.StepMemoryIngestion),
		TokensInput:  completion.TokensInput,
		TokensOutput: completion.TokensOutput,
		Cost:         ai.Cost(s.model, completion.TokensInput, completion.TokensOutput),
	})

	summary := strings.TrimSpace(completion.Text)
	if summary == "" {
		return nil, fmt.Errorf("memory summary is empty")
	}

	entryID, err := s.ingestor.Ingest(ctx, memory.Entry{
		Content: summary,
		Metadata: map[string]any{
			"execution_id":  input.State.ExecutionID,
			"workflow_type": string(input.State.WorkflowType),
			"user_id":       input.State.UserID,
			"project_id":    input.State.ProjectID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("memory ingestion failed: %w", err)
	}

	input.State.AddArtifact(ArtifactKey, summary, map[string]any{
		"entry_id": entryID,
		"model":    s.model,
	})

	s.logger.DebugContext(ctx, "Ingested execution summary",
		"execution_id", input.State.ExecutionID,
		"entry_id", entryID,
	)

	return map[string]any{
		"ingested": true,
		"entry_id": entryID,
	}, nil
}

func (s *Step) buildPrompt(input protocol.StepInput) string {
	var b strings.Builder

	b.WriteString("Condense the following pipeline run into a short knowledge-base entry. ")
	b.WriteString("Keep decisions, findings, and anything a future run should know.\n\n")
	fmt.Fprintf(&b, "Original request:\n%s\n", input.InitialRequest)

	snapshot := input.State.Snapshot()
	for _, name := range snapshot.CompletedNodes {
		if result, ok := snapshot.Results[name]; ok {
			fmt.Fprintf(&b, "\n%s result:\n%v\n", name, result)
		}
	}

	return b.String()
}
