// Package implement provides the implementation step executor.
package implement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/protocol"
)

const DefaultModel = "claude-sonnet-4"

// Step produces an implementation plan and code for the designed
// architecture.
type Step struct {
	model  string
	client ai.Client
	logger *slog.Logger
}

func NewStep(client ai.Client, config map[string]any) (*Step, error) {
	if client == nil {
		return nil, fmt.Errorf("implement step requires an AI client")
	}

	model := DefaultModel
	if m, ok := config["model"].(string); ok && m != "" {
		model = m
	}

	return &Step{
		model:  model,
		client: client,
		logger: slog.Default().With("module", "step_implement"),
	}, nil
}

// Name returns the step name.
func (s *Step) Name() models.StepName {
	return models.StepImplement
}

// Run executes the implementation step.
func (s *Step) Run(ctx context.Context, input protocol.StepInput) (map[string]any, error) {
	var b strings.Builder

	b.WriteString("You are a senior engineer. Implement the request below, following the architecture when present.\n")
	b.WriteString("Return the implementation with file-level structure and any important caveats.\n\n")
	fmt.Fprintf(&b, "Request:\n%s\n", input.InitialRequest)

	if architecture, ok := input.State.ResultFor(models.StepArchitect); ok {
		fmt.Fprintf(&b, "\nArchitecture:\n%v\n", architecture)
	}

	if language, ok := input.Parameters["language"].(string); ok && language != "" {
		fmt.Fprintf(&b, "\nTarget language: %s\n", language)
	}

	completion, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:  s.model,
		Prompt: b.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("implementation completion failed: %w", err)
	}

	input.State.RecordAICall(models.AICall{
		Model:        s.model,
		Operation:    string(models.StepImplement),
		TokensInput:  completion.TokensInput,
		TokensOutput: completion.TokensOutput,
		Cost:         ai.Cost(s.model, completion.TokensInput, completion.TokensOutput),
	})

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return nil, fmt.Errorf("implement returned an empty response")
	}

	return map[string]any{
		"implementation": text,
	}, nil
}
