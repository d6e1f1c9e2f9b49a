// Package architect provides the architecture-design step executor.
package architect

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

// Step turns the research findings into a concrete architecture proposal.
type Step struct {
	model  string
	client ai.Client
	logger *slog.Logger
}

func NewStep(client ai.Client, config map[string]any) (*Step, error) {
	if client == nil {
		return nil, fmt.Errorf("architect step requires an AI client")
	}

	model := DefaultModel
	if m, ok := config["model"].(string); ok && m != "" {
		model = m
	}

	return &Step{
		model:  model,
		client: client,
		logger: slog.Default().With("module", "step_architect"),
	}, nil
}

// Name returns the step name.
func (s *Step) Name() models.StepName {
	return models.StepArchitect
}

// Run executes the architecture step.
func (s *Step) Run(ctx context.Context, input protocol.StepInput) (map[string]any, error) {
	var b strings.Builder

	b.WriteString("You are a software architect. Design a component-level architecture for the request below.\n")
	b.WriteString("Cover components, data flow, interfaces, and the main failure modes.\n\n")
	fmt.Fprintf(&b, "Request:\n%s\n", input.InitialRequest)

	// Architecture builds on whatever research produced, when it ran.
	if research, ok := input.State.ResultFor(models.StepResearch); ok {
		fmt.Fprintf(&b, "\nResearch findings:\n%v\n", research)
	}

	completion, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:  s.model,
		Prompt: b.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("architecture completion failed: %w", err)
	}

	input.State.RecordAICall(models.AICall{
		Model:        s.model,
		Operation:    string(models.StepArchitect),
		TokensInput:  completion.TokensInput,
		TokensOutput: completion.TokensOutput,
		Cost:         ai.Cost(s.model, completion.TokensInput, completion.TokensOutput),
	})

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return nil, fmt.Errorf("architect returned an empty response")
	}

	return map[string]any{
		"architecture": text,
	}, nil
}
