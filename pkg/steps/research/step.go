// Package research provides the research step executor for pipeline execution.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/models"
	"github.com/mindweld/forgeflow/pkg/protocol"
)

const (
	DefaultModel      = "claude-sonnet-4"
	DefaultMaxResults = 5
)

// Step gathers background knowledge for the initial request in a single
// completion round trip.
type Step struct {
	model  string
	client ai.Client
	logger *slog.Logger
}

func NewStep(client ai.Client, config map[string]any) (*Step, error) {
	if client == nil {
		return nil, fmt.Errorf("research step requires an AI client")
	}

	model := DefaultModel
	if m, ok := config["model"].(string); ok && m != "" {
		model = m
	}

	return &Step{
		model:  model,
		client: client,
		logger: slog.Default().With("module", "step_research"),
	}, nil
}

// Name returns the step name.
func (s *Step) Name() models.StepName {
	return models.StepResearch
}

// Run executes the research step.
func (s *Step) Run(ctx context.Context, input protocol.StepInput) (map[string]any, error) {
	maxResults := DefaultMaxResults
	if v, ok := input.Parameters["max_results"].(int); ok && v > 0 {
		maxResults = v
	} else if v, ok := input.Parameters["max_results"].(float64); ok && v > 0 {
		maxResults = int(v)
	}

	prompt := buildPrompt(input.InitialRequest, input.Context, maxResults)

	completion, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:  s.model,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("research completion failed: %w", err)
	}

	input.State.RecordAICall(models.AICall{
		Model:        s.model,
		Operation:    string(models.StepResearch),
		TokensInput:  completion.TokensInput,
		TokensOutput: completion.TokensOutput,
		Cost:         ai.Cost(s.model, completion.TokensInput, completion.TokensOutput),
	})

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return nil, fmt.Errorf("research returned an empty response")
	}

	s.logger.DebugContext(ctx, "Research step finished",
		"execution_id", input.State.ExecutionID,
		"tokens_output", completion.TokensOutput,
	)

	return map[string]any{
		"research_results": text,
		"max_results":      maxResults,
	}, nil
}

func buildPrompt(request string, contextData map[string]any, maxResults int) string {
	var b strings.Builder

	b.WriteString("You are a senior software researcher. Investigate the following request and ")
	fmt.Fprintf(&b, "summarize up to %d key findings, with trade-offs and references where relevant.\n\n", maxResults)
	fmt.Fprintf(&b, "Request:\n%s\n", request)

	if len(contextData) > 0 {
		b.WriteString("\nAdditional context:\n")

		for key, value := range contextData {
			fmt.Fprintf(&b, "- %s: %v\n", key, value)
		}
	}

	return b.String()
}
