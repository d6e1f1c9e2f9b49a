// Package debug provides the debugging step executor.
package debug

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

// Section markers the prompt asks the model to emit. The response is
// structurally invalid without both.
const (
	analysisMarker = "ANALYSIS:"
	solutionMarker = "SOLUTION:"
)

// Step diagnoses a failure description and proposes a fix.
type Step struct {
	model  string
	client ai.Client
	logger *slog.Logger
}

func NewStep(client ai.Client, config map[string]any) (*Step, error) {
	if client == nil {
		return nil, fmt.Errorf("debug step requires an AI client")
	}

	model := DefaultModel
	if m, ok := config["model"].(string); ok && m != "" {
		model = m
	}

	return &Step{
		model:  model,
		client: client,
		logger: slog.Default().With("module", "step_debug"),
	}, nil
}

// Name returns the step name.
func (s *Step) Name() models.StepName {
	return models.StepDebug
}

// Run executes the debug step.
func (s *Step) Run(ctx context.Context, input protocol.StepInput) (map[string]any, error) {
	var b strings.Builder

	b.WriteString("You are a debugging expert. Diagnose the problem below and propose a fix.\n")
	fmt.Fprintf(&b, "Answer in two sections labelled %q and %q.\n\n", analysisMarker, solutionMarker)
	fmt.Fprintf(&b, "Problem:\n%s\n", input.InitialRequest)

	if implementation, ok := input.State.ResultFor(models.StepImplement); ok {
		fmt.Fprintf(&b, "\nCurrent implementation:\n%v\n", implementation)
	}

	if errorLog, ok := input.Context["error_log"].(string); ok && errorLog != "" {
		fmt.Fprintf(&b, "\nError log:\n%s\n", errorLog)
	}

	completion, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:  s.model,
		Prompt: b.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("debug completion failed: %w", err)
	}

	input.State.RecordAICall(models.AICall{
		Model:        s.model,
		Operation:    string(models.StepDebug),
		TokensInput:  completion.TokensInput,
		TokensOutput: completion.TokensOutput,
		Cost:         ai.Cost(s.model, completion.TokensInput, completion.TokensOutput),
	})

	analysis, solution, err := parseResponse(completion.Text)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"debug_analysis": analysis,
		"solution":       solution,
	}, nil
}

func parseResponse(text string) (string, string, error) {
	analysisIdx := strings.Index(text, analysisMarker)
	solutionIdx := strings.Index(text, solutionMarker)

	if analysisIdx < 0 || solutionIdx < 0 || solutionIdx < analysisIdx {
		return "", "", fmt.Errorf("debug response missing %s/%s sections", analysisMarker, solutionMarker)
	}

	analysis := strings.TrimSpace(text[analysisIdx+len(analysisMarker) : solutionIdx])
	solution := strings.TrimSpace(text[solutionIdx+len(solutionMarker):])

	if analysis == "" || solution == "" {
		return "", "", fmt.Errorf("debug response has empty analysis or solution")
	}

	return analysis, solution, nil
}
