// Package testutil provides shared stubs for exercising pipeline components in tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/memory"
)

// StubAIClient returns canned completions and records the prompts it saw.
type StubAIClient struct {
	mu      sync.Mutex
	text    string
	err     error
	Prompts []string
}

func NewStubAIClient(text string) *StubAIClient {
	return &StubAIClient{text: text}
}

func NewFailingAIClient(err error) *StubAIClient {
	return &StubAIClient{err: err}
}

func (c *StubAIClient) Complete(_ context.Context, req ai.CompletionRequest) (*ai.Completion, error) {
	c.mu.Lock()
	c.Prompts = append(c.Prompts, req.Prompt)
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}

	return &ai.Completion{
		Text:         c.text,
		TokensInput:  len(req.Prompt) / 4,
		TokensOutput: len(c.text) / 4,
	}, nil
}

// StubIngestor keeps ingested entries in memory.
type StubIngestor struct {
	mu      sync.Mutex
	err     error
	Entries []memory.Entry
}

func NewStubIngestor() *StubIngestor {
	return &StubIngestor{}
}

func NewFailingIngestor(err error) *StubIngestor {
	return &StubIngestor{err: err}
}

func (s *StubIngestor) Ingest(_ context.Context, entry memory.Entry) (string, error) {
	if s.err != nil {
		return "", s.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Entries = append(s.Entries, entry)

	return fmt.Sprintf("mem-stub-%d", len(s.Entries)), nil
}
