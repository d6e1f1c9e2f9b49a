// Package memory defines the contract for the external memory/vector-search collaborator.
package memory

import (
	"context"

	"github.com/google/uuid"
)

// Entry is one text blob to persist, with free-form metadata.
type Entry struct {
	Content  string         `json:"content"  validate:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Ingestor accepts entries for long-term storage and returns a handle
// identifying what was stored. Ingestion is idempotent on the returned
// handle; failures are surfaced as step failures by the caller.
type Ingestor interface {
	Ingest(ctx context.Context, entry Entry) (string, error)
}

// Discard accepts every entry and stores nothing. Used when no memory
// backend is configured.
type Discard struct{}

func (Discard) Ingest(_ context.Context, _ Entry) (string, error) {
	return "mem-" + uuid.New().String(), nil
}
