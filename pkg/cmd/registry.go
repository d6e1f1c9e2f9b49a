package cmd

import (
	"log/slog"

	"github.com/mindweld/forgeflow/pkg/ai"
	"github.com/mindweld/forgeflow/pkg/ai/anthropic"
	"github.com/mindweld/forgeflow/pkg/memory"
	"github.com/mindweld/forgeflow/pkg/memory/redisstore"
	"github.com/mindweld/forgeflow/pkg/registry"
)

// NewRegistry builds the step registry with the native step executors wired
// to the given AI client and memory ingestor.
func NewRegistry(logger *slog.Logger, client ai.Client, ingestor memory.Ingestor) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultSteps(client, ingestor)

	return reg
}

// NewAIClient builds the Anthropic completion client.
func NewAIClient(apiKey string) ai.Client {
	return anthropic.NewClient(apiKey)
}

// NewMemoryStore connects the Redis-backed memory store.
func NewMemoryStore(redisURL string, logger *slog.Logger) (*redisstore.Store, error) {
	return redisstore.NewStoreFromURL(redisURL, logger)
}
