// Package redisstore persists memory entries in Redis hashes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mindweld/forgeflow/pkg/memory"
	redis "github.com/redis/go-redis/v9"
)

const (
	entryKeyPrefix = "forgeflow:memory:"
	indexKeyPrefix = "forgeflow:memory:project:"
)

// Store implements memory.Ingestor on top of Redis. Each entry becomes a
// hash keyed by a generated id; entries carrying a project_id metadata field
// are additionally tracked in a per-project index set.
type Store struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewStore(client redis.UniversalClient, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With("module", "memory_redisstore"),
	}
}

// NewStoreFromURL connects to Redis using a redis:// URL.
func NewStoreFromURL(url string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return NewStore(redis.NewClient(opts), logger), nil
}

// Ingest implements memory.Ingestor.
func (s *Store) Ingest(ctx context.Context, entry memory.Entry) (string, error) {
	if entry.Content == "" {
		return "", errors.New("memory entry content is empty")
	}

	id := "mem-" + uuid.New().String()

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal entry metadata: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, entryKeyPrefix+id, map[string]any{
		"content":    entry.Content,
		"metadata":   string(metadata),
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})

	if projectID, ok := entry.Metadata["project_id"].(string); ok && projectID != "" {
		pipe.SAdd(ctx, indexKeyPrefix+projectID, id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("persist memory entry: %w", err)
	}

	s.logger.DebugContext(ctx, "Persisted memory entry", "entry_id", id)

	return id, nil
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
