package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowgraph/flowgraph/pkg/persistence"
	"github.com/flowgraph/flowgraph/pkg/persistence/file"
	"github.com/flowgraph/flowgraph/pkg/persistence/postgres"
	"github.com/flowgraph/flowgraph/pkg/persistence/redis"
)

// NewPersistence selects the definition store from the URL scheme. Anything
// that is not a postgres URL is treated as a filesystem root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgres.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgres persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

// NewHistoryStore connects the Redis run-history store. An empty URL disables
// history.
func NewHistoryStore(ctx context.Context, logger *slog.Logger, redisURL string) persistence.HistoryStore {
	if redisURL == "" {
		return nil
	}

	store, err := redis.NewHistoryStore(ctx, logger, redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to create redis history store: %w", err))
	}

	return store
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
