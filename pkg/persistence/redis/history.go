// Package redis provides the run-history store backed by Redis. Snapshots
// are written once at run completion and expire after a configurable TTL, so
// the store never needs compaction.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowgraph/flowgraph/pkg/models"
	"github.com/flowgraph/flowgraph/pkg/persistence"
)

const (
	snapshotKeyPrefix  = "flowgraph:runs:"
	definitionIndexFmt = "flowgraph:definitions:%s:runs"

	// DefaultSnapshotTTL bounds how long history survives. Zero disables
	// expiry.
	DefaultSnapshotTTL = 7 * 24 * time.Hour

	// maxSnapshotsPerDefinition caps a single listing; older runs are still
	// reachable by instance ID until their TTL expires.
	maxSnapshotsPerDefinition = 100
)

// HistoryStore persists run snapshots in Redis. Each snapshot lives under its
// own key; a per-definition sorted set scored by finish time provides the
// listing order.
type HistoryStore struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
}

// Option configures a HistoryStore.
type Option func(*HistoryStore)

// WithSnapshotTTL overrides the default snapshot expiry.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(s *HistoryStore) {
		s.ttl = ttl
	}
}

// NewHistoryStore connects to the Redis instance named by redisURL
// (redis://host:port/db) and verifies the connection.
func NewHistoryStore(ctx context.Context, logger *slog.Logger, redisURL string, options ...Option) (*HistoryStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewHistoryStoreWithClient(logger, client, options...), nil
}

// NewHistoryStoreWithClient wraps an existing client. The caller owns the
// client lifecycle.
func NewHistoryStoreWithClient(logger *slog.Logger, client redis.UniversalClient, options ...Option) *HistoryStore {
	s := &HistoryStore{
		client: client,
		logger: logger,
		ttl:    DefaultSnapshotTTL,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

func (s *HistoryStore) SaveSnapshot(ctx context.Context, snap *models.RunSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := snapshotKey(snap.InstanceID)
	indexKey := definitionIndexKey(snap.DefinitionID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, payload, s.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(snap.FinishedAt.UnixMilli()),
		Member: snap.InstanceID,
	})

	if s.ttl > 0 {
		pipe.Expire(ctx, indexKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.InstanceID, err)
	}

	s.logger.DebugContext(ctx, "run snapshot saved",
		"instance_id", snap.InstanceID,
		"definition_id", snap.DefinitionID,
		"status", snap.Status)

	return nil
}

func (s *HistoryStore) SnapshotByInstanceID(ctx context.Context, instanceID string) (*models.RunSnapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKey(instanceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.ErrSnapshotNotFound
		}

		return nil, fmt.Errorf("get snapshot %s: %w", instanceID, err)
	}

	var snap models.RunSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", instanceID, err)
	}

	return &snap, nil
}

// SnapshotsByDefinition returns the most recent runs of a definition, newest
// first. Index entries whose snapshot already expired are pruned lazily.
func (s *HistoryStore) SnapshotsByDefinition(ctx context.Context, definitionID string) ([]*models.RunSnapshot, error) {
	indexKey := definitionIndexKey(definitionID)

	instanceIDs, err := s.client.ZRevRange(ctx, indexKey, 0, maxSnapshotsPerDefinition-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs for definition %s: %w", definitionID, err)
	}

	snaps := make([]*models.RunSnapshot, 0, len(instanceIDs))

	for _, instanceID := range instanceIDs {
		snap, err := s.SnapshotByInstanceID(ctx, instanceID)
		if errors.Is(err, persistence.ErrSnapshotNotFound) {
			if err := s.client.ZRem(ctx, indexKey, instanceID).Err(); err != nil {
				s.logger.WarnContext(ctx, "failed to prune expired run from index",
					"instance_id", instanceID, "error", err)
			}

			continue
		}

		if err != nil {
			return nil, err
		}

		snaps = append(snaps, snap)
	}

	return snaps, nil
}

func (s *HistoryStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	return nil
}

func (s *HistoryStore) Close(_ context.Context) error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}

	return nil
}

func snapshotKey(instanceID string) string {
	return snapshotKeyPrefix + instanceID
}

func definitionIndexKey(definitionID string) string {
	return fmt.Sprintf(definitionIndexFmt, definitionID)
}
