package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/queryplane/internal/core/domain"
)

// DefaultTTL is how long an escalation payload is kept.
const DefaultTTL = 7 * 24 * time.Hour

// EscalationRepo implements storage.EscalationRepository using a sorted set
// of ids scored by occurrence time plus one payload key per escalation.
type EscalationRepo struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewEscalationRepo creates a Redis-backed escalation repository.
func NewEscalationRepo(client *Client, ttl time.Duration) *EscalationRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EscalationRepo{
		rdb:    client.rdb,
		prefix: client.prefix,
		ttl:    ttl,
		log:    slog.Default().With("component", "redis-escalations"),
	}
}

func (r *EscalationRepo) queueKey() string {
	return fmt.Sprintf("%s:escalations", r.prefix)
}

func (r *EscalationRepo) itemKey(id string) string {
	return fmt.Sprintf("%s:escalation:%s", r.prefix, id)
}

// Add stores the payload and indexes it by occurrence time.
func (r *EscalationRepo) Add(ctx context.Context, e *domain.Escalation) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.itemKey(e.ID), data, r.ttl)
		pipe.ZAdd(ctx, r.queueKey(), redis.Z{
			Score:  float64(e.OccurredAt.UnixMilli()),
			Member: e.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add escalation: %w", err)
	}
	return nil
}

// List returns up to limit escalations, newest first. Ids whose payload
// expired are dropped from the index.
func (r *EscalationRepo) List(ctx context.Context, limit int) ([]*domain.Escalation, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := r.rdb.ZRevRange(ctx, r.queueKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	itemKeys := make([]string, len(ids))
	for i, id := range ids {
		itemKeys[i] = r.itemKey(id)
	}
	values, err := r.rdb.MGet(ctx, itemKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get escalations: %w", err)
	}

	out := make([]*domain.Escalation, 0, len(ids))
	var expired []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var e domain.Escalation
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, &e)
	}

	if len(expired) > 0 {
		if err := r.rdb.ZRem(ctx, r.queueKey(), expired...).Err(); err != nil {
			r.log.Warn("Failed to drop expired escalation ids", "count", len(expired), "error", err)
		}
	}
	return out, nil
}

// Count returns the number of indexed escalations.
func (r *EscalationRepo) Count(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

// DeleteOlderThan removes escalations that occurred before threshold.
func (r *EscalationRepo) DeleteOlderThan(ctx context.Context, threshold time.Time) (int, error) {
	upper := "(" + strconv.FormatInt(threshold.UnixMilli(), 10)

	ids, err := r.rdb.ZRangeByScore(ctx, r.queueKey(), &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore failed: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	itemKeys := make([]string, len(ids))
	for i, id := range ids {
		itemKeys[i] = r.itemKey(id)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, itemKeys...)
		pipe.ZRemRangeByScore(ctx, r.queueKey(), "-inf", upper)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune escalations: %w", err)
	}
	return len(ids), nil
}
