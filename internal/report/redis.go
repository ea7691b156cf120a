package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/threadsearch/pkg/common/validation"
)

// ListPusher is the part of a Redis client the sink needs. *redis.Client,
// *redis.ClusterClient and redis.UniversalClient all satisfy it.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisSink appends every match as a JSON document to a Redis list.
type RedisSink struct {
	client ListPusher
	key    string
}

// NewRedisSink creates a sink that pushes onto key.
func NewRedisSink(client ListPusher, key string) (*RedisSink, error) {
	if err := validation.ValidateNotNil("report", "redis_client", client); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty("report", "redis_key", key); err != nil {
		return nil, err
	}
	return &RedisSink{client: client, key: key}, nil
}

// Match implements Sink.
func (s *RedisSink) Match(ctx context.Context, m Match) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, payload).Err(); err != nil {
		return fmt.Errorf("push match to %s: %w", s.key, err)
	}
	return nil
}

// NewRedisClient opens a client for addr. The connection is checked with a
// PING so configuration mistakes surface before the search starts.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

var _ Sink = (*RedisSink)(nil)
