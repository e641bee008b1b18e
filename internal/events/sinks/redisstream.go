package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"execledger/internal/events"
)

// RedisStreamPublisher appends event envelopes to a Redis stream, trimmed
// approximately to maxLen entries. A maxLen of zero disables trimming.
type RedisStreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Name() string { return "redis_stream" }

func (p *RedisStreamPublisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":      string(event.Type),
			"sequence":  strconv.FormatUint(event.Sequence, 10),
			"policy_id": event.Payload.Policy().String(),
			"event":     string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd event %d to %s: %w", event.Sequence, p.stream, err)
	}
	return nil
}
