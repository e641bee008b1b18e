package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"execledger/internal/diagnostic/models"
	id "execledger/pkg/domain"
	"execledger/pkg/platform/sentinel"
)

// RedisLogStore keeps each policy's log in a redis list. RPUSH returns the new
// length, so index assignment and the write are one atomic command.
type RedisLogStore struct {
	client redis.Cmdable
	prefix string
}

type redisEntry struct {
	Message   string `json:"m"`
	CreatedAt int64  `json:"t"`
}

func NewRedisLogStore(client redis.Cmdable, prefix string) *RedisLogStore {
	if prefix == "" {
		prefix = "execledger:diagnostic:"
	}
	return &RedisLogStore{client: client, prefix: prefix}
}

func (s *RedisLogStore) key(policyID id.PolicyID) string {
	return s.prefix + policyID.String()
}

func (s *RedisLogStore) Append(ctx context.Context, e *models.Entry) error {
	raw, err := json.Marshal(redisEntry{Message: e.Message, CreatedAt: e.CreatedAt.Unix()})
	if err != nil {
		return fmt.Errorf("encode diagnostic log: %w", err)
	}
	length, err := s.client.RPush(ctx, s.key(e.PolicyID), raw).Result()
	if err != nil {
		return fmt.Errorf("rpush diagnostic log: %w", err)
	}
	e.LogIndex = id.LogIndex(length - 1)
	return nil
}

func (s *RedisLogStore) Find(ctx context.Context, policyID id.PolicyID, index id.LogIndex) (*models.Entry, error) {
	// LINDEX treats negative indexes as offsets from the tail.
	if uint64(index) > 1<<63-1 {
		return nil, sentinel.ErrNotFound
	}
	raw, err := s.client.LIndex(ctx, s.key(policyID), int64(index)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lindex diagnostic log: %w", err)
	}
	var stored redisEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode diagnostic log: %w", err)
	}
	return &models.Entry{
		PolicyID:  policyID,
		LogIndex:  index,
		Message:   stored.Message,
		CreatedAt: time.Unix(stored.CreatedAt, 0).UTC(),
	}, nil
}

func (s *RedisLogStore) Count(ctx context.Context, policyID id.PolicyID) (uint64, error) {
	n, err := s.client.LLen(ctx, s.key(policyID)).Result()
	if err != nil {
		return 0, fmt.Errorf("llen diagnostic log: %w", err)
	}
	return uint64(n), nil
}
