package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/parleyhq/parley/domain"
)

// RedisStore persists the message log in Redis: ids come from an INCR
// counter and entries are appended as JSON to a list, so id order equals
// list order.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "parley"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Append(ctx context.Context, sender, content string) (domain.Message, error) {
	id, err := s.client.Incr(ctx, s.prefix+":seq").Result()
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to allocate message id: %w", err)
	}

	msg := domain.Message{
		ID:        id,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := s.client.RPush(ctx, s.prefix+":log", data).Err(); err != nil {
		return domain.Message{}, fmt.Errorf("failed to persist message: %w", err)
	}

	return msg, nil
}

func (s *RedisStore) ListAll(ctx context.Context) ([]domain.Message, error) {
	entries, err := s.client.LRange(ctx, s.prefix+":log", 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read message log: %w", err)
	}

	messages := make([]domain.Message, 0, len(entries))
	for _, entry := range entries {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("corrupt message log entry: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}
