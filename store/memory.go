package store

import (
	"context"
	"sync"
	"time"

	"github.com/parleyhq/parley/domain"
)

// MemoryStore keeps the message log in process memory. Messages do not
// survive a restart; use RedisStore for that.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, sender, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg := domain.Message{
		ID:        s.nextID,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)

	return msg, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}
