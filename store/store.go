package store

import (
	"context"

	"github.com/parleyhq/parley/domain"
)

// MessageStore is the durable append-only chat log. Both operations are
// safe for concurrent callers; implementations serialize internally.
type MessageStore interface {
	// Append assigns an id and timestamp, persists the message, and
	// returns the stored entry. Ids are monotonically increasing.
	Append(ctx context.Context, sender, content string) (domain.Message, error)

	// ListAll returns every stored message ordered by id ascending.
	ListAll(ctx context.Context) ([]domain.Message, error)
}
