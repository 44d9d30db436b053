package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, prefix string) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisStore(client, prefix)
}

func TestRedisAppendAssignsMonotonicIDs(t *testing.T) {
	_, s := newTestRedisStore(t, "")
	ctx := context.Background()

	first, err := s.Append(ctx, "alice", "hi")
	require.NoError(t, err)
	second, err := s.Append(ctx, "bob", "hello")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.False(t, first.Timestamp.IsZero())
}

func TestRedisListAllReturnsAppendedMessagesInOrder(t *testing.T) {
	_, s := newTestRedisStore(t, "")
	ctx := context.Background()

	_, err := s.Append(ctx, "alice", "one")
	require.NoError(t, err)
	_, err = s.Append(ctx, "bob", "two")
	require.NoError(t, err)

	messages, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)
	assert.Greater(t, messages[1].ID, messages[0].ID)
}

func TestRedisListAllEmptyLog(t *testing.T) {
	_, s := newTestRedisStore(t, "")
	ctx := context.Background()

	messages, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRedisAppendRoundTripsThroughEncoding(t *testing.T) {
	_, s := newTestRedisStore(t, "")
	ctx := context.Background()

	appended, err := s.Append(ctx, "alice", "hi there")
	require.NoError(t, err)

	messages, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, appended.ID, messages[0].ID)
	assert.Equal(t, appended.Sender, messages[0].Sender)
	assert.Equal(t, appended.Content, messages[0].Content)
	assert.True(t, appended.Timestamp.Equal(messages[0].Timestamp))
}

func TestRedisKeysCarryThePrefix(t *testing.T) {
	mr, s := newTestRedisStore(t, "chatroom")
	ctx := context.Background()

	_, err := s.Append(ctx, "alice", "hi")
	require.NoError(t, err)

	assert.True(t, mr.Exists("chatroom:seq"))
	assert.True(t, mr.Exists("chatroom:log"))
	assert.False(t, mr.Exists("parley:log"))
}

func TestRedisDefaultPrefix(t *testing.T) {
	mr, s := newTestRedisStore(t, "")
	ctx := context.Background()

	_, err := s.Append(ctx, "alice", "hi")
	require.NoError(t, err)

	assert.True(t, mr.Exists("parley:seq"))
	assert.True(t, mr.Exists("parley:log"))
}

func TestRedisListAllRejectsCorruptEntries(t *testing.T) {
	mr, s := newTestRedisStore(t, "")
	ctx := context.Background()

	_, err := s.Append(ctx, "alice", "hi")
	require.NoError(t, err)
	_, err = mr.Push("parley:log", "{not json")
	require.NoError(t, err)

	_, err = s.ListAll(ctx)
	assert.Error(t, err)
}
