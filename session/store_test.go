package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/message"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisStore(client, "")
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()

	s := &Session{ID: "abc", Messages: []message.Message{message.User("hi")}}
	require.NoError(t, store.Save(context.Background(), s, time.Minute))

	loaded, err := store.Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.ID)
	assert.Equal(t, "hi", loaded.Messages[0].Content)
}

func TestRedisStore_LoadMissing(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()

	_, err := store.Load(context.Background(), "does-not-exist")
	assert.True(t, gwerrors.IsSessionNotFound(err))
}

func TestRedisStore_TTLExpires(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()

	s := &Session{ID: "ttl-test"}
	require.NoError(t, store.Save(context.Background(), s, time.Second))
	mr.FastForward(2 * time.Second)

	_, err := store.Load(context.Background(), "ttl-test")
	assert.True(t, gwerrors.IsSessionNotFound(err))
}

func TestRedisStore_Delete(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()

	s := &Session{ID: "to-delete"}
	require.NoError(t, store.Save(context.Background(), s, time.Minute))
	require.NoError(t, store.Delete(context.Background(), "to-delete"))

	_, err := store.Load(context.Background(), "to-delete")
	assert.True(t, gwerrors.IsSessionNotFound(err))
}
