package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kevin-toles/llm-gateway/gwerrors"
)

// Store is the persistence contract the Manager sits on top of. A real
// deployment uses RedisStore; tests use a miniredis-backed RedisStore
// (the wire protocol is identical, so no separate in-memory fake is
// needed).
type Store interface {
	Load(ctx context.Context, id string) (*Session, error) // gwerrors KindSessionMissing if absent
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// RedisStore persists sessions as JSON under a prefixed key, with TTL
// refreshed on every Save.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing Redis client. prefix defaults to
// "session:" when empty.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, gwerrors.Wrap(gwerrors.KindSessionMissing, fmt.Sprintf("session %s not found", id), gwerrors.ErrSessionNotFound)
	}
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindSessionStore, "redis get failed", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindSessionStore, "session payload is not valid JSON", err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindSessionStore, "failed to marshal session", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return gwerrors.Wrap(gwerrors.KindSessionStore, "redis set failed", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return gwerrors.Wrap(gwerrors.KindSessionStore, "redis del failed", err)
	}
	return nil
}
